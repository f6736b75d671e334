package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

type SpreadsheetTestCase struct {
	t           *testing.T
	name        string
	spreadsheet *Spreadsheet
	err         error
	skipped     bool
}

func NewSpreadsheetTestCase(t *testing.T, name string, opts ...Option) *SpreadsheetTestCase {
	tc := &SpreadsheetTestCase{
		t:           t,
		name:        name,
		spreadsheet: NewSpreadsheet(opts...),
	}
	return tc.AddWorksheet("Sheet1")
}

func (tc *SpreadsheetTestCase) Skip(reason string) *SpreadsheetTestCase {
	if !tc.skipped {
		tc.t.Skipf("%s: %s", tc.name, reason)
		tc.skipped = true
	}
	return tc
}

func (tc *SpreadsheetTestCase) Set(address string, content any) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.Set(address, content)
	if tc.err != nil {
		tc.t.Errorf("%s: Set(%s) failed: %v", tc.name, address, tc.err)
	}
	return tc
}

// TrySet records the error of Set for a following ExpectError
func (tc *SpreadsheetTestCase) TrySet(address string, content any) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.Set(address, content)
	return tc
}

func (tc *SpreadsheetTestCase) Remove(address string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.Remove(address)
	if tc.err != nil {
		tc.t.Errorf("%s: Remove(%s) failed: %v", tc.name, address, tc.err)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AddWorksheet(name string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.AddWorksheet(name)
	return tc
}

func (tc *SpreadsheetTestCase) RemoveWorksheet(name string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.RemoveWorksheet(name)
	return tc
}

func (tc *SpreadsheetTestCase) RenameWorksheet(oldName, newName string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.RenameWorksheet(oldName, newName)
	return tc
}

func (tc *SpreadsheetTestCase) DefineNamedRange(name, address string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.DefineNamedRange(name, address)
	return tc
}

func (tc *SpreadsheetTestCase) RemoveNamedRange(name string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.RemoveNamedRange(name)
	return tc
}

func (tc *SpreadsheetTestCase) RenameNamedRange(oldName, newName string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.RenameNamedRange(oldName, newName)
	return tc
}

func (tc *SpreadsheetTestCase) Run() *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.Calculate(context.Background())
	return tc
}

func (tc *SpreadsheetTestCase) RunAndAssertNoError() *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	tc.err = tc.spreadsheet.Calculate(context.Background())
	if tc.err != nil {
		tc.t.Errorf("%s: Calculate() failed: %v", tc.name, tc.err)
	}
	return tc
}

// expectedValue converts Go literals used in assertions to cell values
func expectedValue(expected any) Value {
	switch exp := expected.(type) {
	case nil:
		return Blank
	case float64:
		return Number(exp)
	case int:
		return Number(exp)
	case string:
		return Text(exp)
	case bool:
		return Boolean(exp)
	case ErrorCode:
		return ErrorFor(exp)
	case Value:
		return exp
	}
	panic(fmt.Sprintf("unsupported expectation %T", expected))
}

func (tc *SpreadsheetTestCase) get(address string) (Value, bool) {
	actual, err := tc.spreadsheet.Get(address)
	if err != nil {
		tc.t.Errorf("%s: Get(%s) failed: %v", tc.name, address, err)
		return nil, false
	}
	return actual, true
}

func (tc *SpreadsheetTestCase) AssertCellEq(address string, expected any) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}

	want := expectedValue(expected)
	if exp, isNum := want.(Number); isNum {
		if act, ok := actual.(Number); ok {
			if math.Abs(float64(act-exp)) > 1e-10 {
				tc.t.Errorf("%s: Cell %s = %v, want %v", tc.name, address, actual, want)
			}
		} else {
			tc.t.Errorf("%s: Cell %s = %v (%s), want %v (number)", tc.name, address, actual, actual.Kind(), want)
		}
		return tc
	}
	if !valueEqual(actual, want) {
		tc.t.Errorf("%s: Cell %s = %v (%s), want %v (%s)", tc.name, address, actual, actual.Kind(), want, want.Kind())
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertCellEmpty(address string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}
	if _, blank := actual.(BlankValue); !blank {
		tc.t.Errorf("%s: Cell %s = %v, want blank", tc.name, address, actual)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertCellErr(address string, errorCode ErrorCode) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}
	if spreadsheetErr, ok := actual.(*SpreadsheetError); ok {
		if spreadsheetErr.ErrorCode != errorCode {
			tc.t.Errorf("%s: Cell %s has error %v, want %v", tc.name, address, spreadsheetErr.ErrorCode, errorCode)
		}
	} else {
		tc.t.Errorf("%s: Cell %s = %v, want error %v", tc.name, address, actual, errorCode)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertCellFn(address string, fn func(value Value, t *testing.T)) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}
	fn(actual, tc.t)
	return tc
}

// AssertCellUnimplemented checks that reading the cell fails with an
// UnimplementedError naming function
func (tc *SpreadsheetTestCase) AssertCellUnimplemented(address, function string) *SpreadsheetTestCase {
	if tc.skipped || tc.err != nil {
		return tc
	}
	actual, err := tc.spreadsheet.Get(address)
	var unimplemented *UnimplementedError
	if !errors.As(err, &unimplemented) {
		tc.t.Errorf("%s: Get(%s) = %v, %v, want unimplemented %s", tc.name, address, actual, err, function)
		return tc
	}
	if unimplemented.Function != function {
		tc.t.Errorf("%s: Cell %s unimplemented %q, want %q", tc.name, address, unimplemented.Function, function)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertWorksheetExists(name string, shouldExist bool) *SpreadsheetTestCase {
	if tc.skipped {
		return tc
	}
	exists := tc.spreadsheet.DoesWorksheetExist(name)
	if exists != shouldExist {
		tc.t.Errorf("%s: Worksheet %s exists=%v, want %v", tc.name, name, exists, shouldExist)
	}
	return tc
}

func (tc *SpreadsheetTestCase) AssertNamedRangeExists(name string, shouldExist bool) *SpreadsheetTestCase {
	if tc.skipped {
		return tc
	}
	exists := tc.spreadsheet.DoesNamedRangeExist(name)
	if exists != shouldExist {
		tc.t.Errorf("%s: Named range %s exists=%v, want %v", tc.name, name, exists, shouldExist)
	}
	return tc
}

func (tc *SpreadsheetTestCase) ExpectAppError(expectedCode AppErrorCode) *SpreadsheetTestCase {
	if tc.skipped {
		return tc
	}
	if tc.err == nil {
		tc.t.Errorf("%s: Expected error with code %v, but got no error", tc.name, expectedCode)
		return tc
	}
	var appErr *AppError
	if errors.As(tc.err, &appErr) {
		if appErr.Code != expectedCode {
			tc.t.Errorf("%s: Got error code %v, want %v", tc.name, appErr.Code, expectedCode)
		}
	} else {
		tc.t.Errorf("%s: Got error %v, want AppError with code %v", tc.name, tc.err, expectedCode)
	}
	tc.err = nil
	return tc
}

// ExpectError checks the recorded error against target with errors.Is
func (tc *SpreadsheetTestCase) ExpectError(target error) *SpreadsheetTestCase {
	if tc.skipped {
		return tc
	}
	if !errors.Is(tc.err, target) {
		tc.t.Errorf("%s: Got error %v, want %v", tc.name, tc.err, target)
	}
	tc.err = nil
	return tc
}

func (tc *SpreadsheetTestCase) End() {
}

// sequence returns 0.1, 0.2, ... on successive calls
type sequence struct{ n int }

func (s *sequence) Float64() float64 {
	s.n++
	return float64(s.n) / 10
}

func TestLexingAndParsing(t *testing.T) {
	t.Run("ValidFormulas", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Basic arithmetic").
			Set("Sheet1!A1", "=1+2").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", 3.0).
			End()

		NewSpreadsheetTestCase(t, "Cell reference").
			Set("Sheet1!A1", 10.0).
			Set("Sheet1!A2", "=A1").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A2", 10.0).
			End()

		NewSpreadsheetTestCase(t, "Function call").
			Set("Sheet1!A1", 5.0).
			Set("Sheet1!A2", 10.0).
			Set("Sheet1!A3", "=SUM(A1:A2)").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A3", 15.0).
			End()

		NewSpreadsheetTestCase(t, "String literal").
			Set("Sheet1!A1", `="hello"`).
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", "hello").
			End()

		NewSpreadsheetTestCase(t, "Boolean literal").
			Set("Sheet1!A1", "=TRUE").
			Set("Sheet1!A2", "=FALSE").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", true).
			AssertCellEq("Sheet1!A2", false).
			End()

		NewSpreadsheetTestCase(t, "Worksheet reference").
			AddWorksheet("Sheet2").
			Set("Sheet2!A1", 42.0).
			Set("Sheet1!A1", "=Sheet2!A1").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", 42.0).
			End()

		NewSpreadsheetTestCase(t, "Multiple unary plus operator").
			Set("Sheet1!A1", "=1++2").
			Set("Sheet1!A2", "=1++++++3").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", 3).
			AssertCellEq("Sheet1!A2", 4).
			End()
	})

	t.Run("InvalidFormulas", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Unclosed function").
			TrySet("Sheet1!A1", "=SUM(").
			ExpectError(ErrInvalidFormula).
			AssertCellEmpty("Sheet1!A1").
			End()

		NewSpreadsheetTestCase(t, "Dangling operator").
			TrySet("Sheet1!A1", "=1+").
			ExpectError(ErrInvalidFormula).
			End()

		NewSpreadsheetTestCase(t, "Invalid formula keeps previous content").
			Set("Sheet1!A1", 7.0).
			TrySet("Sheet1!A1", "=(1").
			ExpectError(ErrInvalidFormula).
			AssertCellEq("Sheet1!A1", 7.0).
			End()
	})
}

func TestBasicTypes(t *testing.T) {
	t.Run("Numbers", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Integer").
			Set("Sheet1!A1", 42).
			AssertCellEq("Sheet1!A1", 42.0).
			End()

		NewSpreadsheetTestCase(t, "Float").
			Set("Sheet1!A1", 3.14159).
			AssertCellEq("Sheet1!A1", 3.14159).
			End()

		NewSpreadsheetTestCase(t, "Numeric text input").
			Set("Sheet1!A1", "-123.45").
			Set("Sheet1!A2", "12%").
			AssertCellEq("Sheet1!A1", -123.45).
			AssertCellEq("Sheet1!A2", 0.12).
			End()

		NewSpreadsheetTestCase(t, "Scientific notation").
			Set("Sheet1!A1", "=1.23E5").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", 123000.0).
			End()
	})

	t.Run("Booleans", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Boolean values").
			Set("Sheet1!A1", true).
			Set("Sheet1!A2", "false").
			AssertCellEq("Sheet1!A1", true).
			AssertCellEq("Sheet1!A2", false).
			End()
	})

	t.Run("Strings", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Simple string").
			Set("Sheet1!A1", "Hello World").
			AssertCellEq("Sheet1!A1", "Hello World").
			End()

		NewSpreadsheetTestCase(t, "Empty string").
			Set("Sheet1!A1", "").
			AssertCellEq("Sheet1!A1", "").
			End()
	})

	t.Run("Errors", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Error literal input").
			Set("Sheet1!A1", "#N/A").
			Set("Sheet1!A2", ErrorCodeDiv0).
			AssertCellErr("Sheet1!A1", ErrorCodeNA).
			AssertCellErr("Sheet1!A2", ErrorCodeDiv0).
			End()
	})

	t.Run("Blank", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Empty cell").
			AssertCellEmpty("Sheet1!A1").
			End()

		NewSpreadsheetTestCase(t, "Removed cell").
			Set("Sheet1!A1", 10.0).
			RunAndAssertNoError().
			Remove("Sheet1!A1").
			AssertCellEmpty("Sheet1!A1").
			End()

		NewSpreadsheetTestCase(t, "Formula reading a blank cell is zero").
			Set("Sheet1!A1", "=B1").
			AssertCellEq("Sheet1!A1", 0).
			End()
	})
}

func TestBinaryOperators(t *testing.T) {
	t.Run("Arithmetic", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Arithmetic").
			Set("Sheet1!A1", "=2+3").
			Set("Sheet1!A2", "=10-4").
			Set("Sheet1!A3", "=3*4").
			Set("Sheet1!A4", "=15/3").
			Set("Sheet1!A5", "=2^3").
			Set("Sheet1!A6", "=2^3^2").
			Set("Sheet1!A7", "=-2^2").
			Set("Sheet1!A8", "=1+2*3").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", 5).
			AssertCellEq("Sheet1!A2", 6).
			AssertCellEq("Sheet1!A3", 12).
			AssertCellEq("Sheet1!A4", 5).
			AssertCellEq("Sheet1!A5", 8).
			AssertCellEq("Sheet1!A6", 64).
			AssertCellEq("Sheet1!A7", 4).
			AssertCellEq("Sheet1!A8", 7).
			End()

		NewSpreadsheetTestCase(t, "Division by zero").
			Set("Sheet1!A1", "=1/0").
			Set("Sheet1!A2", "=0^0").
			Set("Sheet1!A3", "=0^-1").
			Run().
			AssertCellErr("Sheet1!A1", ErrorCodeDiv0).
			AssertCellErr("Sheet1!A2", ErrorCodeNum).
			AssertCellErr("Sheet1!A3", ErrorCodeDiv0).
			End()

		NewSpreadsheetTestCase(t, "Text coercion").
			Set("Sheet1!A1", `="3"+4`).
			Set("Sheet1!A2", `="abc"+1`).
			Set("Sheet1!A3", "=TRUE+TRUE").
			Run().
			AssertCellEq("Sheet1!A1", 7).
			AssertCellErr("Sheet1!A2", ErrorCodeValue).
			AssertCellEq("Sheet1!A3", 2).
			End()
	})

	t.Run("Comparison", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Comparisons").
			Set("Sheet1!A1", "=5=5").
			Set("Sheet1!A2", "=5<>3").
			Set("Sheet1!A3", "=3<5").
			Set("Sheet1!A4", "=5<=5").
			Set("Sheet1!A5", "=7>5").
			Set("Sheet1!A6", "=5>=6").
			Set("Sheet1!A7", `="abc"="ABC"`).
			Set("Sheet1!A8", `=1<"1"`).
			Set("Sheet1!A9", `="z"<TRUE`).
			Set("Sheet1!A10", "=B1=0").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", true).
			AssertCellEq("Sheet1!A2", true).
			AssertCellEq("Sheet1!A3", true).
			AssertCellEq("Sheet1!A4", true).
			AssertCellEq("Sheet1!A5", true).
			AssertCellEq("Sheet1!A6", false).
			AssertCellEq("Sheet1!A7", true).
			AssertCellEq("Sheet1!A8", true).
			AssertCellEq("Sheet1!A9", true).
			AssertCellEq("Sheet1!A10", true).
			End()
	})

	t.Run("StringConcatenation", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Concat").
			Set("Sheet1!A1", `="Hello"&" "&"World"`).
			Set("Sheet1!A2", `="Value: "&123`).
			Set("Sheet1!A3", `=0.1+0.2&""`).
			Set("Sheet1!A4", `=TRUE&"!"`).
			RunAndAssertNoError().
			AssertCellEq("Sheet1!A1", "Hello World").
			AssertCellEq("Sheet1!A2", "Value: 123").
			AssertCellEq("Sheet1!A3", "0.3").
			AssertCellEq("Sheet1!A4", "TRUE!").
			End()
	})
}

func TestUnaryOperators(t *testing.T) {
	NewSpreadsheetTestCase(t, "Unary operators").
		Set("Sheet1!A1", "=+5").
		Set("Sheet1!A2", "=-5").
		Set("Sheet1!A3", "=50%").
		Set("Sheet1!A4", "=--TRUE").
		Set("Sheet1!A5", `=-"x"`).
		Run().
		AssertCellEq("Sheet1!A1", 5).
		AssertCellEq("Sheet1!A2", -5).
		AssertCellEq("Sheet1!A3", 0.5).
		AssertCellEq("Sheet1!A4", 1).
		AssertCellErr("Sheet1!A5", ErrorCodeValue).
		End()
}

func TestAggregationFunctions(t *testing.T) {
	t.Run("SUM", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Sum numbers").
			Set("Sheet1!A1", 10.0).
			Set("Sheet1!A2", 20.0).
			Set("Sheet1!A3", 30.0).
			Set("Sheet1!B1", "=SUM(A1:A3)").
			Set("Sheet1!B2", "=SUM(A1,A2,5)").
			Set("Sheet1!B3", "=SUM(C1:C5)").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!B1", 60).
			AssertCellEq("Sheet1!B2", 35).
			AssertCellEq("Sheet1!B3", 0).
			End()

		NewSpreadsheetTestCase(t, "Referenced text is skipped, literal text is coerced").
			Set("Sheet1!A1", 1.0).
			Set("Sheet1!A2", Text("3")).
			Set("Sheet1!A3", "abc").
			Set("Sheet1!A4", true).
			Set("Sheet1!B1", "=SUM(A1:A4)").
			Set("Sheet1!B2", `=SUM(A1,"3")`).
			Set("Sheet1!B3", `=SUM(A1,"abc")`).
			Set("Sheet1!B4", "=SUM(A1,TRUE)").
			Set("Sheet1!B5", "=SUM(A4)").
			Run().
			AssertCellEq("Sheet1!B1", 1).
			AssertCellEq("Sheet1!B2", 4).
			AssertCellErr("Sheet1!B3", ErrorCodeValue).
			AssertCellEq("Sheet1!B4", 2).
			AssertCellEq("Sheet1!B5", 0).
			End()

		NewSpreadsheetTestCase(t, "First error wins").
			Set("Sheet1!A1", "#N/A").
			Set("Sheet1!A2", "=1/0").
			Set("Sheet1!B1", "=SUM(A1:A2)").
			Set("Sheet1!B2", "=SUM(A2,A1)").
			Run().
			AssertCellErr("Sheet1!B1", ErrorCodeNA).
			AssertCellErr("Sheet1!B2", ErrorCodeDiv0).
			End()
	})

	t.Run("AVERAGE", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Average").
			Set("Sheet1!A1", 10.0).
			Set("Sheet1!A2", 20.0).
			Set("Sheet1!A3", "x").
			Set("Sheet1!B1", "=AVERAGE(A1:A3)").
			Set("Sheet1!B2", "=AVERAGEA(A1:A3)").
			Set("Sheet1!B3", "=AVERAGE(C1:C3)").
			Run().
			AssertCellEq("Sheet1!B1", 15).
			AssertCellEq("Sheet1!B2", 10).
			AssertCellErr("Sheet1!B3", ErrorCodeDiv0).
			End()
	})

	t.Run("COUNT", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Count").
			Set("Sheet1!A1", 1.0).
			Set("Sheet1!A2", "two").
			Set("Sheet1!A3", true).
			Set("Sheet1!A5", "#DIV/0!").
			Set("Sheet1!B1", "=COUNT(A1:A5)").
			Set("Sheet1!B2", "=COUNTA(A1:A5)").
			Set("Sheet1!B3", "=COUNTBLANK(A1:A5)").
			Set("Sheet1!B4", `=COUNT(1,"2","x",TRUE)`).
			Set("Sheet1!B5", "=COUNTA(1,,2)").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!B1", 1).
			AssertCellEq("Sheet1!B2", 4).
			AssertCellEq("Sheet1!B3", 1).
			AssertCellEq("Sheet1!B4", 3).
			AssertCellEq("Sheet1!B5", 2).
			End()
	})

	t.Run("MINMAX", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Min and max").
			Set("Sheet1!A1", 3.0).
			Set("Sheet1!A2", -7.0).
			Set("Sheet1!A3", 12.0).
			Set("Sheet1!B1", "=MAX(A1:A3)").
			Set("Sheet1!B2", "=MIN(A1:A3)").
			Set("Sheet1!B3", "=MAX(C1:C3)").
			Set("Sheet1!B4", "=MEDIAN(A1:A3)").
			Set("Sheet1!B5", "=MEDIAN(A1:A3,1)").
			RunAndAssertNoError().
			AssertCellEq("Sheet1!B1", 12).
			AssertCellEq("Sheet1!B2", -7).
			AssertCellEq("Sheet1!B3", 0).
			AssertCellEq("Sheet1!B4", 3).
			AssertCellEq("Sheet1!B5", 2).
			End()
	})

	t.Run("Statistics", func(t *testing.T) {
		NewSpreadsheetTestCase(t, "Mode and variance").
			Set("Sheet1!B1", "=MODE(1,2,2,3,3)").
			Set("Sheet1!B2", "=MODE(1,2,3)").
			Set("Sheet1!B3", "=VAR(2,4,4,4,5,5,7,9)").
			Set("Sheet1!B4", "=STDEV(1)").
			Set("Sheet1!B5", "=GEOMEAN(2,8)").
			Set("Sheet1!B6", "=PRODUCT(2,3,4)").
			Set("Sheet1!B7", "=SUMSQ(3,4)").
			Run().
			AssertCellEq("Sheet1!B1", 2).
			AssertCellErr("Sheet1!B2", ErrorCodeNA).
			AssertCellEq("Sheet1!B3", 32.0/7).
			AssertCellErr("Sheet1!B4", ErrorCodeDiv0).
			AssertCellEq("Sheet1!B5", 4).
			AssertCellEq("Sheet1!B6", 24).
			AssertCellEq("Sheet1!B7", 25).
			End()
	})
}

func TestLogicalFunctions(t *testing.T) {
	NewSpreadsheetTestCase(t, "IF").
		Set("Sheet1!A1", 10.0).
		Set("Sheet1!B1", `=IF(A1>5,"big","small")`).
		Set("Sheet1!B2", `=IF(A1>50,"big")`).
		Set("Sheet1!B3", `=IF(A1>5,1/0,1)`).
		Set("Sheet1!B4", `=IF(1/0,1,2)`).
		Set("Sheet1!B5", `=IF("maybe",1,2)`).
		Run().
		AssertCellEq("Sheet1!B1", "big").
		AssertCellEq("Sheet1!B2", false).
		AssertCellErr("Sheet1!B3", ErrorCodeDiv0).
		AssertCellErr("Sheet1!B4", ErrorCodeDiv0).
		AssertCellErr("Sheet1!B5", ErrorCodeValue).
		End()

	NewSpreadsheetTestCase(t, "AND OR NOT").
		Set("Sheet1!A1", true).
		Set("Sheet1!A2", "text").
		Set("Sheet1!B1", "=AND(TRUE,1)").
		Set("Sheet1!B2", "=AND(TRUE,0)").
		Set("Sheet1!B3", "=OR(FALSE,0,1)").
		Set("Sheet1!B4", "=NOT(A1)").
		Set("Sheet1!B5", "=AND(A1:A2)").
		Set("Sheet1!B6", "=OR(A2)").
		Run().
		AssertCellEq("Sheet1!B1", true).
		AssertCellEq("Sheet1!B2", false).
		AssertCellEq("Sheet1!B3", true).
		AssertCellEq("Sheet1!B4", false).
		AssertCellEq("Sheet1!B5", true).
		AssertCellErr("Sheet1!B6", ErrorCodeValue).
		End()

	NewSpreadsheetTestCase(t, "IFERROR and IS functions").
		Set("Sheet1!A1", "=1/0").
		Set("Sheet1!B1", `=IFERROR(A1,"fallback")`).
		Set("Sheet1!B2", "=IFERROR(5,0)").
		Set("Sheet1!B3", "=ISERROR(A1)").
		Set("Sheet1!B4", "=ISNA(NA())").
		Set("Sheet1!B5", "=ISERR(NA())").
		Set("Sheet1!B6", "=ISBLANK(C1)").
		Set("Sheet1!B7", `=ISTEXT("x")`).
		Set("Sheet1!B8", "=ISNUMBER(A1)").
		Set("Sheet1!B9", "=ERROR.TYPE(A1)").
		Set("Sheet1!B10", "=ERROR.TYPE(1)").
		Run().
		AssertCellEq("Sheet1!B1", "fallback").
		AssertCellEq("Sheet1!B2", 5).
		AssertCellEq("Sheet1!B3", true).
		AssertCellEq("Sheet1!B4", true).
		AssertCellEq("Sheet1!B5", false).
		AssertCellEq("Sheet1!B6", true).
		AssertCellEq("Sheet1!B7", true).
		AssertCellEq("Sheet1!B8", false).
		AssertCellEq("Sheet1!B9", 2).
		AssertCellErr("Sheet1!B10", ErrorCodeNA).
		End()
}

func TestTextFunctions(t *testing.T) {
	NewSpreadsheetTestCase(t, "Text").
		Set("Sheet1!A1", "  Hello   World  ").
		Set("Sheet1!B1", `=CONCATENATE("a",1,TRUE)`).
		Set("Sheet1!B2", `=LEN("héllo")`).
		Set("Sheet1!B3", `=UPPER("abc")`).
		Set("Sheet1!B4", `=LOWER("ABC")`).
		Set("Sheet1!B5", `=PROPER("hello wORLD")`).
		Set("Sheet1!B6", "=TRIM(A1)").
		Set("Sheet1!B7", `=LEFT("spreadsheet",6)`).
		Set("Sheet1!B8", `=RIGHT("spreadsheet",5)`).
		Set("Sheet1!B9", `=MID("spreadsheet",7,3)`).
		Set("Sheet1!B10", `=EXACT("a","A")`).
		Set("Sheet1!B11", `=REPT("ab",3)`).
		Set("Sheet1!B12", `=VALUE("12.5%")`).
		Set("Sheet1!B13", `=VALUE("TRUE")`).
		Set("Sheet1!B14", `=LEFT("abc",-1)`).
		Set("Sheet1!B15", `=LEFT("abc")`).
		Run().
		AssertCellEq("Sheet1!B1", "a1TRUE").
		AssertCellEq("Sheet1!B2", 5).
		AssertCellEq("Sheet1!B3", "ABC").
		AssertCellEq("Sheet1!B4", "abc").
		AssertCellEq("Sheet1!B5", "Hello World").
		AssertCellEq("Sheet1!B6", "Hello World").
		AssertCellEq("Sheet1!B7", "spread").
		AssertCellEq("Sheet1!B8", "sheet").
		AssertCellEq("Sheet1!B9", "she").
		AssertCellEq("Sheet1!B10", false).
		AssertCellEq("Sheet1!B11", "ababab").
		AssertCellEq("Sheet1!B12", 0.125).
		AssertCellErr("Sheet1!B13", ErrorCodeValue).
		AssertCellErr("Sheet1!B14", ErrorCodeValue).
		AssertCellEq("Sheet1!B15", "a").
		End()
}

func TestMathFunctions(t *testing.T) {
	NewSpreadsheetTestCase(t, "Math").
		Set("Sheet1!B1", "=ABS(-3)").
		Set("Sheet1!B2", "=INT(-2.5)").
		Set("Sheet1!B3", "=SQRT(16)").
		Set("Sheet1!B4", "=SQRT(-1)").
		Set("Sheet1!B5", "=MOD(-3,2)").
		Set("Sheet1!B6", "=MOD(1,0)").
		Set("Sheet1!B7", "=ROUND(2.675,2)").
		Set("Sheet1!B8", "=ROUND(1234,-2)").
		Set("Sheet1!B9", "=ROUNDUP(-1.21,1)").
		Set("Sheet1!B10", "=ROUNDDOWN(1.29,1)").
		Set("Sheet1!B11", "=FLOOR(7,2)").
		Set("Sheet1!B12", "=CEILING(7,2)").
		Set("Sheet1!B13", "=POWER(2,10)").
		Set("Sheet1!B14", "=LN(0)").
		Set("Sheet1!B15", "=SIGN(-4)").
		Set("Sheet1!B16", "=ROUND(PI(),4)").
		Run().
		AssertCellEq("Sheet1!B1", 3).
		AssertCellEq("Sheet1!B2", -3).
		AssertCellEq("Sheet1!B3", 4).
		AssertCellErr("Sheet1!B4", ErrorCodeNum).
		AssertCellEq("Sheet1!B5", 1).
		AssertCellErr("Sheet1!B6", ErrorCodeDiv0).
		AssertCellEq("Sheet1!B7", 2.68).
		AssertCellEq("Sheet1!B8", 1200).
		AssertCellEq("Sheet1!B9", -1.3).
		AssertCellEq("Sheet1!B10", 1.2).
		AssertCellEq("Sheet1!B11", 6).
		AssertCellEq("Sheet1!B12", 8).
		AssertCellEq("Sheet1!B13", 1024).
		AssertCellErr("Sheet1!B14", ErrorCodeNum).
		AssertCellEq("Sheet1!B15", -1).
		AssertCellEq("Sheet1!B16", 3.1416).
		End()

	NewSpreadsheetTestCase(t, "SUMPRODUCT").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A2", 2.0).
		Set("Sheet1!A3", 3.0).
		Set("Sheet1!B1", 4.0).
		Set("Sheet1!B2", 5.0).
		Set("Sheet1!B3", 6.0).
		Set("Sheet1!C1", "=SUMPRODUCT(A1:A3,B1:B3)").
		Set("Sheet1!C2", "=SUMPRODUCT(A1:A3,B1:B2)").
		Run().
		AssertCellEq("Sheet1!C1", 32).
		AssertCellErr("Sheet1!C2", ErrorCodeValue).
		End()
}

func TestVolatileFunctions(t *testing.T) {
	clock := FixedClock(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))

	NewSpreadsheetTestCase(t, "NOW and TODAY", WithClock(clock)).
		Set("Sheet1!A1", "=NOW()").
		Set("Sheet1!A2", "=TODAY()").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A1", 45292.75).
		AssertCellEq("Sheet1!A2", 45292).
		End()

	NewSpreadsheetTestCase(t, "RAND is recomputed on every calculation", WithRandom(&sequence{})).
		Set("Sheet1!A1", "=RAND()").
		Set("Sheet1!B1", "=A1*100").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A1", 0.1).
		AssertCellEq("Sheet1!B1", 10).
		// reads between calculations see the cached value
		AssertCellEq("Sheet1!A1", 0.1).
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A1", 0.2).
		AssertCellEq("Sheet1!B1", 20).
		End()
}

func TestCellReferences(t *testing.T) {
	NewSpreadsheetTestCase(t, "Absolute and relative references").
		Set("Sheet1!A1", 2.0).
		Set("Sheet1!B1", "=$A$1*3").
		Set("Sheet1!C1", "=A$1+$A1").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!B1", 6).
		AssertCellEq("Sheet1!C1", 4).
		End()

	NewSpreadsheetTestCase(t, "Chained references").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A2", "=A1+1").
		Set("Sheet1!A3", "=A2+1").
		Set("Sheet1!A4", "=A3+1").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A4", 4).
		End()

	NewSpreadsheetTestCase(t, "Unprefixed addresses use the active worksheet").
		AddWorksheet("Sheet2").
		Set("A1", 5.0).
		Set("Sheet2!A1", 1.0).
		Set("Sheet2!B1", "=A1*2").
		Set("B1", "=A1*2").
		AssertCellEq("Sheet1!A1", 5).
		AssertCellEq("Sheet2!B1", 2).
		AssertCellEq("B1", 10).
		End()
}

func TestRangeReferences(t *testing.T) {
	NewSpreadsheetTestCase(t, "Implicit intersection").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A2", 2.0).
		Set("Sheet1!A3", 3.0).
		Set("Sheet1!B2", "=A1:A3").
		Set("Sheet1!B5", "=A1:A3").
		Set("Sheet1!C2", "=A1:A3*10").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!B2", 2).
		AssertCellEq("Sheet1!B5", 1).
		AssertCellEq("Sheet1!C2", 10).
		End()

	NewSpreadsheetTestCase(t, "Broadcast inside aggregates").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A2", 2.0).
		Set("Sheet1!A3", 3.0).
		Set("Sheet1!B1", "=SUM(A1:A3*2)").
		Set("Sheet1!B2", "=SUM(A1:A3*{1,10})").
		Set("Sheet1!B3", "=SUM({1,2,3}+{10;20})").
		Set("Sheet1!B4", "=SUM(A1:A3+{1;2})").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!B1", 12).
		AssertCellEq("Sheet1!B2", 66).
		AssertCellEq("Sheet1!B3", 102).
		AssertCellErr("Sheet1!B4", ErrorCodeValue).
		End()

	NewSpreadsheetTestCase(t, "Whole columns and intersection").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A100", 2.0).
		Set("Sheet1!B1", "=SUM(A:A)").
		Set("Sheet1!B2", 4.0).
		Set("Sheet1!B3", "=SUM(A1 C1)").
		Set("Sheet1!D1", "=SUM(A1:B2 B1:C3)").
		Run().
		AssertCellEq("Sheet1!B1", 3).
		AssertCellEq("Sheet1!D1", 7).
		AssertCellErr("Sheet1!B3", ErrorCodeNull).
		End()
}

func TestWorksheetOperations(t *testing.T) {
	NewSpreadsheetTestCase(t, "Add and rename").
		AddWorksheet("Data").
		AssertWorksheetExists("Data", true).
		AddWorksheet("data").
		ExpectAppError(AlreadyExists).
		RenameWorksheet("Data", "Input").
		AssertWorksheetExists("Data", false).
		AssertWorksheetExists("Input", true).
		RenameWorksheet("Missing", "Other").
		ExpectAppError(NotFound).
		AddWorksheet("Bad!Name").
		ExpectAppError(InvalidArgument).
		End()

	NewSpreadsheetTestCase(t, "Formulas follow a renamed worksheet").
		AddWorksheet("Data").
		Set("Data!A1", 3.0).
		Set("Sheet1!A1", "=Data!A1*2").
		RunAndAssertNoError().
		RenameWorksheet("Data", "Input").
		Set("Input!A1", 4.0).
		AssertCellEq("Sheet1!A1", 8).
		End()

	NewSpreadsheetTestCase(t, "Removing a worksheet turns references into #REF!").
		AddWorksheet("Data").
		Set("Data!A1", 3.0).
		Set("Sheet1!A1", "=Data!A1*2").
		Set("Sheet1!A2", "=SUM(Data!A1:A3)").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A1", 6).
		RemoveWorksheet("Data").
		AssertWorksheetExists("Data", false).
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		AssertCellErr("Sheet1!A2", ErrorCodeRef).
		RemoveWorksheet("Data").
		ExpectAppError(NotFound).
		End()

	NewSpreadsheetTestCase(t, "Unknown worksheet in a formula").
		Set("Sheet1!A1", "=Later!A1").
		AddWorksheet("Later").
		Set("Later!A1", 1.0).
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		End()
}

func TestNamedRangeOperations(t *testing.T) {
	NewSpreadsheetTestCase(t, "Define, use and remove").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A2", 2.0).
		Set("Sheet1!A3", 3.0).
		Set("Sheet1!B1", "=SUM(Values)").
		AssertCellErr("Sheet1!B1", ErrorCodeName).
		DefineNamedRange("Values", "A1:A3").
		AssertNamedRangeExists("Values", true).
		AssertCellEq("Sheet1!B1", 6).
		DefineNamedRange("Values", "A1:A2").
		AssertCellEq("Sheet1!B1", 3).
		RemoveNamedRange("Values").
		AssertNamedRangeExists("Values", false).
		AssertCellErr("Sheet1!B1", ErrorCodeName).
		RemoveNamedRange("Values").
		ExpectAppError(NotFound).
		End()

	NewSpreadsheetTestCase(t, "Single cell name").
		Set("Sheet1!C3", 0.2).
		DefineNamedRange("Rate", "Sheet1!$C$3").
		Set("Sheet1!A1", "=100*Rate").
		AssertCellEq("Sheet1!A1", 20).
		End()

	NewSpreadsheetTestCase(t, "Rename").
		Set("Sheet1!A1", 1.0).
		DefineNamedRange("Old", "A1").
		RenameNamedRange("Old", "New").
		AssertNamedRangeExists("Old", false).
		AssertNamedRangeExists("New", true).
		RenameNamedRange("Missing", "Other").
		ExpectAppError(NotFound).
		DefineNamedRange("B2", "A1").
		ExpectAppError(InvalidArgument).
		End()

	tc := NewSpreadsheetTestCase(t, "Referenced but undefined names").
		Set("Sheet1!A1", "=Missing+1")
	if got := tc.spreadsheet.ListReferencedNamedRanges(); len(got) != 1 || got[0] != "Missing" {
		t.Errorf("ListReferencedNamedRanges() = %v, want [Missing]", got)
	}
	tc.End()
}

func TestErrorPropagation(t *testing.T) {
	NewSpreadsheetTestCase(t, "Errors flow through formulas").
		Set("Sheet1!A1", "=1/0").
		Set("Sheet1!A2", "=A1+1").
		Set("Sheet1!A3", `=A2&"x"`).
		Set("Sheet1!A4", "=NA()+A1").
		Set("Sheet1!A5", "=UNKNOWNFN(1)").
		Set("Sheet1!A6", "=ABS()").
		Run().
		AssertCellErr("Sheet1!A2", ErrorCodeDiv0).
		AssertCellErr("Sheet1!A3", ErrorCodeDiv0).
		AssertCellErr("Sheet1!A4", ErrorCodeNA).
		AssertCellErr("Sheet1!A5", ErrorCodeName).
		AssertCellErr("Sheet1!A6", ErrorCodeValue).
		End()
}

func TestUpdateAndRecalculation(t *testing.T) {
	NewSpreadsheetTestCase(t, "Updates invalidate dependents").
		Set("Sheet1!A1", 10.0).
		Set("Sheet1!A2", "=A1*2").
		Set("Sheet1!A3", "=SUM(A1:A2)").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A3", 30).
		Set("Sheet1!A1", 20.0).
		AssertCellEq("Sheet1!A2", 40).
		AssertCellEq("Sheet1!A3", 60).
		Remove("Sheet1!A1").
		AssertCellEq("Sheet1!A2", 0).
		AssertCellEq("Sheet1!A3", 0).
		End()

	NewSpreadsheetTestCase(t, "Replacing a formula").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!B1", "=A1+1").
		AssertCellEq("Sheet1!B1", 2).
		Set("Sheet1!B1", "=A1+10").
		AssertCellEq("Sheet1!B1", 11).
		Set("Sheet1!B1", 5.0).
		Set("Sheet1!A1", 100.0).
		AssertCellEq("Sheet1!B1", 5).
		End()
}

func TestAdvancedCircularReferences(t *testing.T) {
	NewSpreadsheetTestCase(t, "Self reference").
		Set("Sheet1!A1", "=A1+1").
		Run().
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		End()

	NewSpreadsheetTestCase(t, "Two cell cycle").
		Set("Sheet1!A1", "=B1").
		Set("Sheet1!B1", "=A1").
		Run().
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		AssertCellErr("Sheet1!B1", ErrorCodeRef).
		End()

	NewSpreadsheetTestCase(t, "Range containing the cell").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A3", "=SUM(A1:A3)").
		Run().
		AssertCellErr("Sheet1!A3", ErrorCodeRef).
		End()

	NewSpreadsheetTestCase(t, "Breaking the cycle recovers").
		Set("Sheet1!A1", "=B1").
		Set("Sheet1!B1", "=A1").
		Run().
		AssertCellErr("Sheet1!A1", ErrorCodeRef).
		Set("Sheet1!B1", 7.0).
		AssertCellEq("Sheet1!A1", 7).
		End()
}

func TestLookupFunctions(t *testing.T) {
	NewSpreadsheetTestCase(t, "INDEX OFFSET CHOOSE").
		Set("Sheet1!A1", 1.0).
		Set("Sheet1!A2", 2.0).
		Set("Sheet1!B1", 3.0).
		Set("Sheet1!B2", 4.0).
		Set("Sheet1!C1", "=INDEX(A1:B2,2,2)").
		Set("Sheet1!C2", "=SUM(INDEX(A1:B2,0,1))").
		Set("Sheet1!C3", "=INDEX(A1:B2,3,1)").
		Set("Sheet1!C4", "=SUM(OFFSET(A1,0,0,2,2))").
		Set("Sheet1!C5", "=OFFSET(A1,1,1)").
		Set("Sheet1!C6", `=CHOOSE(2,"a","b","c")`).
		Set("Sheet1!C7", "=CHOOSE(4,1,2,3)").
		Set("Sheet1!C8", "=ROWS(A1:B5)*COLUMNS(A1:B5)").
		Set("Sheet1!C9", "=ROW()+COLUMN(B7)").
		Run().
		AssertCellEq("Sheet1!C1", 4).
		AssertCellEq("Sheet1!C2", 3).
		AssertCellErr("Sheet1!C3", ErrorCodeRef).
		AssertCellEq("Sheet1!C4", 10).
		AssertCellEq("Sheet1!C5", 4).
		AssertCellEq("Sheet1!C6", "b").
		AssertCellErr("Sheet1!C7", ErrorCodeValue).
		AssertCellEq("Sheet1!C8", 10).
		AssertCellEq("Sheet1!C9", 11).
		End()
}

func TestUnimplementedFunctions(t *testing.T) {
	NewSpreadsheetTestCase(t, "Unimplemented function").
		Set("Sheet1!A1", `=INDIRECT("B1")`).
		Set("Sheet1!A2", "=A1+1").
		AssertCellUnimplemented("Sheet1!A1", "INDIRECT").
		AssertCellUnimplemented("Sheet1!A2", "INDIRECT").
		End()

	NewSpreadsheetTestCase(t, "Union operator").
		Set("Sheet1!A1", "=SUM((B1,C1))").
		AssertCellUnimplemented("Sheet1!A1", "union operator").
		End()

	tc := NewSpreadsheetTestCase(t, "Calculate stops at an unimplemented function").
		Set("Sheet1!A1", `=INDIRECT("B1")`)
	err := tc.spreadsheet.Calculate(context.Background())
	if !errors.Is(err, ErrUnimplemented) {
		t.Errorf("Calculate() = %v, want ErrUnimplemented", err)
	}
	tc.End()
}

func TestCrossWorksheetReferences(t *testing.T) {
	NewSpreadsheetTestCase(t, "Cross worksheet").
		AddWorksheet("My Data").
		Set("'My Data'!A1", 5.0).
		Set("'My Data'!A2", 6.0).
		Set("Sheet1!A1", "=SUM('My Data'!A1:A2)").
		Set("Sheet1!A2", "='My Data'!A1*2").
		RunAndAssertNoError().
		AssertCellEq("Sheet1!A1", 11).
		AssertCellEq("Sheet1!A2", 10).
		Set("'My Data'!A1", 1.0).
		AssertCellEq("Sheet1!A1", 7).
		End()
}

func TestStabilityClassifier(t *testing.T) {
	// worksheet 2 is final: its cells are not tracked as precedents
	tc := NewSpreadsheetTestCase(t, "Final cells are not tracked", WithStabilityClassifier(FinalSheets(2))).
		AddWorksheet("Inputs").
		Set("Inputs!A1", 1.0).
		Set("Sheet1!A1", "=Inputs!A1*10").
		AssertCellEq("Sheet1!A1", 10).
		Set("Inputs!A1", 2.0).
		AssertCellEq("Sheet1!A1", 10)

	tc.spreadsheet.ClearCache()
	tc.AssertCellEq("Sheet1!A1", 20).End()
}

func TestComplexRealWorldScenarios(t *testing.T) {
	NewSpreadsheetTestCase(t, "Invoice").
		AddWorksheet("Rates").
		Set("Rates!A1", 0.2).
		Set("Sheet1!A1", 2.0).
		Set("Sheet1!B1", 10.0).
		Set("Sheet1!A2", 3.0).
		Set("Sheet1!B2", 5.5).
		Set("Sheet1!C1", "=A1*B1").
		Set("Sheet1!C2", "=A2*B2").
		Set("Sheet1!C3", "=SUM(C1:C2)").
		Set("Sheet1!C4", "=ROUND(C3*Rates!A1,2)").
		Set("Sheet1!C5", "=C3+C4").
		Set("Sheet1!C6", `=IF(C5>40,"review","ok")`).
		RunAndAssertNoError().
		AssertCellEq("Sheet1!C3", 36.5).
		AssertCellEq("Sheet1!C4", 7.3).
		AssertCellEq("Sheet1!C5", 43.8).
		AssertCellEq("Sheet1!C6", "review").
		Set("Rates!A1", 0.0).
		AssertCellEq("Sheet1!C6", "ok").
		End()
}

func TestRunnableSpreadsheet(t *testing.T) {
	var lines []string
	printLn := func(s string) { lines = append(lines, s) }

	r := NewRunnableSpreadsheet(printLn).
		Set("A1", 10).
		Set("A2", "=A1*2").
		SetBatch(map[string]any{"B1": 1, "B2": 2}).
		Set("B3", "=SUM(B1:B2)").
		Calculate().
		Log("A2").
		Log("C1").
		CheckError()

	if r.Error() != nil {
		t.Fatalf("unexpected error: %v", r.Error())
	}
	if v := r.Value("B3"); !valueEqual(v, Number(3)) {
		t.Errorf("B3 = %v, want 3", v)
	}
	want := []string{"A2: 20", "C1: <empty>", "No errors"}
	if fmt.Sprint(lines) != fmt.Sprint(want) {
		t.Errorf("log = %q, want %q", lines, want)
	}

	r = NewRunnableSpreadsheet(printLn).
		Set("Nowhere!A1", 1).
		Set("A1", 2)
	if r.Error() == nil {
		t.Fatal("expected an error for an unknown worksheet")
	}
	if r.Value("A1") != nil {
		t.Error("chain should stop after the first error")
	}
	if _, err := r.Reset().Run(); err != nil {
		t.Errorf("Run() after Reset = %v", err)
	}
}
