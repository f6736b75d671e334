package formula

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies the variant of a Value
type ValueKind uint8

const (
	KindBlank ValueKind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
	KindRef
	KindArea
)

func (k ValueKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindError:
		return "error"
	case KindRef:
		return "ref"
	case KindArea:
		return "area"
	}
	return "unknown"
}

// Value is the result of evaluating any formula fragment. the set of
// implementations is closed:
//   - Number: numeric values (dates are serial numbers)
//   - Text: string values
//   - Boolean: TRUE/FALSE
//   - BlankValue: an empty cell, distinct from 0 and ""
//   - *SpreadsheetError: #DIV/0!, #VALUE!, etc.
//   - *CellRef: a single-cell reference, not yet read
//   - *Area: a rectangular reference or a materialized array
type Value interface {
	Kind() ValueKind
	value()
}

type Number float64

type Text string

type Boolean bool

type BlankValue struct{}

// Blank is the only BlankValue
var Blank = BlankValue{}

func (Number) Kind() ValueKind     { return KindNumber }
func (Text) Kind() ValueKind       { return KindText }
func (Boolean) Kind() ValueKind    { return KindBoolean }
func (BlankValue) Kind() ValueKind { return KindBlank }

func (Number) value()     {}
func (Text) value()       {}
func (Boolean) value()    {}
func (BlankValue) value() {}

func (n Number) String() string { return formatNumber(float64(n)) }
func (t Text) String() string   { return string(t) }
func (b Boolean) String() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
func (BlankValue) String() string { return "" }

// IsScalar reports whether v can be consumed without dereferencing
func IsScalar(v Value) bool {
	switch v.(type) {
	case *CellRef, *Area:
		return false
	}
	return true
}

// ToNumber coerces a dereferenced value to a float. error operands are
// returned unchanged.
func ToNumber(v Value) (float64, *SpreadsheetError) {
	switch x := v.(type) {
	case Number:
		return float64(x), nil
	case Boolean:
		if x {
			return 1, nil
		}
		return 0, nil
	case BlankValue:
		return 0, nil
	case Text:
		if num, ok := parseNumericText(string(x)); ok {
			return num, nil
		}
		return 0, ErrValue
	case *SpreadsheetError:
		return 0, x
	}
	// references must be dereferenced by the context first
	return 0, ErrValue
}

// ToText coerces a dereferenced value to text
func ToText(v Value) (string, *SpreadsheetError) {
	switch x := v.(type) {
	case Text:
		return string(x), nil
	case Number:
		return formatNumber(float64(x)), nil
	case Boolean:
		return x.String(), nil
	case BlankValue:
		return "", nil
	case *SpreadsheetError:
		return "", x
	}
	return "", ErrValue
}

// ToBoolean coerces a dereferenced value to a boolean
func ToBoolean(v Value) (bool, *SpreadsheetError) {
	switch x := v.(type) {
	case Boolean:
		return bool(x), nil
	case Number:
		return x != 0, nil
	case BlankValue:
		return false, nil
	case Text:
		switch strings.ToUpper(strings.TrimSpace(string(x))) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		return false, ErrValue
	case *SpreadsheetError:
		return false, x
	}
	return false, ErrValue
}

// Dereference collapses a reference to a scalar as seen from the cell at
// (row, col). single-column or single-row areas use implicit intersection
// with the evaluating cell; anything else collapses to the top-left cell.
// scalars are returned as-is.
func Dereference(v Value, row, col uint32) Value {
	switch x := v.(type) {
	case *CellRef:
		return x.Value()
	case *Area:
		return x.singleValue(row, col)
	}
	return v
}

// parseNumericText accepts a complete trimmed number or a boolean literal
func parseNumericText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return 1, true
	case "FALSE":
		return 0, true
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(num, 0) || math.IsNaN(num) {
		return 0, false
	}
	// ParseFloat accepts hex floats and underscores, spreadsheets do not
	for _, ch := range s {
		if (ch < '0' || ch > '9') && !strings.ContainsRune("+-.eE", ch) {
			return 0, false
		}
	}
	return num, true
}

// formatNumber renders a number the way the "General" format does: up to
// 15 significant digits and an upper-case exponent when one is needed.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', 15, 64)
	if mant, exp, found := strings.Cut(s, "e"); found {
		if strings.Contains(mant, ".") {
			mant = strings.TrimRight(strings.TrimRight(mant, "0"), ".")
		}
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if len(digits) < 2 {
			digits = strings.Repeat("0", 2-len(digits)) + digits
		}
		return mant + "E" + sign + digits
	}
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// valueEqual compares two scalars for test and cache purposes. numbers
// compare exactly; errors compare by code.
func valueEqual(a, b Value) bool {
	switch x := a.(type) {
	case *SpreadsheetError:
		y, ok := b.(*SpreadsheetError)
		return ok && x.ErrorCode == y.ErrorCode
	case Number, Text, Boolean, BlankValue:
		return a == b
	}
	return false
}
