package formula

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
)

// binaryOperators maps infix operators to their scalar implementations
var binaryOperators = map[Operator]BinaryFunc{
	OpAdd:      arithmetic(func(x, y float64) Value { return Number(x + y) }),
	OpSubtract: arithmetic(func(x, y float64) Value { return Number(x - y) }),
	OpMultiply: arithmetic(func(x, y float64) Value { return Number(x * y) }),
	OpDivide: arithmetic(func(x, y float64) Value {
		if y == 0 {
			return ErrDiv0
		}
		return Number(x / y)
	}),
	OpPower: arithmetic(power),
	OpConcat: func(left, right Value) Value {
		l, err := ToText(left)
		if err != nil {
			return err
		}
		r, err := ToText(right)
		if err != nil {
			return err
		}
		return Text(l + r)
	},
	OpEqual:        comparison(func(c int) bool { return c == 0 }),
	OpNotEqual:     comparison(func(c int) bool { return c != 0 }),
	OpLess:         comparison(func(c int) bool { return c < 0 }),
	OpLessEqual:    comparison(func(c int) bool { return c <= 0 }),
	OpGreater:      comparison(func(c int) bool { return c > 0 }),
	OpGreaterEqual: comparison(func(c int) bool { return c >= 0 }),
}

// unaryOperators maps prefix and postfix operators to their scalar
// implementations
var unaryOperators = map[Operator]UnaryFunc{
	OpNegate: func(v Value) Value {
		num, err := ToNumber(v)
		if err != nil {
			return err
		}
		return Number(-num)
	},
	OpPlus: func(v Value) Value {
		if _, blank := v.(BlankValue); blank {
			return Number(0)
		}
		return v
	},
	OpPercent: func(v Value) Value {
		num, err := ToNumber(v)
		if err != nil {
			return err
		}
		return Number(num / 100)
	},
}

// BinaryOperator returns the scalar implementation of an infix operator
func BinaryOperator(op Operator) (BinaryFunc, bool) {
	fn, ok := binaryOperators[op]
	return fn, ok
}

// UnaryOperator returns the scalar implementation of a prefix or postfix
// operator
func UnaryOperator(op Operator) (UnaryFunc, bool) {
	fn, ok := unaryOperators[op]
	return fn, ok
}

func arithmetic(fn func(x, y float64) Value) BinaryFunc {
	return func(left, right Value) Value {
		x, err := ToNumber(left)
		if err != nil {
			return err
		}
		y, err := ToNumber(right)
		if err != nil {
			return err
		}
		result := fn(x, y)
		if num, ok := result.(Number); ok && (math.IsInf(float64(num), 0) || math.IsNaN(float64(num))) {
			return ErrNum
		}
		return result
	}
}

func power(x, y float64) Value {
	if x == 0 && y == 0 {
		return ErrNum
	}
	if x == 0 && y < 0 {
		return ErrDiv0
	}
	return Number(math.Pow(x, y))
}

func comparison(test func(c int) bool) BinaryFunc {
	return func(left, right Value) Value {
		return Boolean(test(CompareValues(left, right)))
	}
}

// typeRank orders values of different kinds: numbers < text < booleans
func typeRank(v Value) int {
	switch v.(type) {
	case Number:
		return 0
	case Text:
		return 1
	case Boolean:
		return 2
	}
	return -1
}

// CompareValues compares two non-error scalars the way comparison
// operators do. a blank compares as the zero value of the other side;
// text comparison ignores case.
func CompareValues(left, right Value) int {
	_, leftBlank := left.(BlankValue)
	_, rightBlank := right.(BlankValue)
	switch {
	case leftBlank && rightBlank:
		return 0
	case leftBlank:
		left = zeroOf(right)
	case rightBlank:
		right = zeroOf(left)
	}

	lr, rr := typeRank(left), typeRank(right)
	if lr != rr {
		return compareInts(lr, rr)
	}

	switch l := left.(type) {
	case Number:
		r := right.(Number)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
		return 0
	case Text:
		return strings.Compare(foldText(string(l)), foldText(string(right.(Text))))
	case Boolean:
		r := right.(Boolean)
		if l == r {
			return 0
		}
		if !l {
			return -1
		}
		return 1
	}
	return 0
}

// foldText case-folds s for comparison. a Caser keeps state, so each call
// gets its own.
func foldText(s string) string {
	return cases.Fold().String(s)
}

func zeroOf(v Value) Value {
	switch v.(type) {
	case Text:
		return Text("")
	case Boolean:
		return Boolean(false)
	}
	return Number(0)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
