package formula

import (
	"math"
	"slices"
)

func statFunctions() []FunctionDef {
	return []FunctionDef{
		aggregate("SUM", collectNumbers, sum),
		aggregate("AVERAGE", collectNumbers, average),
		aggregate("AVERAGEA", collectNumbersA, average),
		aggregate("MAX", collectNumbers, func(nums []float64) Value {
			if len(nums) == 0 {
				return Number(0)
			}
			return Number(slices.Max(nums))
		}),
		aggregate("MIN", collectNumbers, func(nums []float64) Value {
			if len(nums) == 0 {
				return Number(0)
			}
			return Number(slices.Min(nums))
		}),
		aggregate("MEDIAN", collectNumbers, median),
		aggregate("MODE", collectNumbers, mode),
		aggregate("GEOMEAN", collectNumbers, func(nums []float64) Value {
			if len(nums) == 0 {
				return ErrNum
			}
			logSum := 0.0
			for _, n := range nums {
				if n <= 0 {
					return ErrNum
				}
				logSum += math.Log(n)
			}
			return Number(math.Exp(logSum / float64(len(nums))))
		}),
		aggregate("VAR", collectNumbers, variance),
		aggregate("STDEV", collectNumbers, func(nums []float64) Value {
			v := variance(nums)
			if n, ok := v.(Number); ok {
				return Number(math.Sqrt(float64(n)))
			}
			return v
		}),
		{
			Name:    "COUNT",
			MinArgs: 1,
			MaxArgs: -1,
			Args:    []ArgKind{ArgNumbers},
			Impl:    FunctionFunc(count),
		},
		{
			Name:    "COUNTA",
			MinArgs: 1,
			MaxArgs: -1,
			Args:    []ArgKind{ArgNumbers},
			Impl:    FunctionFunc(countA),
		},
		{
			Name:    "COUNTBLANK",
			MinArgs: 1,
			MaxArgs: 1,
			Args:    []ArgKind{ArgReference},
			Impl:    FunctionFunc(countBlank),
		},
	}
}

func sum(nums []float64) Value {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Number(total)
}

func average(nums []float64) Value {
	if len(nums) == 0 {
		return ErrDiv0
	}
	return Number(float64(sum(nums).(Number)) / float64(len(nums)))
}

func median(nums []float64) Value {
	if len(nums) == 0 {
		return ErrNum
	}
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return Number(sorted[mid])
	}
	return Number((sorted[mid-1] + sorted[mid]) / 2)
}

// mode returns the most frequent number; ties go to the value seen first
func mode(nums []float64) Value {
	counts := make(map[float64]int, len(nums))
	most := 0
	for _, n := range nums {
		counts[n]++
		most = max(most, counts[n])
	}
	if most < 2 {
		return ErrNA
	}
	for _, n := range nums {
		if counts[n] == most {
			return Number(n)
		}
	}
	return ErrNA
}

// variance is the sample variance
func variance(nums []float64) Value {
	if len(nums) < 2 {
		return ErrDiv0
	}
	mean := float64(sum(nums).(Number)) / float64(len(nums))
	squares := 0.0
	for _, n := range nums {
		squares += (n - mean) * (n - mean)
	}
	return Number(squares / float64(len(nums)-1))
}

// count counts numbers found by reference and literal arguments that
// coerce to a number. errors are not counted.
func count(_ *OperationContext, args []Value) (Value, error) {
	n := 0
	walkArgs(args, func(v Value, byRef bool) bool {
		if byRef {
			if _, ok := v.(Number); ok {
				n++
			}
			return true
		}
		switch v.(type) {
		case *SpreadsheetError, BlankValue:
			return true
		}
		if _, err := ToNumber(v); err == nil {
			n++
		}
		return true
	})
	return Number(n), nil
}

// countA counts every non-empty value, errors included. missing literal
// arguments are not counted.
func countA(_ *OperationContext, args []Value) (Value, error) {
	n := 0
	walkArgs(args, func(v Value, _ bool) bool {
		if _, blank := v.(BlankValue); !blank {
			n++
		}
		return true
	})
	return Number(n), nil
}

// countBlank counts empty cells and cells holding empty text
func countBlank(_ *OperationContext, args []Value) (Value, error) {
	switch args[0].(type) {
	case *CellRef, *Area:
	case *SpreadsheetError:
		return args[0], nil
	default:
		return ErrValue, nil
	}
	n := 0
	walkArgs(args, func(v Value, _ bool) bool {
		switch x := v.(type) {
		case BlankValue:
			n++
		case Text:
			if x == "" {
				n++
			}
		}
		return true
	})
	return Number(n), nil
}
