package formula

import (
	"math"
	"strconv"
)

func mathFunctions() []FunctionDef {
	return []FunctionDef{
		number1("ABS", func(x float64) Value { return Number(math.Abs(x)) }),
		number1("INT", func(x float64) Value { return Number(math.Floor(x)) }),
		number1("SIGN", func(x float64) Value {
			switch {
			case x > 0:
				return Number(1)
			case x < 0:
				return Number(-1)
			}
			return Number(0)
		}),
		number1("SQRT", func(x float64) Value {
			if x < 0 {
				return ErrNum
			}
			return Number(math.Sqrt(x))
		}),
		number1("EXP", func(x float64) Value { return Number(math.Exp(x)) }),
		number1("LN", func(x float64) Value {
			if x <= 0 {
				return ErrNum
			}
			return Number(math.Log(x))
		}),
		number1("LOG10", func(x float64) Value {
			if x <= 0 {
				return ErrNum
			}
			return Number(math.Log10(x))
		}),
		number2("POWER", func(x, y float64) Value { return power(x, y) }),
		number2("MOD", func(n, d float64) Value {
			if d == 0 {
				return ErrDiv0
			}
			return Number(n - d*math.Floor(n/d))
		}),
		fixed("PI", nil, func(*OperationContext, []Value) (Value, error) {
			return Number(math.Pi), nil
		}),
		rounding("ROUND", math.Round),
		rounding("ROUNDUP", func(x float64) float64 {
			if x < 0 {
				return -math.Ceil(-x)
			}
			return math.Ceil(x)
		}),
		rounding("ROUNDDOWN", math.Trunc),
		{
			Name:    "FLOOR",
			MinArgs: 1,
			MaxArgs: 2,
			Args:    []ArgKind{ArgNumber, ArgNumber},
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				x, significance := num(args[0]), optNumber(args, 1, 1)
				switch {
				case x == 0:
					return Number(0), nil
				case significance == 0:
					return ErrDiv0, nil
				case x > 0 && significance < 0:
					return ErrNum, nil
				}
				return Number(math.Floor(x/significance) * significance), nil
			}),
		},
		{
			Name:    "CEILING",
			MinArgs: 1,
			MaxArgs: 2,
			Args:    []ArgKind{ArgNumber, ArgNumber},
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				x, significance := num(args[0]), optNumber(args, 1, 1)
				switch {
				case x == 0 || significance == 0:
					return Number(0), nil
				case x > 0 && significance < 0:
					return ErrNum, nil
				}
				return Number(math.Ceil(x/significance) * significance), nil
			}),
		},
		aggregate("PRODUCT", collectNumbers, func(nums []float64) Value {
			if len(nums) == 0 {
				return Number(0)
			}
			product := 1.0
			for _, n := range nums {
				product *= n
			}
			return Number(product)
		}),
		aggregate("SUMSQ", collectNumbers, func(nums []float64) Value {
			sum := 0.0
			for _, n := range nums {
				sum += n * n
			}
			return Number(sum)
		}),
		{
			Name:    "SUMPRODUCT",
			MinArgs: 1,
			MaxArgs: -1,
			Args:    []ArgKind{ArgNumbers},
			Impl:    FunctionFunc(sumProduct),
		},
	}
}

// rounding builds ROUND-style functions: digits may be negative and
// defaults to 0
func rounding(name string, round func(float64) float64) FunctionDef {
	return FunctionDef{
		Name:    name,
		MinArgs: 1,
		MaxArgs: 2,
		Args:    []ArgKind{ArgNumber, ArgNumber},
		Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
			x := num(args[0])
			digits := math.Trunc(optNumber(args, 1, 0))
			return checkNumber(Number(roundTo(x, int(digits), round))), nil
		}),
	}
}

// roundTo rounds x to digits decimal places. the scaled value is first
// cut to 15 significant digits so that 2.675 rounds like the decimal it
// was typed as.
func roundTo(x float64, digits int, round func(float64) float64) float64 {
	if digits > 15 {
		return x
	}
	if digits < -308 {
		return 0
	}
	p := math.Pow(10, float64(digits))
	scaled, err := strconv.ParseFloat(strconv.FormatFloat(x*p, 'g', 15, 64), 64)
	if err != nil {
		scaled = x * p
	}
	return round(scaled) / p
}

// sumProduct multiplies same-shaped arrays element-wise and sums the
// products. non-numeric entries count as 0.
func sumProduct(_ *OperationContext, args []Value) (Value, error) {
	areas := make([]*Area, len(args))
	for i, arg := range args {
		if err, ok := arg.(*SpreadsheetError); ok {
			return err, nil
		}
		areas[i] = asArea(arg)
	}

	height, width := areas[0].Height(), areas[0].Width()
	for _, area := range areas[1:] {
		if area.Height() != height || area.Width() != width {
			return ErrValue, nil
		}
	}

	sum := 0.0
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			product := 1.0
			for _, area := range areas {
				switch v := area.RelativeValue(i, j).(type) {
				case *SpreadsheetError:
					return v, nil
				case Number:
					product *= float64(v)
				default:
					product = 0
				}
			}
			sum += product
		}
	}
	return checkNumber(Number(sum)), nil
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
