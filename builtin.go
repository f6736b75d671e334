package formula

import "slices"

// builtinFunctions returns the definitions of the built-in library
func builtinFunctions() []FunctionDef {
	return slices.Concat(
		mathFunctions(),
		statFunctions(),
		logicalFunctions(),
		infoFunctions(),
		textFunctions(),
		lookupFunctions(),
		volatileFunctions(),
		unimplementedFunctions(),
	)
}

// unimplementedFunctions are known to the parser but not evaluated. calls
// fail with ErrUnimplemented instead of a spreadsheet error.
func unimplementedFunctions() []FunctionDef {
	names := []string{"INDIRECT", "CELL", "INFO", "GETPIVOTDATA", "HYPERLINK"}
	defs := make([]FunctionDef, len(names))
	for i, name := range names {
		defs[i] = FunctionDef{
			Name:    name,
			MinArgs: 0,
			MaxArgs: -1,
			Args:    []ArgKind{ArgReference},
			Impl:    unimplemented(name),
		}
	}
	return defs
}

// fixed builds a function taking exactly len(kinds) arguments
func fixed(name string, kinds []ArgKind, fn FunctionFunc) FunctionDef {
	return FunctionDef{
		Name:    name,
		MinArgs: len(kinds),
		MaxArgs: len(kinds),
		Args:    kinds,
		Impl:    fn,
	}
}

// number1 builds a function of one numeric argument
func number1(name string, fn func(x float64) Value) FunctionDef {
	return fixed(name, []ArgKind{ArgNumber}, func(_ *OperationContext, args []Value) (Value, error) {
		return checkNumber(fn(num(args[0]))), nil
	})
}

// number2 builds a function of two numeric arguments
func number2(name string, fn func(x, y float64) Value) FunctionDef {
	return fixed(name, []ArgKind{ArgNumber, ArgNumber}, func(_ *OperationContext, args []Value) (Value, error) {
		return checkNumber(fn(num(args[0]), num(args[1]))), nil
	})
}

// aggregate builds a variadic function over the flattened numbers of its
// arguments
func aggregate(name string, collect func([]Value) ([]float64, *SpreadsheetError), fn func(nums []float64) Value) FunctionDef {
	return FunctionDef{
		Name:    name,
		MinArgs: 1,
		MaxArgs: -1,
		Args:    []ArgKind{ArgNumbers},
		Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
			nums, err := collect(args)
			if err != nil {
				return err, nil
			}
			return checkNumber(fn(nums)), nil
		}),
	}
}

// num reads a coerced ArgNumber argument
func num(v Value) float64 {
	return float64(v.(Number))
}

// optNumber reads an optional ArgNumber argument
func optNumber(args []Value, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	return num(args[i])
}

// checkNumber turns non-finite results into #NUM!
func checkNumber(v Value) Value {
	if n, ok := v.(Number); ok && !isFinite(float64(n)) {
		return ErrNum
	}
	return v
}
