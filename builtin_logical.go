package formula

func logicalFunctions() []FunctionDef {
	return []FunctionDef{
		{
			Name:       "IF",
			MinArgs:    1,
			MaxArgs:    3,
			Args:       []ArgKind{ArgBoolean, ArgReference, ArgReference},
			PassErrors: true,
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				b, ok := args[0].(Boolean)
				if !ok {
					return args[0], nil // the condition is an error
				}
				cond := bool(b)
				switch {
				case cond && len(args) > 1:
					return args[1], nil
				case cond:
					return Boolean(true), nil
				case len(args) > 2:
					return args[2], nil
				}
				return Boolean(false), nil
			}),
		},
		{
			Name:       "IFERROR",
			MinArgs:    2,
			MaxArgs:    2,
			Args:       []ArgKind{ArgAny, ArgReference},
			PassErrors: true,
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				if _, isErr := args[0].(*SpreadsheetError); isErr {
					return args[1], nil
				}
				return args[0], nil
			}),
		},
		connective("AND", func(acc, b bool) bool { return acc && b }, true),
		connective("OR", func(acc, b bool) bool { return acc || b }, false),
		fixed("NOT", []ArgKind{ArgBoolean}, func(_ *OperationContext, args []Value) (Value, error) {
			return !args[0].(Boolean), nil
		}),
		fixed("TRUE", nil, func(*OperationContext, []Value) (Value, error) {
			return Boolean(true), nil
		}),
		fixed("FALSE", nil, func(*OperationContext, []Value) (Value, error) {
			return Boolean(false), nil
		}),
	}
}

// connective folds the boolean values of its arguments. referenced text
// and blanks are ignored; literal arguments are coerced. no boolean at all
// is #VALUE!.
func connective(name string, fold func(acc, b bool) bool, init bool) FunctionDef {
	return FunctionDef{
		Name:    name,
		MinArgs: 1,
		MaxArgs: -1,
		Args:    []ArgKind{ArgNumbers},
		Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
			acc, seen := init, false
			var failure *SpreadsheetError
			walkArgs(args, func(v Value, byRef bool) bool {
				switch x := v.(type) {
				case *SpreadsheetError:
					failure = x
					return false
				case Text, BlankValue:
					if byRef {
						return true
					}
				}
				b, err := ToBoolean(v)
				if err != nil {
					failure = err
					return false
				}
				acc, seen = fold(acc, b), true
				return true
			})
			switch {
			case failure != nil:
				return failure, nil
			case !seen:
				return ErrValue, nil
			}
			return Boolean(acc), nil
		}),
	}
}

func infoFunctions() []FunctionDef {
	return []FunctionDef{
		predicate("ISBLANK", func(v Value) bool {
			_, ok := v.(BlankValue)
			return ok
		}),
		predicate("ISERROR", func(v Value) bool {
			_, ok := v.(*SpreadsheetError)
			return ok
		}),
		predicate("ISERR", func(v Value) bool {
			err, ok := v.(*SpreadsheetError)
			return ok && err.ErrorCode != ErrorCodeNA
		}),
		predicate("ISNA", func(v Value) bool {
			return SameError(v, ErrorCodeNA)
		}),
		predicate("ISNUMBER", func(v Value) bool {
			_, ok := v.(Number)
			return ok
		}),
		predicate("ISTEXT", func(v Value) bool {
			_, ok := v.(Text)
			return ok
		}),
		predicate("ISLOGICAL", func(v Value) bool {
			_, ok := v.(Boolean)
			return ok
		}),
		fixed("NA", nil, func(*OperationContext, []Value) (Value, error) {
			return ErrNA, nil
		}),
		{
			Name:       "ERROR.TYPE",
			MinArgs:    1,
			MaxArgs:    1,
			Args:       []ArgKind{ArgAny},
			PassErrors: true,
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				if err, ok := args[0].(*SpreadsheetError); ok {
					return Number(err.ErrorCode), nil
				}
				return ErrNA, nil
			}),
		},
	}
}

// predicate builds an IS* function: it sees errors and never fails
func predicate(name string, test func(v Value) bool) FunctionDef {
	return FunctionDef{
		Name:       name,
		MinArgs:    1,
		MaxArgs:    1,
		Args:       []ArgKind{ArgAny},
		PassErrors: true,
		Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
			return Boolean(test(args[0])), nil
		}),
	}
}
