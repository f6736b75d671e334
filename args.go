package formula

// walkArgs visits every value of args left to right. areas and cell
// references are flattened and their values reported with byRef set;
// literal arguments are reported as they are. visit returns false to stop.
func walkArgs(args []Value, visit func(v Value, byRef bool) bool) {
	for _, arg := range args {
		switch x := arg.(type) {
		case *CellRef:
			if !visit(x.Value(), true) {
				return
			}
		case *Area:
			for v := range x.Values() {
				if !visit(v, true) {
					return
				}
			}
		default:
			if !visit(arg, false) {
				return
			}
		}
	}
}

// collectNumbers gathers the numeric contributions of aggregate arguments.
// non-numeric values found by reference (text, booleans, blanks) are
// skipped; literal arguments are coerced, so "3" counts as 3 and "foo" is
// #VALUE!. the first error met left to right is returned.
func collectNumbers(args []Value) ([]float64, *SpreadsheetError) {
	var nums []float64
	var failure *SpreadsheetError
	walkArgs(args, func(v Value, byRef bool) bool {
		if err, ok := v.(*SpreadsheetError); ok {
			failure = err
			return false
		}
		if byRef {
			if num, ok := v.(Number); ok {
				nums = append(nums, float64(num))
			}
			return true
		}
		num, err := ToNumber(v)
		if err != nil {
			failure = err
			return false
		}
		nums = append(nums, num)
		return true
	})
	return nums, failure
}

// collectNumbersA is the policy of the *A aggregates: referenced text
// counts as 0, referenced booleans as 1 or 0, referenced blanks are
// skipped. literals are coerced like collectNumbers does.
func collectNumbersA(args []Value) ([]float64, *SpreadsheetError) {
	var nums []float64
	var failure *SpreadsheetError
	walkArgs(args, func(v Value, byRef bool) bool {
		if err, ok := v.(*SpreadsheetError); ok {
			failure = err
			return false
		}
		if byRef {
			switch x := v.(type) {
			case Number:
				nums = append(nums, float64(x))
			case Boolean:
				if x {
					nums = append(nums, 1)
				} else {
					nums = append(nums, 0)
				}
			case Text:
				nums = append(nums, 0)
			}
			return true
		}
		num, err := ToNumber(v)
		if err != nil {
			failure = err
			return false
		}
		nums = append(nums, num)
		return true
	})
	return nums, failure
}

// flattenValues returns every value of args in order, keeping errors
func flattenValues(args []Value) []Value {
	var values []Value
	walkArgs(args, func(v Value, _ bool) bool {
		values = append(values, v)
		return true
	})
	return values
}
