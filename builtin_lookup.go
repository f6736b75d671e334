package formula

import "math"

// grid limits for references produced by OFFSET
const (
	maxRows    = 1048576
	maxColumns = 16384
)

func lookupFunctions() []FunctionDef {
	return []FunctionDef{
		{
			Name:    "INDEX",
			MinArgs: 2,
			MaxArgs: 3,
			Args:    []ArgKind{ArgReference, ArgNumber, ArgNumber},
			Impl:    FunctionFunc(index),
		},
		{
			Name:     "OFFSET",
			MinArgs:  3,
			MaxArgs:  5,
			Args:     []ArgKind{ArgReference, ArgNumber, ArgNumber, ArgNumber, ArgNumber},
			Volatile: true,
			Impl:     FunctionFunc(offset),
		},
		fixed("ROWS", []ArgKind{ArgReference}, func(_ *OperationContext, args []Value) (Value, error) {
			if err, ok := args[0].(*SpreadsheetError); ok {
				return err, nil
			}
			h, _ := shape(args[0])
			return Number(h), nil
		}),
		fixed("COLUMNS", []ArgKind{ArgReference}, func(_ *OperationContext, args []Value) (Value, error) {
			if err, ok := args[0].(*SpreadsheetError); ok {
				return err, nil
			}
			_, w := shape(args[0])
			return Number(w), nil
		}),
		position("ROW", func(a CellAddress) uint32 { return a.Row }),
		position("COLUMN", func(a CellAddress) uint32 { return a.Column }),
		{
			Name:    "CHOOSE",
			MinArgs: 2,
			MaxArgs: -1,
			Args:    []ArgKind{ArgNumber, ArgReference},
			Impl: FunctionFunc(func(_ *OperationContext, args []Value) (Value, error) {
				i := math.Trunc(num(args[0]))
				if i < 1 || i > float64(len(args)-1) {
					return ErrValue, nil
				}
				return args[int(i)], nil
			}),
		},
	}
}

// index returns the cell or the row/column slice of a reference. a row or
// column number of 0 selects the whole column or row.
func index(_ *OperationContext, args []Value) (Value, error) {
	if err, ok := args[0].(*SpreadsheetError); ok {
		return err, nil
	}
	area := asArea(args[0])
	row, col := math.Trunc(num(args[1])), 0.0
	switch {
	case len(args) == 3:
		col = math.Trunc(num(args[2]))
	case area.Height() == 1:
		// a single row is indexed by column
		row, col = 1, row
	case area.Width() == 1:
		col = 1
	}
	if row < 0 || col < 0 || row > float64(area.Height()) || col > float64(area.Width()) {
		return ErrRef, nil
	}

	row0, row1 := 0, area.Height()-1
	if row > 0 {
		row0, row1 = int(row)-1, int(row)-1
	}
	col0, col1 := 0, area.Width()-1
	if col > 0 {
		col0, col1 = int(col)-1, int(col)-1
	}

	sub := area.Offset(row0, row1, col0, col1)
	if sub.Height() == 1 && sub.Width() == 1 {
		if sub.IsSynthetic() {
			return sub.RelativeValue(0, 0), nil
		}
		return NewCellRef(sub.Bounds.TopLeft(), sub.source), nil
	}
	return sub, nil
}

// offset shifts and resizes a reference. the result may lie outside the
// original reference and is recorded as a new precedent.
func offset(ec *OperationContext, args []Value) (Value, error) {
	var base RangeAddress
	switch x := args[0].(type) {
	case *SpreadsheetError:
		return x, nil
	case *CellRef:
		base = CellRange(x.Address)
	case *Area:
		if x.IsSynthetic() {
			return ErrValue, nil
		}
		base = x.Bounds
	default:
		return ErrValue, nil
	}

	top := int64(base.StartRow) + int64(math.Trunc(num(args[1])))
	left := int64(base.StartColumn) + int64(math.Trunc(num(args[2])))
	height := int64(math.Trunc(optNumber(args, 3, float64(base.Height()))))
	width := int64(math.Trunc(optNumber(args, 4, float64(base.Width()))))
	if height <= 0 || width <= 0 {
		return ErrRef, nil
	}
	bottom, right := top+height-1, left+width-1
	if top < 0 || left < 0 || bottom >= maxRows || right >= maxColumns {
		return ErrRef, nil
	}
	return ec.Reference(NewRangeAddress(base.WorksheetID, uint32(top), uint32(left), uint32(bottom), uint32(right))), nil
}

// position builds ROW and COLUMN. without an argument they report the
// evaluating cell; with a reference, its top-left cell. numbers are 1-based.
func position(name string, pick func(CellAddress) uint32) FunctionDef {
	return FunctionDef{
		Name:    name,
		MinArgs: 0,
		MaxArgs: 1,
		Args:    []ArgKind{ArgReference},
		Impl: FunctionFunc(func(ec *OperationContext, args []Value) (Value, error) {
			if len(args) == 0 {
				return Number(pick(ec.Cell()) + 1), nil
			}
			switch x := args[0].(type) {
			case *SpreadsheetError:
				return x, nil
			case *CellRef:
				return Number(pick(x.Address) + 1), nil
			case *Area:
				if !x.IsSynthetic() {
					return Number(pick(x.Bounds.TopLeft()) + 1), nil
				}
			}
			return ErrValue, nil
		}),
	}
}

func volatileFunctions() []FunctionDef {
	return []FunctionDef{
		{
			Name:     "NOW",
			Volatile: true,
			Impl: FunctionFunc(func(ec *OperationContext, _ []Value) (Value, error) {
				return Number(SerialDate(ec.Now())), nil
			}),
		},
		{
			Name:     "TODAY",
			Volatile: true,
			Impl: FunctionFunc(func(ec *OperationContext, _ []Value) (Value, error) {
				return Number(math.Floor(SerialDate(ec.Now()))), nil
			}),
		},
		{
			Name:     "RAND",
			Volatile: true,
			Impl: FunctionFunc(func(ec *OperationContext, _ []Value) (Value, error) {
				return Number(ec.Random()), nil
			}),
		},
	}
}
