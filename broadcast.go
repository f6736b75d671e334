package formula

// BinaryFunc combines two scalars that are known not to be errors
type BinaryFunc func(left, right Value) Value

// UnaryFunc transforms a scalar that is known not to be an error
type UnaryFunc func(v Value) Value

// Broadcast combines two operands element-wise. the result has the union
// shape (max height, max width). along each axis an operand of extent 1
// is repeated and a longer operand contributes its own index; positions
// past the end of a longer operand are #VALUE! whatever op does. errors
// short-circuit per cell, left operand first.
func Broadcast(a, b Value, op BinaryFunc) *Area {
	left, right := asArea(a), asArea(b)
	height := max(left.Height(), right.Height())
	width := max(left.Width(), right.Width())

	grid := make([][]Value, height)
	for i := range grid {
		row := make([]Value, width)
		for j := range row {
			row[j] = applyBinary(contribution(left, i, j), contribution(right, i, j), op)
		}
		grid[i] = row
	}
	return NewArray(grid)
}

// BroadcastUnary applies op to every value of an operand
func BroadcastUnary(a Value, op UnaryFunc) *Area {
	area := asArea(a)
	grid := make([][]Value, area.Height())
	for i := range grid {
		row := make([]Value, area.Width())
		for j := range row {
			row[j] = applyUnary(area.RelativeValue(i, j), op)
		}
		grid[i] = row
	}
	return NewArray(grid)
}

// contribution returns the value an operand supplies at output cell (i, j)
func contribution(area *Area, i, j int) Value {
	row, ok := axisIndex(area.Height(), i)
	if !ok {
		return ErrValue
	}
	col, ok := axisIndex(area.Width(), j)
	if !ok {
		return ErrValue
	}
	return area.RelativeValue(row, col)
}

func axisIndex(extent, idx int) (int, bool) {
	if extent == 1 {
		return 0, true
	}
	if idx < extent {
		return idx, true
	}
	return 0, false
}

func applyBinary(left, right Value, op BinaryFunc) Value {
	if err := FirstError(left, right); err != nil {
		return err
	}
	return op(left, right)
}

func applyUnary(v Value, op UnaryFunc) Value {
	if err, ok := v.(*SpreadsheetError); ok {
		return err
	}
	return op(v)
}

// needsBroadcast reports whether an operand must be combined element-wise
func needsBroadcast(v Value) bool {
	h, w := shape(v)
	return h > 1 || w > 1
}
