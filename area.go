package formula

import (
	"fmt"
	"iter"
)

// CellSource reads the value of a single cell. reads of formula cells may
// trigger their evaluation.
type CellSource interface {
	CellValue(addr CellAddress) Value
}

// CellRef is a lazy single-cell reference
type CellRef struct {
	Address CellAddress
	source  CellSource
}

// NewCellRef creates a reference reading through source
func NewCellRef(addr CellAddress, source CellSource) *CellRef {
	return &CellRef{Address: addr, source: source}
}

func (r *CellRef) Kind() ValueKind { return KindRef }

func (*CellRef) value() {}

func (r *CellRef) String() string { return r.Address.String() }

// Value reads the referenced cell
func (r *CellRef) Value() Value {
	if r.source == nil {
		return Blank
	}
	v := r.source.CellValue(r.Address)
	if v == nil {
		return Blank
	}
	return v
}

// AsArea returns the 1x1 area equivalent to the reference
func (r *CellRef) AsArea() *Area {
	return &Area{Bounds: CellRange(r.Address), source: r.source}
}

// Area is a rectangular reference to a range of cells, or a synthetic array
// carrying its own grid. a view created by Offset over a synthetic array
// reads through its parent.
type Area struct {
	Bounds RangeAddress
	source CellSource

	grid   [][]Value // materialized values, synthetic arrays only
	parent *Area     // synthetic parent of a view
	rowOff int
	colOff int
}

// NewAreaRef creates a lazy area reading through source
func NewAreaRef(bounds RangeAddress, source CellSource) *Area {
	return &Area{Bounds: bounds, source: source}
}

// NewArray creates a synthetic area owning grid. the grid must be a
// non-empty rectangle.
func NewArray(grid [][]Value) *Area {
	if len(grid) == 0 || len(grid[0]) == 0 {
		panic("formula: empty array")
	}
	width := len(grid[0])
	for i, row := range grid {
		if len(row) != width {
			panic(fmt.Sprintf("formula: ragged array, row %d has %d columns, want %d", i, len(row), width))
		}
	}
	return &Area{
		Bounds: RangeAddress{EndRow: uint32(len(grid) - 1), EndColumn: uint32(width - 1)},
		grid:   grid,
	}
}

func (a *Area) Kind() ValueKind { return KindArea }

func (*Area) value() {}

func (a *Area) String() string {
	if a.IsSynthetic() {
		return fmt.Sprintf("{%dx%d}", a.Height(), a.Width())
	}
	return a.Bounds.String()
}

func (a *Area) Height() int { return a.Bounds.Height() }

func (a *Area) Width() int { return a.Bounds.Width() }

// IsSynthetic reports whether the area holds values instead of pointing
// at grid cells
func (a *Area) IsSynthetic() bool {
	return a.grid != nil || a.parent != nil
}

// RelativeValue returns the value at the given offsets from the top-left
// cell. out-of-range offsets are a programming error and panic.
func (a *Area) RelativeValue(rowOffset, colOffset int) Value {
	if rowOffset < 0 || rowOffset >= a.Height() || colOffset < 0 || colOffset >= a.Width() {
		panic(fmt.Sprintf("formula: offset (%d,%d) outside %dx%d area", rowOffset, colOffset, a.Height(), a.Width()))
	}
	switch {
	case a.grid != nil:
		return a.grid[rowOffset][colOffset]
	case a.parent != nil:
		return a.parent.RelativeValue(a.rowOff+rowOffset, a.colOff+colOffset)
	case a.source == nil:
		return Blank
	}
	v := a.source.CellValue(a.addressAt(rowOffset, colOffset))
	if v == nil {
		return Blank
	}
	return v
}

func (a *Area) addressAt(rowOffset, colOffset int) CellAddress {
	return CellAddress{
		WorksheetID: a.Bounds.WorksheetID,
		Row:         a.Bounds.StartRow + uint32(rowOffset),
		Column:      a.Bounds.StartColumn + uint32(colOffset),
	}
}

// Offset returns the sub-area spanning rows row0..row1 and columns
// col0..col1 (inclusive, relative to this area). the same area is
// returned when the rectangle covers all of it; otherwise the view reads
// lazily on access.
func (a *Area) Offset(row0, row1, col0, col1 int) *Area {
	if row0 < 0 || row1 < row0 || row1 >= a.Height() || col0 < 0 || col1 < col0 || col1 >= a.Width() {
		panic(fmt.Sprintf("formula: sub-area (%d:%d,%d:%d) outside %dx%d area", row0, row1, col0, col1, a.Height(), a.Width()))
	}
	if row0 == 0 && col0 == 0 && row1 == a.Height()-1 && col1 == a.Width()-1 {
		return a
	}
	if a.IsSynthetic() {
		return &Area{
			Bounds: RangeAddress{EndRow: uint32(row1 - row0), EndColumn: uint32(col1 - col0)},
			parent: a,
			rowOff: row0,
			colOff: col0,
		}
	}
	start := a.addressAt(row0, col0)
	end := a.addressAt(row1, col1)
	return &Area{
		Bounds: NewRangeAddress(start.WorksheetID, start.Row, start.Column, end.Row, end.Column),
		source: a.source,
	}
}

// Row returns the 1xwidth view of row i
func (a *Area) Row(i int) *Area {
	return a.Offset(i, i, 0, a.Width()-1)
}

// Column returns the heightx1 view of column j
func (a *Area) Column(j int) *Area {
	return a.Offset(0, a.Height()-1, j, j)
}

// Values iterates the area row by row
func (a *Area) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for i := 0; i < a.Height(); i++ {
			for j := 0; j < a.Width(); j++ {
				if !yield(a.RelativeValue(i, j)) {
					return
				}
			}
		}
	}
}

// Cells iterates the area row by row with each cell's address. synthetic
// areas report addresses relative to their top-left value.
func (a *Area) Cells() iter.Seq2[CellAddress, Value] {
	return func(yield func(CellAddress, Value) bool) {
		for i := 0; i < a.Height(); i++ {
			for j := 0; j < a.Width(); j++ {
				if !yield(a.addressAt(i, j), a.RelativeValue(i, j)) {
					return
				}
			}
		}
	}
}

// singleValue collapses the area as seen from the cell at (row, col)
func (a *Area) singleValue(row, col uint32) Value {
	if a.Height() == 1 && a.Width() == 1 {
		return a.RelativeValue(0, 0)
	}
	if !a.IsSynthetic() {
		// implicit intersection
		b := a.Bounds
		if b.StartColumn == b.EndColumn && row >= b.StartRow && row <= b.EndRow {
			return a.RelativeValue(int(row-b.StartRow), 0)
		}
		if b.StartRow == b.EndRow && col >= b.StartColumn && col <= b.EndColumn {
			return a.RelativeValue(0, int(col-b.StartColumn))
		}
	}
	return a.RelativeValue(0, 0)
}

// shape returns the (height, width) of a value seen as an array; scalars
// and cell references are 1x1
func shape(v Value) (int, int) {
	if a, ok := v.(*Area); ok {
		return a.Height(), a.Width()
	}
	return 1, 1
}

// asArea wraps v in an area. scalars become a 1x1 synthetic array.
func asArea(v Value) *Area {
	switch x := v.(type) {
	case *Area:
		return x
	case *CellRef:
		return x.AsArea()
	}
	return NewArray([][]Value{{v}})
}
