package formula

import (
	"log/slog"
	"time"
)

// OperationContext is handed to every operator and function call. it knows
// the cell being evaluated, resolves references relative to it, and reads
// cells through the evaluator's cache.
type OperationContext struct {
	evaluator *Evaluator
	cell      CellAddress
	record    bool // record precedents of cell in the dependency graph
}

// Cell returns the address of the cell being evaluated
func (ec *OperationContext) Cell() CellAddress { return ec.cell }

func (ec *OperationContext) Sheet() uint32 { return ec.cell.WorksheetID }

func (ec *OperationContext) Row() uint32 { return ec.cell.Row }

func (ec *OperationContext) Column() uint32 { return ec.cell.Column }

// Now returns the evaluator clock's current time
func (ec *OperationContext) Now() time.Time { return ec.evaluator.clock.Now() }

// Random returns a uniform number in [0, 1)
func (ec *OperationContext) Random() float64 { return ec.evaluator.rng.Float64() }

func (ec *OperationContext) Logger() *slog.Logger { return ec.evaluator.logger }

// SheetID resolves a worksheet name through the workbook
func (ec *OperationContext) SheetID(name string) (uint32, bool) {
	return ec.evaluator.workbook.SheetID(name)
}

// CellValue evaluates a cell. it implements CellSource for references
// created by this context.
func (ec *OperationContext) CellValue(addr CellAddress) Value {
	return ec.evaluator.evaluateCell(addr)
}

// Ref creates a lazy reference to addr and records it as a precedent
func (ec *OperationContext) Ref(addr CellAddress) *CellRef {
	if ec.record && !ec.evaluator.IsCellFinal(addr) {
		ec.evaluator.graph.Record(ec.cell, addr)
	}
	return NewCellRef(addr, ec)
}

// Area creates a lazy area over bounds and records it as a precedent
func (ec *OperationContext) Area(bounds RangeAddress) *Area {
	if ec.record && !ec.evaluator.isRangeFinal(bounds) {
		ec.evaluator.graph.RecordArea(ec.cell, bounds)
	}
	return NewAreaRef(bounds, ec)
}

// Reference creates a CellRef for a single cell and an Area otherwise
func (ec *OperationContext) Reference(bounds RangeAddress) Value {
	if bounds.Height() == 1 && bounds.Width() == 1 {
		return ec.Ref(bounds.TopLeft())
	}
	return ec.Area(bounds)
}

// Dereference collapses v to a scalar as seen from the evaluating cell
func (ec *OperationContext) Dereference(v Value) Value {
	return Dereference(v, ec.cell.Row, ec.cell.Column)
}

// MarkVolatile flags the evaluating cell for re-evaluation in every batch
func (ec *OperationContext) MarkVolatile() {
	if ec.record {
		ec.evaluator.graph.MarkVolatile(ec.cell)
	}
}

// resolveReference turns a reference token into a Value relative to the
// evaluating cell
func (ec *OperationContext) resolveReference(tok Token) Value {
	sheet := tok.Sheet
	if sheet == 0 {
		sheet = ec.cell.WorksheetID
	}

	switch tok.Kind {
	case TokenRef:
		return ec.Ref(CellAddress{WorksheetID: sheet, Row: tok.Row, Column: tok.Col})
	case TokenArea:
		return ec.Area(NewRangeAddress(sheet, tok.Row, tok.Col, tok.Row2, tok.Col2))
	case TokenName:
		bounds, ok := ec.evaluator.workbook.ResolveName(tok.Text)
		if !ok {
			return NewSpreadsheetError(ErrorCodeName, "undefined name: "+tok.Text)
		}
		return ec.Reference(bounds)
	}
	return ErrRef
}

// binary applies an infix operator. reference operators combine bounds;
// every other operator works element-wise when an operand is an array.
func (ec *OperationContext) binary(op Operator, left, right Value) (Value, error) {
	switch op {
	case OpRange, OpIntersect:
		if err := FirstError(left, right); err != nil {
			return err, nil
		}
		a, aok := referenceBounds(left)
		b, bok := referenceBounds(right)
		if !aok || !bok {
			return ErrValue, nil
		}
		if op == OpRange {
			if a.WorksheetID != b.WorksheetID {
				return ErrRef, nil
			}
			return ec.Reference(a.Bounding(b)), nil
		}
		overlap, ok := a.Intersect(b)
		if !ok {
			return ErrNull, nil
		}
		return ec.Reference(overlap), nil
	case OpUnion:
		return nil, NewUnimplementedError("union operator")
	}

	fn, ok := BinaryOperator(op)
	if !ok {
		return nil, NewUnimplementedError("operator " + op.String())
	}
	if needsBroadcast(left) || needsBroadcast(right) {
		return Broadcast(left, right, fn), nil
	}
	return applyBinary(ec.Dereference(left), ec.Dereference(right), fn), nil
}

// referenceBounds returns the grid bounds of a non-synthetic reference
func referenceBounds(v Value) (RangeAddress, bool) {
	switch x := v.(type) {
	case *CellRef:
		return CellRange(x.Address), true
	case *Area:
		if !x.IsSynthetic() {
			return x.Bounds, true
		}
	}
	return RangeAddress{}, false
}
