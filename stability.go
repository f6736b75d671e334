package formula

// StabilityClassifier tells the evaluator which cells are final: their
// value will not change for the rest of the session. dependencies on final
// cells are not recorded, so updates to them do not invalidate the cells
// that read them. the evaluator never infers finality on its own.
type StabilityClassifier interface {
	IsCellFinal(sheet, row, col uint32) bool
}

// StabilityFunc adapts a function to StabilityClassifier
type StabilityFunc func(sheet, row, col uint32) bool

func (f StabilityFunc) IsCellFinal(sheet, row, col uint32) bool {
	return f(sheet, row, col)
}

// SheetStability is a classifier whose answer depends on the worksheet
// only. areas on such worksheets are classified with a single call.
type SheetStability interface {
	StabilityClassifier
	IsSheetFinal(sheet uint32) bool
}

// SheetFunc adapts a per-worksheet function to SheetStability
type SheetFunc func(sheet uint32) bool

func (f SheetFunc) IsCellFinal(sheet, _, _ uint32) bool { return f(sheet) }
func (f SheetFunc) IsSheetFinal(sheet uint32) bool      { return f(sheet) }

// FinalSheets classifies every cell of the given worksheets as final
func FinalSheets(sheets ...uint32) SheetStability {
	set := make(map[uint32]struct{}, len(sheets))
	for _, id := range sheets {
		set[id] = struct{}{}
	}
	return SheetFunc(func(sheet uint32) bool {
		_, final := set[sheet]
		return final
	})
}

// AllFinal classifies every cell as final, e.g. for read-only workbooks
var AllFinal SheetStability = SheetFunc(func(uint32) bool { return true })
