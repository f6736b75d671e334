package formula

import "slices"

// FormulaKey is the normalized rendering of a compiled formula used for
// de-duplication. two formulas that compile to the same tokens share a key
// regardless of the whitespace or case they were typed with.
type FormulaKey string

// FormulaTable stores compiled formulas centrally and tracks which cells
// use them and which worksheets and named ranges they reference.
type FormulaTable struct {
	// core formula storage

	index     map[FormulaKey]uint32 // normalized formula -> formula ID
	formulas  map[uint32]Formula    // formula ID -> compiled tokens
	refCounts map[uint32]int        // formula ID -> number of cells using it

	// cell tracking

	cellsUsingFormula map[uint32]map[CellAddress]struct{} // formula ID -> cells using it
	formulaAtCell     map[CellAddress]uint32              // cell -> formula ID (reverse index)

	// reference tracking

	referencedWorksheets map[uint32]map[uint32]struct{} // formula ID -> worksheets it references
	namesUsed            map[uint32][]uint32            // formula ID -> named range IDs
	names                *NamedRangeTable

	nextID uint32
}

// NewFormulaTable creates a new formula table. names receives a reference
// for every named range a stored formula mentions; it may be nil.
func NewFormulaTable(names *NamedRangeTable) *FormulaTable {
	return &FormulaTable{
		index:                make(map[FormulaKey]uint32),
		formulas:             make(map[uint32]Formula),
		refCounts:            make(map[uint32]int),
		cellsUsingFormula:    make(map[uint32]map[CellAddress]struct{}),
		formulaAtCell:        make(map[CellAddress]uint32),
		referencedWorksheets: make(map[uint32]map[uint32]struct{}),
		namesUsed:            make(map[uint32][]uint32),
		names:                names,
		nextID:               1, // start at 1, reserve 0 for no formula
	}
}

// normalize converts a formula to its key
func normalize(f Formula) FormulaKey {
	return FormulaKey(f.String())
}

// Intern stores f for cell, replacing whatever formula the cell used
// before. returns the formula ID and the shared token slice.
func (ft *FormulaTable) Intern(f Formula, cell CellAddress) (uint32, Formula) {
	key := normalize(f)
	id, exists := ft.index[key]
	if old, used := ft.formulaAtCell[cell]; used {
		if exists && old == id {
			return id, ft.formulas[id]
		}
		ft.Release(cell)
	}

	if !exists {
		id = ft.nextID
		ft.nextID++
		ft.index[key] = id
		ft.formulas[id] = f
		ft.trackReferences(id, f)
	}

	ft.refCounts[id]++
	if ft.cellsUsingFormula[id] == nil {
		ft.cellsUsingFormula[id] = make(map[CellAddress]struct{})
	}
	ft.cellsUsingFormula[id][cell] = struct{}{}
	ft.formulaAtCell[cell] = id
	return id, ft.formulas[id]
}

// trackReferences records the worksheets and names mentioned by f
func (ft *FormulaTable) trackReferences(id uint32, f Formula) {
	for _, tok := range f {
		switch tok.Kind {
		case TokenRef, TokenArea:
			if tok.Sheet == 0 {
				continue
			}
			if ft.referencedWorksheets[id] == nil {
				ft.referencedWorksheets[id] = make(map[uint32]struct{})
			}
			ft.referencedWorksheets[id][tok.Sheet] = struct{}{}
		case TokenName:
			if ft.names != nil {
				ft.namesUsed[id] = append(ft.namesUsed[id], ft.names.Reference(tok.Text))
			}
		}
	}
}

// Release removes the formula reference held by cell. returns true if the
// formula was removed due to zero references.
func (ft *FormulaTable) Release(cell CellAddress) bool {
	id, exists := ft.formulaAtCell[cell]
	if !exists {
		return false
	}
	delete(ft.formulaAtCell, cell)
	if cells, ok := ft.cellsUsingFormula[id]; ok {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(ft.cellsUsingFormula, id)
		}
	}

	ft.refCounts[id]--
	if ft.refCounts[id] > 0 {
		return false
	}
	ft.removeFormula(id)
	return true
}

// removeFormula removes a formula and all its tracking data
func (ft *FormulaTable) removeFormula(id uint32) {
	if f, exists := ft.formulas[id]; exists {
		delete(ft.index, normalize(f))
	}
	delete(ft.formulas, id)
	delete(ft.refCounts, id)
	delete(ft.cellsUsingFormula, id)
	delete(ft.referencedWorksheets, id)
	if ft.names != nil {
		for _, nameID := range ft.namesUsed[id] {
			ft.names.Release(nameID)
		}
	}
	delete(ft.namesUsed, id)
}

// Formula returns the compiled tokens for a formula ID
func (ft *FormulaTable) Formula(id uint32) (Formula, bool) {
	f, exists := ft.formulas[id]
	return f, exists
}

// FormulaAtCell returns the formula ID used by cell
func (ft *FormulaTable) FormulaAtCell(cell CellAddress) (uint32, bool) {
	id, exists := ft.formulaAtCell[cell]
	return id, exists
}

// ReferenceCount returns the number of cells using a formula
func (ft *FormulaTable) ReferenceCount(id uint32) int {
	return ft.refCounts[id]
}

// CellsUsingFormula returns the cells using a formula in address order
func (ft *FormulaTable) CellsUsingFormula(id uint32) []CellAddress {
	cells := ft.cellsUsingFormula[id]
	result := make([]CellAddress, 0, len(cells))
	for cell := range cells {
		result = append(result, cell)
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// CellsReferencingWorksheet returns the cells whose formula references
// worksheetID explicitly
func (ft *FormulaTable) CellsReferencingWorksheet(worksheetID uint32) []CellAddress {
	var result []CellAddress
	for id, sheets := range ft.referencedWorksheets {
		if _, ok := sheets[worksheetID]; ok {
			result = append(result, ft.CellsUsingFormula(id)...)
		}
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// CellsUsingName returns the cells whose formula mentions a named range
func (ft *FormulaTable) CellsUsingName(name string) []CellAddress {
	var result []CellAddress
	for id, f := range ft.formulas {
		for _, tok := range f {
			if tok.Kind == TokenName && nameKey(tok.Text) == nameKey(name) {
				result = append(result, ft.CellsUsingFormula(id)...)
				break
			}
		}
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// Count returns the number of unique formulas
func (ft *FormulaTable) Count() int {
	return len(ft.index)
}

// TotalReferences returns the total number of references across all formulas
func (ft *FormulaTable) TotalReferences() int {
	total := 0
	for _, count := range ft.refCounts {
		total += count
	}
	return total
}

// Clear removes all formulas from the table
func (ft *FormulaTable) Clear() {
	for id := range ft.formulas {
		ft.removeFormula(id)
	}
	ft.index = make(map[FormulaKey]uint32)
	ft.formulas = make(map[uint32]Formula)
	ft.refCounts = make(map[uint32]int)
	ft.cellsUsingFormula = make(map[uint32]map[CellAddress]struct{})
	ft.formulaAtCell = make(map[CellAddress]uint32)
	ft.referencedWorksheets = make(map[uint32]map[uint32]struct{})
	ft.namesUsed = make(map[uint32][]uint32)
	ft.nextID = 1
}

func compareAddresses(a, b CellAddress) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
