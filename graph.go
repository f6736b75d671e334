package formula

import "slices"

// precedents is what one formula cell read during its last evaluation
type precedents struct {
	cells map[CellAddress]struct{}
	areas map[RangeAddress]struct{}
}

// DependencyGraph records which cells and areas each formula cell read
// while it was evaluated, and answers the reverse question used for
// invalidation: which cells may change when a cell changes. a cell's
// precedents are forgotten every time it is recomputed.
type DependencyGraph struct {
	precedents map[CellAddress]*precedents
	dependents map[CellAddress]map[CellAddress]struct{} // cell -> formula cells that read it

	// area -> formula cells that read it, per worksheet so that a lookup
	// only scans the areas of the changed cell's worksheet
	observers map[uint32]map[RangeAddress]map[CellAddress]struct{}

	volatile map[CellAddress]struct{}
}

// NewDependencyGraph creates an empty graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		precedents: make(map[CellAddress]*precedents),
		dependents: make(map[CellAddress]map[CellAddress]struct{}),
		observers:  make(map[uint32]map[RangeAddress]map[CellAddress]struct{}),
		volatile:   make(map[CellAddress]struct{}),
	}
}

func (dg *DependencyGraph) entry(cell CellAddress) *precedents {
	p, exists := dg.precedents[cell]
	if !exists {
		p = &precedents{
			cells: make(map[CellAddress]struct{}),
			areas: make(map[RangeAddress]struct{}),
		}
		dg.precedents[cell] = p
	}
	return p
}

// Record notes that cell read precedent
func (dg *DependencyGraph) Record(cell, precedent CellAddress) {
	dg.entry(cell).cells[precedent] = struct{}{}

	readers, exists := dg.dependents[precedent]
	if !exists {
		readers = make(map[CellAddress]struct{})
		dg.dependents[precedent] = readers
	}
	readers[cell] = struct{}{}
}

// RecordArea notes that cell read every cell of area
func (dg *DependencyGraph) RecordArea(cell CellAddress, area RangeAddress) {
	dg.entry(cell).areas[area] = struct{}{}

	areas, exists := dg.observers[area.WorksheetID]
	if !exists {
		areas = make(map[RangeAddress]map[CellAddress]struct{})
		dg.observers[area.WorksheetID] = areas
	}
	readers, exists := areas[area]
	if !exists {
		readers = make(map[CellAddress]struct{})
		areas[area] = readers
	}
	readers[cell] = struct{}{}
}

// MarkVolatile notes that cell called a volatile function
func (dg *DependencyGraph) MarkVolatile(cell CellAddress) {
	dg.volatile[cell] = struct{}{}
}

// IsVolatile reports whether cell called a volatile function during its
// last evaluation
func (dg *DependencyGraph) IsVolatile(cell CellAddress) bool {
	_, volatile := dg.volatile[cell]
	return volatile
}

// VolatileCells returns the cells marked volatile, sorted
func (dg *DependencyGraph) VolatileCells() []CellAddress {
	cells := make([]CellAddress, 0, len(dg.volatile))
	for cell := range dg.volatile {
		cells = append(cells, cell)
	}
	slices.SortFunc(cells, compareAddresses)
	return cells
}

// Forget drops everything cell read and its volatile mark. cells reading
// cell are kept.
func (dg *DependencyGraph) Forget(cell CellAddress) {
	delete(dg.volatile, cell)

	p, exists := dg.precedents[cell]
	if !exists {
		return
	}
	delete(dg.precedents, cell)

	for precedent := range p.cells {
		readers := dg.dependents[precedent]
		delete(readers, cell)
		if len(readers) == 0 {
			delete(dg.dependents, precedent)
		}
	}
	for area := range p.areas {
		areas := dg.observers[area.WorksheetID]
		delete(areas[area], cell)
		if len(areas[area]) == 0 {
			delete(areas, area)
		}
		if len(areas) == 0 {
			delete(dg.observers, area.WorksheetID)
		}
	}
}

// readers returns the cells that read cell directly or through an area
func (dg *DependencyGraph) readers(cell CellAddress, visit func(CellAddress)) {
	for reader := range dg.dependents[cell] {
		visit(reader)
	}
	for area, readers := range dg.observers[cell.WorksheetID] {
		if !area.Contains(cell) {
			continue
		}
		for reader := range readers {
			visit(reader)
		}
	}
}

// Dependents returns every cell whose value may change when cell changes,
// directly or transitively, sorted. cell itself is not included.
func (dg *DependencyGraph) Dependents(cell CellAddress) []CellAddress {
	visited := map[CellAddress]struct{}{cell: {}}
	queue := []CellAddress{cell}
	var result []CellAddress

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		dg.readers(current, func(reader CellAddress) {
			if _, seen := visited[reader]; seen {
				return
			}
			visited[reader] = struct{}{}
			result = append(result, reader)
			queue = append(queue, reader)
		})
	}

	slices.SortFunc(result, compareAddresses)
	return result
}

// Precedents returns the single cells cell read, sorted
func (dg *DependencyGraph) Precedents(cell CellAddress) []CellAddress {
	p, exists := dg.precedents[cell]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(p.cells))
	for precedent := range p.cells {
		result = append(result, precedent)
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// AreaPrecedents returns the areas cell read
func (dg *DependencyGraph) AreaPrecedents(cell CellAddress) []RangeAddress {
	p, exists := dg.precedents[cell]
	if !exists {
		return nil
	}
	result := make([]RangeAddress, 0, len(p.areas))
	for area := range p.areas {
		result = append(result, area)
	}
	return result
}

// Len returns the number of formula cells with recorded precedents
func (dg *DependencyGraph) Len() int {
	return len(dg.precedents)
}
