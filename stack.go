package formula

// evaluationStack holds the formula cells whose evaluation is in
// progress, outermost first. reaching a cell that is already on the stack
// means the cell depends on itself.
type evaluationStack struct {
	cells []CellAddress
	index map[CellAddress]int // position in cells
}

func newEvaluationStack() *evaluationStack {
	return &evaluationStack{index: make(map[CellAddress]int)}
}

func (s *evaluationStack) push(cell CellAddress) {
	s.index[cell] = len(s.cells)
	s.cells = append(s.cells, cell)
}

func (s *evaluationStack) pop() {
	if len(s.cells) == 0 {
		return
	}
	top := s.cells[len(s.cells)-1]
	s.cells = s.cells[:len(s.cells)-1]
	delete(s.index, top)
}

func (s *evaluationStack) contains(cell CellAddress) bool {
	_, ok := s.index[cell]
	return ok
}

func (s *evaluationStack) depth() int {
	return len(s.cells)
}

// cycle returns the cells from cell to the top of the stack
func (s *evaluationStack) cycle(cell CellAddress) []CellAddress {
	i, ok := s.index[cell]
	if !ok {
		return nil
	}
	return append([]CellAddress(nil), s.cells[i:]...)
}

func (s *evaluationStack) reset() {
	s.cells = s.cells[:0]
	clear(s.index)
}
