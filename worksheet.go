package formula

import "iter"

// ChunkKey represents the key for indexing chunks in Worksheet
type ChunkKey struct {
	ChunkRow uint32
	ChunkCol uint32
}

// Worksheet provides sparse cell storage optimized for typical
// spreadsheet access patterns.
//
// architecture:
// - cells are partitioned into 256x256 chunks for spatial locality
// - each chunk allocates arrays lazily based on the cell types present
// - text is interned through the workbook's string table
// - formulas are de-duplicated through the workbook's formula table
type Worksheet struct {
	chunks      map[ChunkKey]*Chunk // sparse map of chunks indexed by ChunkKey
	totalCells  int                 // stats tracking total number of cells
	cellsByType [8]uint32           // cells by type for diagnostic use
	worksheetID uint32
	strings     *InternTable[string]
	formulas    *FormulaTable
}

const (
	ChunkRows uint32 = 256                   // rows per chunk - power of 2 for efficient modulo
	ChunkCols uint32 = 256                   // columns per chunk - matches typical viewport size
	ChunkSize        = ChunkRows * ChunkCols // 65536 cells per chunk
)

// Chunk represents a 256x256 region of cells using structure-of-arrays
// layout. only Types and OccupiedBitmap exist initially.
type Chunk struct {
	// always allocated fields.

	Types          []uint8  // cell type for each position
	NonEmptyCount  int      // count of non-empty cells
	OccupiedBitmap []uint64 // bit-packed array tracking which cells have data

	// lazily allocated fields.

	Numbers    []float64 // NUMBER and BOOLEAN values, ERROR codes
	StringIDs  []uint32  // interned string IDs for STRING cells
	FormulaIDs []uint32  // formula table IDs for FORMULA cells
}

// NewWorksheet creates a new worksheet
func NewWorksheet(worksheetID uint32, strings *InternTable[string], formulas *FormulaTable) *Worksheet {
	return &Worksheet{
		chunks:      make(map[ChunkKey]*Chunk),
		worksheetID: worksheetID,
		strings:     strings,
		formulas:    formulas,
	}
}

// locate returns the chunk key and the in-chunk index of a cell.
// column-first indexing keeps a column of a chunk contiguous.
func locate(row, col uint32) (ChunkKey, uint32) {
	key := ChunkKey{ChunkRow: row / ChunkRows, ChunkCol: col / ChunkCols}
	return key, (col%ChunkCols)*ChunkRows + row%ChunkRows
}

// getChunk retrieves or creates the chunk for key
func (w *Worksheet) getChunk(key ChunkKey) *Chunk {
	chunk, exists := w.chunks[key]
	if !exists {
		chunk = &Chunk{
			Types:          make([]uint8, ChunkSize),
			OccupiedBitmap: make([]uint64, (ChunkSize+63)/64),
		}
		w.chunks[key] = chunk
	}
	return chunk
}

// GetCell retrieves the content of a cell. empty cells return a zero
// RawCell.
func (w *Worksheet) GetCell(row, col uint32) RawCell {
	key, idx := locate(row, col)
	chunk, exists := w.chunks[key]
	if !exists {
		return RawCell{}
	}
	return w.read(chunk, idx)
}

func (w *Worksheet) read(chunk *Chunk, idx uint32) RawCell {
	switch CellType(chunk.Types[idx]) {
	case CellValueTypeNumber:
		return RawCell{Value: Number(chunk.Numbers[idx])}
	case CellValueTypeBoolean:
		return RawCell{Value: Boolean(chunk.Numbers[idx] != 0)}
	case CellValueTypeError:
		return RawCell{Value: ErrorFor(ErrorCode(chunk.Numbers[idx]))}
	case CellValueTypeString:
		text, _ := w.strings.Key(chunk.StringIDs[idx])
		return RawCell{Value: Text(text)}
	case CellValueTypeFormula:
		f, _ := w.formulas.Formula(chunk.FormulaIDs[idx])
		return RawCell{Formula: f}
	}
	return RawCell{}
}

// SetValue stores a literal value. Blank clears the cell.
func (w *Worksheet) SetValue(row, col uint32, v Value) {
	if _, blank := v.(BlankValue); v == nil || blank {
		w.RemoveCell(row, col)
		return
	}

	key, idx := locate(row, col)
	chunk := w.getChunk(key)
	w.release(chunk, idx, row, col)

	switch x := v.(type) {
	case Number:
		w.setNumber(chunk, idx, CellValueTypeNumber, float64(x))
	case Boolean:
		b := 0.0
		if x {
			b = 1
		}
		w.setNumber(chunk, idx, CellValueTypeBoolean, b)
	case *SpreadsheetError:
		w.setNumber(chunk, idx, CellValueTypeError, float64(x.ErrorCode))
	case Text:
		if chunk.StringIDs == nil {
			chunk.StringIDs = make([]uint32, ChunkSize)
		}
		chunk.StringIDs[idx] = w.strings.Intern(string(x))
		w.occupy(chunk, idx, CellValueTypeString)
	default:
		// references and arrays are not storable
		w.vacate(chunk, idx)
	}
}

// SetFormula stores a compiled formula, sharing tokens with identical
// formulas elsewhere in the workbook
func (w *Worksheet) SetFormula(row, col uint32, f Formula) {
	key, idx := locate(row, col)
	chunk := w.getChunk(key)
	cell := CellAddress{WorksheetID: w.worksheetID, Row: row, Column: col}

	// re-interning the same formula keeps its ID
	if CellType(chunk.Types[idx]) != CellValueTypeFormula {
		w.release(chunk, idx, row, col)
	}
	id, _ := w.formulas.Intern(f, cell)
	if chunk.FormulaIDs == nil {
		chunk.FormulaIDs = make([]uint32, ChunkSize)
	}
	chunk.FormulaIDs[idx] = id
	w.occupy(chunk, idx, CellValueTypeFormula)
}

func (w *Worksheet) setNumber(chunk *Chunk, idx uint32, t CellType, n float64) {
	if chunk.Numbers == nil {
		chunk.Numbers = make([]float64, ChunkSize)
	}
	chunk.Numbers[idx] = n
	w.occupy(chunk, idx, t)
}

// release drops the string or formula reference held by a cell
func (w *Worksheet) release(chunk *Chunk, idx uint32, row, col uint32) {
	switch CellType(chunk.Types[idx]) {
	case CellValueTypeString:
		w.strings.Release(chunk.StringIDs[idx])
		chunk.StringIDs[idx] = 0
	case CellValueTypeFormula:
		w.formulas.Release(CellAddress{WorksheetID: w.worksheetID, Row: row, Column: col})
		chunk.FormulaIDs[idx] = 0
	}
}

// occupy records the new type of a cell and updates statistics
func (w *Worksheet) occupy(chunk *Chunk, idx uint32, t CellType) {
	oldType := CellType(chunk.Types[idx])
	if oldType == CellValueTypeEmpty {
		chunk.NonEmptyCount++
		w.totalCells++
	} else {
		w.cellsByType[oldType]--
	}
	chunk.Types[idx] = uint8(t)
	w.cellsByType[t]++
	chunk.OccupiedBitmap[idx/64] |= 1 << (idx % 64)
}

func (w *Worksheet) vacate(chunk *Chunk, idx uint32) {
	oldType := CellType(chunk.Types[idx])
	if oldType == CellValueTypeEmpty {
		return
	}
	chunk.Types[idx] = uint8(CellValueTypeEmpty)
	chunk.NonEmptyCount--
	w.totalCells--
	w.cellsByType[oldType]--
	chunk.OccupiedBitmap[idx/64] &^= 1 << (idx % 64)
}

// RemoveCell clears a cell. returns false when it was already empty.
func (w *Worksheet) RemoveCell(row, col uint32) bool {
	key, idx := locate(row, col)
	chunk, exists := w.chunks[key]
	if !exists || chunk.Types[idx] == uint8(CellValueTypeEmpty) {
		return false
	}

	w.release(chunk, idx, row, col)
	w.vacate(chunk, idx)

	// drop empty chunks to save memory
	if chunk.NonEmptyCount == 0 {
		delete(w.chunks, key)
	}
	return true
}

// Cells iterates over the non-empty cells of the worksheet. the order is
// unspecified.
func (w *Worksheet) Cells() iter.Seq2[CellAddress, RawCell] {
	return func(yield func(CellAddress, RawCell) bool) {
		for key, chunk := range w.chunks {
			for word, bits := range chunk.OccupiedBitmap {
				for bit := uint32(0); bits != 0; bit++ {
					if bits&1 != 0 {
						idx := uint32(word)*64 + bit
						addr := CellAddress{
							WorksheetID: w.worksheetID,
							Row:         key.ChunkRow*ChunkRows + idx%ChunkRows,
							Column:      key.ChunkCol*ChunkCols + idx/ChunkRows,
						}
						if !yield(addr, w.read(chunk, idx)) {
							return
						}
					}
					bits >>= 1
				}
			}
		}
	}
}

// clear releases every string and formula held by the worksheet
func (w *Worksheet) clear() []CellAddress {
	var removed []CellAddress
	for addr := range w.Cells() {
		removed = append(removed, addr)
	}
	for _, addr := range removed {
		w.RemoveCell(addr.Row, addr.Column)
	}
	return removed
}

// GetCellTypeCount returns the count of cells of a specific type
func (w *Worksheet) GetCellTypeCount(cellType CellType) uint32 {
	if int(cellType) < len(w.cellsByType) {
		return w.cellsByType[cellType]
	}
	return 0
}

// GetTotalCells returns the total number of non-empty cells
func (w *Worksheet) GetTotalCells() int {
	return w.totalCells
}
