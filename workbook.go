package formula

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// MemoryWorkbook is the in-memory storage collaborator of the evaluator.
// worksheet IDs start at 1 and are never reused, so references to a
// removed worksheet keep pointing at nothing and read as #REF!.
type MemoryWorkbook struct {
	sheetIDs   map[string]uint32 // upper-cased name -> ID
	sheetNames map[uint32]string // ID -> name as written
	worksheets map[uint32]*Worksheet
	order      []uint32 // worksheet IDs in creation order

	strings  *InternTable[string]
	names    *NamedRangeTable
	formulas *FormulaTable

	nextID uint32
}

var _ Workbook = (*MemoryWorkbook)(nil)

// NewMemoryWorkbook creates a workbook with the given worksheets
func NewMemoryWorkbook(sheets ...string) *MemoryWorkbook {
	names := NewNamedRangeTable()
	wb := &MemoryWorkbook{
		sheetIDs:   make(map[string]uint32),
		sheetNames: make(map[uint32]string),
		worksheets: make(map[uint32]*Worksheet),
		strings:    NewInternTable[string](),
		names:      names,
		formulas:   NewFormulaTable(names),
		nextID:     1,
	}
	for _, name := range sheets {
		if _, err := wb.AddSheet(name); err != nil {
			panic(err)
		}
	}
	return wb
}

func sheetKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// AddSheet creates an empty worksheet and returns its ID
func (wb *MemoryWorkbook) AddSheet(name string) (uint32, error) {
	if err := validateSheetName(name); err != nil {
		return 0, err
	}
	if _, exists := wb.sheetIDs[sheetKey(name)]; exists {
		return 0, NewApplicationError(AlreadyExists, fmt.Sprintf("worksheet %q already exists", name))
	}

	id := wb.nextID
	wb.nextID++
	wb.sheetIDs[sheetKey(name)] = id
	wb.sheetNames[id] = name
	wb.worksheets[id] = NewWorksheet(id, wb.strings, wb.formulas)
	wb.order = append(wb.order, id)
	return id, nil
}

// RemoveSheet deletes a worksheet and returns the addresses of the cells it
// held
func (wb *MemoryWorkbook) RemoveSheet(name string) ([]CellAddress, error) {
	id, exists := wb.sheetIDs[sheetKey(name)]
	if !exists {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", name))
	}

	removed := wb.worksheets[id].clear()
	delete(wb.sheetIDs, sheetKey(name))
	delete(wb.sheetNames, id)
	delete(wb.worksheets, id)
	for i, sheet := range wb.order {
		if sheet == id {
			wb.order = append(wb.order[:i], wb.order[i+1:]...)
			break
		}
	}
	return removed, nil
}

// RenameSheet renames a worksheet. formulas keep referring to it by ID.
func (wb *MemoryWorkbook) RenameSheet(oldName, newName string) error {
	id, exists := wb.sheetIDs[sheetKey(oldName)]
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", oldName))
	}
	if err := validateSheetName(newName); err != nil {
		return err
	}
	if other, taken := wb.sheetIDs[sheetKey(newName)]; taken && other != id {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("worksheet %q already exists", newName))
	}

	delete(wb.sheetIDs, sheetKey(oldName))
	wb.sheetIDs[sheetKey(newName)] = id
	wb.sheetNames[id] = newName
	return nil
}

func validateSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	}
	if strings.ContainsAny(name, `!:[]*?/\`) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid worksheet name %q", name))
	}
	return nil
}

// SheetID resolves a worksheet name, ignoring case
func (wb *MemoryWorkbook) SheetID(name string) (uint32, bool) {
	id, exists := wb.sheetIDs[sheetKey(name)]
	return id, exists
}

// SheetName returns the name of a worksheet
func (wb *MemoryWorkbook) SheetName(id uint32) (string, bool) {
	name, exists := wb.sheetNames[id]
	return name, exists
}

// Sheets returns the worksheet names in creation order
func (wb *MemoryWorkbook) Sheets() []string {
	names := make([]string, len(wb.order))
	for i, id := range wb.order {
		names[i] = wb.sheetNames[id]
	}
	return names
}

// Worksheet returns the storage of a worksheet for diagnostic purposes
func (wb *MemoryWorkbook) Worksheet(id uint32) (*Worksheet, bool) {
	ws, exists := wb.worksheets[id]
	return ws, exists
}

// ReadCell returns the stored content of a cell. cells of unknown
// worksheets read as #REF!.
func (wb *MemoryWorkbook) ReadCell(addr CellAddress) RawCell {
	ws, exists := wb.worksheets[addr.WorksheetID]
	if !exists {
		return RawCell{Value: ErrRef}
	}
	return ws.GetCell(addr.Row, addr.Column)
}

// Set stores content in a cell the way a user would type it:
//   - nil clears the cell
//   - Go numbers and bools are stored as Number and Boolean
//   - strings starting with '=' are compiled as formulas; other strings
//     are parsed with ParseInput
//   - Value scalars, ErrorCode and Formula are stored as given
func (wb *MemoryWorkbook) Set(addr CellAddress, content any) error {
	ws, exists := wb.worksheets[addr.WorksheetID]
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %d not found", addr.WorksheetID))
	}
	if addr.Row >= maxRows || addr.Column >= maxColumns {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("cell %s is outside the grid", addr.A1()))
	}

	var v Value
	switch x := content.(type) {
	case nil:
		ws.RemoveCell(addr.Row, addr.Column)
		return nil
	case Formula:
		if len(x) == 0 {
			return NewApplicationError(InvalidArgument, "empty formula")
		}
		ws.SetFormula(addr.Row, addr.Column, x)
		return nil
	case string:
		if len(x) > 1 && x[0] == '=' {
			f, err := Compile(x, wb)
			if err != nil {
				return err
			}
			ws.SetFormula(addr.Row, addr.Column, f)
			return nil
		}
		v = ParseInput(x)
	case float64:
		v = Number(x)
	case float32:
		v = Number(x)
	case int:
		v = Number(x)
	case int64:
		v = Number(x)
	case int32:
		v = Number(x)
	case uint32:
		v = Number(x)
	case bool:
		v = Boolean(x)
	case ErrorCode:
		if !x.Valid() {
			return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid error code %d", uint8(x)))
		}
		v = ErrorFor(x)
	case Value:
		if !IsScalar(x) {
			return NewApplicationError(InvalidArgument, fmt.Sprintf("cannot store %s in a cell", x.Kind()))
		}
		v = x
	default:
		return NewApplicationError(InvalidArgument, fmt.Sprintf("unsupported cell content %T", content))
	}

	ws.SetValue(addr.Row, addr.Column, v)
	return nil
}

// Remove clears a cell. returns false when it was already empty.
func (wb *MemoryWorkbook) Remove(addr CellAddress) bool {
	ws, exists := wb.worksheets[addr.WorksheetID]
	if !exists {
		return false
	}
	return ws.RemoveCell(addr.Row, addr.Column)
}

// Cells iterates over the non-empty cells of all worksheets
func (wb *MemoryWorkbook) Cells() iter.Seq2[CellAddress, RawCell] {
	return func(yield func(CellAddress, RawCell) bool) {
		for _, id := range wb.order {
			for addr, cell := range wb.worksheets[id].Cells() {
				if !yield(addr, cell) {
					return
				}
			}
		}
	}
}

// FormulaCells returns the addresses of all formula cells
func (wb *MemoryWorkbook) FormulaCells() []CellAddress {
	var cells []CellAddress
	for addr, cell := range wb.Cells() {
		if cell.IsFormula() {
			cells = append(cells, addr)
		}
	}
	return cells
}

// DefineName defines or redefines a named range
func (wb *MemoryWorkbook) DefineName(name string, address RangeAddress) error {
	if !isName(name) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid name %q", name))
	}
	if _, _, _, _, isCell := parseCellToken(name); isCell {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("name %q looks like a cell reference", name))
	}
	if _, exists := wb.worksheets[address.WorksheetID]; !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %d not found", address.WorksheetID))
	}
	wb.names.Define(name, address)
	return nil
}

// RemoveName removes the definition of a named range
func (wb *MemoryWorkbook) RemoveName(name string) error {
	if !wb.names.Undefine(name) {
		return NewApplicationError(NotFound, fmt.Sprintf("named range %q not found", name))
	}
	return nil
}

// ResolveName returns the address of a defined name
func (wb *MemoryWorkbook) ResolveName(name string) (RangeAddress, bool) {
	return wb.names.Resolve(name)
}

// Names returns the named range table
func (wb *MemoryWorkbook) Names() *NamedRangeTable {
	return wb.names
}

// Formulas returns the formula table
func (wb *MemoryWorkbook) Formulas() *FormulaTable {
	return wb.formulas
}

// ParseAddress parses "A1", "Sheet2!B3" or "'My Sheet'!C4". addresses
// without a sheet prefix belong to defaultSheet.
func (wb *MemoryWorkbook) ParseAddress(address string, defaultSheet uint32) (CellAddress, error) {
	sheetName, rest := SplitSheetPrefix(strings.TrimSpace(address))
	sheet := defaultSheet
	if sheetName != "" {
		id, exists := wb.SheetID(sheetName)
		if !exists {
			return CellAddress{}, NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", sheetName))
		}
		sheet = id
	}
	row, col, _, _, ok := parseCellToken(rest)
	if !ok {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid address %q", address))
	}
	return CellAddress{WorksheetID: sheet, Row: row, Column: col}, nil
}

// ParseRange parses "A1:B3" (or a single cell) with an optional sheet
// prefix
func (wb *MemoryWorkbook) ParseRange(address string, defaultSheet uint32) (RangeAddress, error) {
	sheetName, rest := SplitSheetPrefix(strings.TrimSpace(address))
	prefix := ""
	if sheetName != "" {
		prefix = "'" + strings.ReplaceAll(sheetName, "'", "''") + "'!"
	}
	start, end, isRange := strings.Cut(rest, ":")
	from, err := wb.ParseAddress(prefix+start, defaultSheet)
	if err != nil {
		return RangeAddress{}, err
	}
	if !isRange {
		return CellRange(from), nil
	}
	to, err := wb.ParseAddress(prefix+end, defaultSheet)
	if err != nil {
		return RangeAddress{}, err
	}
	return NewRangeAddress(from.WorksheetID, from.Row, from.Column, to.Row, to.Column), nil
}

// FormatAddress renders addr with its sheet name, e.g. "Sheet1!B3"
func (wb *MemoryWorkbook) FormatAddress(addr CellAddress) string {
	name, exists := wb.SheetName(addr.WorksheetID)
	if !exists {
		return addr.String()
	}
	if strings.ContainsAny(name, " '-") {
		name = "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name + "!" + addr.A1()
}

// ParseInput converts typed text to a cell value: numbers (with an
// optional trailing %), TRUE/FALSE, error literals, and text otherwise
func ParseInput(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Text(s)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return Boolean(true)
	case "FALSE":
		return Boolean(false)
	}
	if code, ok := ParseErrorCode(trimmed); ok {
		return ErrorFor(code)
	}
	if n, ok := parseNumericText(trimmed); ok {
		return Number(n)
	}
	if pct, found := strings.CutSuffix(trimmed, "%"); found {
		if n, err := strconv.ParseFloat(strings.TrimSpace(pct), 64); err == nil && isFinite(n) {
			return Number(n / 100)
		}
	}
	return Text(s)
}
