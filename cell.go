package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// CellType represents numeric constants for cell value
// types (external API)
type CellType uint8

const (
	CellValueTypeEmpty   CellType = 0
	CellValueTypeNumber  CellType = 1
	CellValueTypeString  CellType = 2
	CellValueTypeBoolean CellType = 4
	CellValueTypeError   CellType = 5
	CellValueTypeFormula CellType = 6
)

func (t CellType) String() string {
	switch t {
	case CellValueTypeEmpty:
		return "empty"
	case CellValueTypeNumber:
		return "number"
	case CellValueTypeString:
		return "string"
	case CellValueTypeBoolean:
		return "boolean"
	case CellValueTypeError:
		return "error"
	case CellValueTypeFormula:
		return "formula"
	}
	return "unknown"
}

// CellTypeOf returns the external type constant for a scalar value
func CellTypeOf(v Value) CellType {
	switch v.(type) {
	case Number:
		return CellValueTypeNumber
	case Text:
		return CellValueTypeString
	case Boolean:
		return CellValueTypeBoolean
	case *SpreadsheetError:
		return CellValueTypeError
	}
	return CellValueTypeEmpty
}

// CellAddress identifies a single cell. worksheet IDs start at 1; 0 means
// "the worksheet of the evaluating cell" inside formula tokens.
type CellAddress struct {
	WorksheetID uint32
	Row         uint32
	Column      uint32
}

// A1 renders the address without a sheet prefix, e.g. "B3"
func (a CellAddress) A1() string {
	return ColumnName(a.Column) + strconv.FormatUint(uint64(a.Row)+1, 10)
}

func (a CellAddress) String() string {
	return fmt.Sprintf("%d!%s", a.WorksheetID, a.A1())
}

// Less orders addresses by worksheet, then row, then column
func (a CellAddress) Less(b CellAddress) bool {
	if a.WorksheetID != b.WorksheetID {
		return a.WorksheetID < b.WorksheetID
	}
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

// RawCell is what the storage layer holds for one cell: either a literal
// value or a compiled formula. a zero RawCell is an empty cell.
type RawCell struct {
	Value   Value
	Formula Formula
}

// IsFormula reports whether the cell holds a formula
func (c RawCell) IsFormula() bool {
	return len(c.Formula) > 0
}

// IsEmpty reports whether nothing is stored in the cell
func (c RawCell) IsEmpty() bool {
	if c.IsFormula() {
		return false
	}
	_, blank := c.Value.(BlankValue)
	return c.Value == nil || blank
}

// ColumnName converts a zero-based column index to letters (0 -> A,
// 26 -> AA)
func ColumnName(col uint32) string {
	var buf [8]byte
	i := len(buf)
	n := col + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ParseCellAddress parses "B3", "$B$3" or "b3" into zero-based column and
// row indices
func ParseCellAddress(cell string) (col uint32, row uint32, err error) {
	cell = strings.ReplaceAll(cell, "$", "")
	if len(cell) < 2 {
		return 0, 0, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid cell reference: %s", cell))
	}

	// find where letters end and numbers begin
	letterEnd := 0
	for i, ch := range cell {
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' {
			letterEnd = i + 1
		} else {
			break
		}
	}

	if letterEnd == 0 || letterEnd == len(cell) || letterEnd > 3 {
		return 0, 0, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid cell reference: %s", cell))
	}

	// A=0, B=1, ..., Z=25, AA=26
	colStr := strings.ToUpper(cell[:letterEnd])
	var c uint32
	for _, ch := range colStr {
		c = c*26 + uint32(ch-'A') + 1
	}
	col = c - 1

	rowStr := cell[letterEnd:]
	rowNum, parseErr := strconv.ParseUint(rowStr, 10, 32)
	if parseErr != nil {
		return 0, 0, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid row number: %s", rowStr))
	}
	if rowNum < 1 {
		return 0, 0, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("row number must be positive: %d", rowNum))
	}

	return col, uint32(rowNum - 1), nil
}

// SplitSheetPrefix splits "Sheet1!A1" or "'My Sheet'!A1" into the sheet
// name and the rest. the sheet is empty when there is no prefix.
func SplitSheetPrefix(ref string) (sheet string, rest string) {
	idx := strings.LastIndex(ref, "!")
	if idx < 0 {
		return "", ref
	}
	sheet = ref[:idx]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, ref[idx+1:]
}
