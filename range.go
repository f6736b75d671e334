package formula

import (
	"fmt"
	"strings"
)

// RangeAddress represents a range of cells within a single worksheet.
// bounds are inclusive and always ordered.
type RangeAddress struct {
	WorksheetID uint32
	StartRow    uint32
	StartColumn uint32
	EndRow      uint32
	EndColumn   uint32
}

// NewRangeAddress builds an ordered range from two corners
func NewRangeAddress(worksheetID, row0, col0, row1, col1 uint32) RangeAddress {
	return RangeAddress{
		WorksheetID: worksheetID,
		StartRow:    min(row0, row1),
		StartColumn: min(col0, col1),
		EndRow:      max(row0, row1),
		EndColumn:   max(col0, col1),
	}
}

// CellRange returns the 1x1 range covering a single cell
func CellRange(addr CellAddress) RangeAddress {
	return RangeAddress{
		WorksheetID: addr.WorksheetID,
		StartRow:    addr.Row,
		StartColumn: addr.Column,
		EndRow:      addr.Row,
		EndColumn:   addr.Column,
	}
}

func (r RangeAddress) Height() int { return int(r.EndRow-r.StartRow) + 1 }

func (r RangeAddress) Width() int { return int(r.EndColumn-r.StartColumn) + 1 }

// TopLeft returns the first cell of the range
func (r RangeAddress) TopLeft() CellAddress {
	return CellAddress{WorksheetID: r.WorksheetID, Row: r.StartRow, Column: r.StartColumn}
}

// Contains checks if a cell is within the range
func (r RangeAddress) Contains(addr CellAddress) bool {
	return r.WorksheetID == addr.WorksheetID &&
		addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Column >= r.StartColumn && addr.Column <= r.EndColumn
}

// Intersect returns the overlap of two ranges on the same worksheet
func (r RangeAddress) Intersect(o RangeAddress) (RangeAddress, bool) {
	if r.WorksheetID != o.WorksheetID {
		return RangeAddress{}, false
	}
	out := RangeAddress{
		WorksheetID: r.WorksheetID,
		StartRow:    max(r.StartRow, o.StartRow),
		StartColumn: max(r.StartColumn, o.StartColumn),
		EndRow:      min(r.EndRow, o.EndRow),
		EndColumn:   min(r.EndColumn, o.EndColumn),
	}
	if out.StartRow > out.EndRow || out.StartColumn > out.EndColumn {
		return RangeAddress{}, false
	}
	return out, true
}

// Bounding returns the smallest range covering both ranges
func (r RangeAddress) Bounding(o RangeAddress) RangeAddress {
	return RangeAddress{
		WorksheetID: r.WorksheetID,
		StartRow:    min(r.StartRow, o.StartRow),
		StartColumn: min(r.StartColumn, o.StartColumn),
		EndRow:      max(r.EndRow, o.EndRow),
		EndColumn:   max(r.EndColumn, o.EndColumn),
	}
}

// A1 renders the range without a sheet prefix, e.g. "A1:C3"
func (r RangeAddress) A1() string {
	start := r.TopLeft().A1()
	if r.Height() == 1 && r.Width() == 1 {
		return start
	}
	end := CellAddress{Row: r.EndRow, Column: r.EndColumn}.A1()
	return start + ":" + end
}

func (r RangeAddress) String() string {
	return fmt.Sprintf("%d!%s", r.WorksheetID, r.A1())
}

// NamedRangeTable manages named ranges. names are case-insensitive and may
// be referenced by formulas before they are defined; a referenced name
// stays interned (undefined) until its last reference is released.
type NamedRangeTable struct {
	names         *InternTable[string]    // upper-cased name -> ID
	display       map[uint32]string       // ID -> name as first written
	definedRanges map[uint32]RangeAddress // ID -> address for defined names
}

// NewNamedRangeTable creates a new named range table
func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{
		names:         NewInternTable[string](),
		display:       make(map[uint32]string),
		definedRanges: make(map[uint32]RangeAddress),
	}
}

func nameKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Reference records a formula reference to name (defined or not) and
// returns its ID
func (nrt *NamedRangeTable) Reference(name string) uint32 {
	id := nrt.names.Intern(nameKey(name))
	if _, exists := nrt.display[id]; !exists {
		nrt.display[id] = name
	}
	return id
}

// Release drops one formula reference. undefined names disappear with
// their last reference.
func (nrt *NamedRangeTable) Release(id uint32) {
	if nrt.names.ReferenceCount(id) <= 1 {
		if _, defined := nrt.definedRanges[id]; defined {
			return
		}
		delete(nrt.display, id)
	}
	nrt.names.Release(id)
}

// Define defines or redefines name. a defined name holds one reference of
// its own.
func (nrt *NamedRangeTable) Define(name string, address RangeAddress) uint32 {
	id, exists := nrt.names.Lookup(nameKey(name))
	if !exists || !nrt.IsDefined(id) {
		id = nrt.Reference(name)
	}
	nrt.definedRanges[id] = address
	return id
}

// Undefine removes the definition of name. returns false when the name
// was not defined.
func (nrt *NamedRangeTable) Undefine(name string) bool {
	id, exists := nrt.names.Lookup(nameKey(name))
	if !exists {
		return false
	}
	if _, defined := nrt.definedRanges[id]; !defined {
		return false
	}
	delete(nrt.definedRanges, id)
	nrt.Release(id)
	return true
}

// Rename moves a name, keeping its ID so formulas stay bound to it
func (nrt *NamedRangeTable) Rename(oldName, newName string) error {
	id, exists := nrt.names.Lookup(nameKey(oldName))
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("named range %q not found", oldName))
	}
	if !nrt.names.Rekey(id, nameKey(newName)) {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("named range %q already exists", newName))
	}
	nrt.display[id] = newName
	return nil
}

// Resolve returns the address of a defined name
func (nrt *NamedRangeTable) Resolve(name string) (RangeAddress, bool) {
	id, exists := nrt.names.Lookup(nameKey(name))
	if !exists {
		return RangeAddress{}, false
	}
	addr, defined := nrt.definedRanges[id]
	return addr, defined
}

// IsDefined checks if a named range has a definition
func (nrt *NamedRangeTable) IsDefined(id uint32) bool {
	_, exists := nrt.definedRanges[id]
	return exists
}

// Defined returns all defined names with their addresses
func (nrt *NamedRangeTable) Defined() map[string]RangeAddress {
	result := make(map[string]RangeAddress, len(nrt.definedRanges))
	for id, addr := range nrt.definedRanges {
		result[nrt.display[id]] = addr
	}
	return result
}

// Undefined returns referenced but undefined names
func (nrt *NamedRangeTable) Undefined() []string {
	var result []string
	for id, name := range nrt.display {
		if !nrt.IsDefined(id) {
			result = append(result, name)
		}
	}
	return result
}

// Count returns the total number of names (defined and undefined)
func (nrt *NamedRangeTable) Count() int {
	return nrt.names.Count()
}
