package formula

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Spreadsheet combines storage, formula compilation, dependency tracking,
// and evaluation into a unified API. addresses without a sheet prefix
// refer to the active worksheet, which is the first one added unless
// changed with SetActiveWorksheet.
type Spreadsheet struct {
	workbook  *MemoryWorkbook
	evaluator *Evaluator
	logger    *slog.Logger
	active    uint32
}

// NewSpreadsheet creates a new spreadsheet instance without worksheets
func NewSpreadsheet(opts ...Option) *Spreadsheet {
	options := EvalOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	wb := NewMemoryWorkbook()
	return &Spreadsheet{
		workbook:  wb,
		evaluator: NewEvaluator(wb, opts...),
		logger:    logger,
	}
}

type SpreadsheetInterface interface {
	// cell methods

	Get(address string) (Value, error)
	Set(address string, content any) error
	Remove(address string) error

	// worksheet methods

	AddWorksheet(name string) error
	RemoveWorksheet(name string) error
	RenameWorksheet(oldName string, newName string) error
	DoesWorksheetExist(name string) bool
	ListWorksheets() []string

	// named range methods

	DefineNamedRange(name string, address string) error
	RemoveNamedRange(name string) error
	RenameNamedRange(oldName string, newName string) error
	DoesNamedRangeExist(name string) bool
	ListNamedRanges() []string
	ListReferencedNamedRanges() []string

	// common methods

	Calculate(ctx context.Context) error
	ClearCache()
}

var _ SpreadsheetInterface = (*Spreadsheet)(nil)

// Workbook returns the underlying storage
func (s *Spreadsheet) Workbook() *MemoryWorkbook {
	return s.workbook
}

// Evaluator returns the underlying evaluator
func (s *Spreadsheet) Evaluator() *Evaluator {
	return s.evaluator
}

// ResolveAddress parses a cell address relative to the active worksheet
func (s *Spreadsheet) ResolveAddress(address string) (CellAddress, error) {
	if s.active == 0 {
		if sheet, _ := SplitSheetPrefix(address); sheet == "" {
			return CellAddress{}, NewApplicationError(FailedPrecondition, "spreadsheet has no worksheets")
		}
	}
	return s.workbook.ParseAddress(address, s.active)
}

// Get returns the value of a cell, evaluating its formula if the cache
// has no valid value. empty cells read as Blank. an unimplemented
// function or operator is reported as *UnimplementedError.
func (s *Spreadsheet) Get(address string) (Value, error) {
	addr, err := s.ResolveAddress(address)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Evaluate(addr)
}

// Set stores content in a cell (see MemoryWorkbook.Set) and invalidates
// the cell and its dependents
func (s *Spreadsheet) Set(address string, content any) error {
	addr, err := s.ResolveAddress(address)
	if err != nil {
		return err
	}
	if err := s.workbook.Set(addr, content); err != nil {
		return err
	}
	if content == nil {
		s.evaluator.NotifyDelete(addr)
	} else {
		s.evaluator.NotifyUpdate(addr)
	}
	return nil
}

// Remove clears a cell
func (s *Spreadsheet) Remove(address string) error {
	addr, err := s.ResolveAddress(address)
	if err != nil {
		return err
	}
	if s.workbook.Remove(addr) {
		s.evaluator.NotifyDelete(addr)
	}
	return nil
}

// FormulaText returns the formula of a cell as it renders after
// compilation, with the leading '='
func (s *Spreadsheet) FormulaText(address string) (string, bool, error) {
	addr, err := s.ResolveAddress(address)
	if err != nil {
		return "", false, err
	}
	raw := s.workbook.ReadCell(addr)
	if !raw.IsFormula() {
		return "", false, nil
	}
	return "=" + raw.Formula.String(), true, nil
}

// Evaluate computes a formula as if it were stored in the cell at address
// without storing it
func (s *Spreadsheet) Evaluate(text string, address string) (Value, error) {
	addr, err := s.ResolveAddress(address)
	if err != nil {
		return nil, err
	}
	f, err := Compile(text, s.workbook)
	if err != nil {
		return nil, err
	}
	v, err := s.evaluator.EvaluateFormula(f, addr)
	if err != nil {
		return nil, err
	}
	return Dereference(v, addr.Row, addr.Column), nil
}

// AddWorksheet adds a new worksheet
func (s *Spreadsheet) AddWorksheet(name string) error {
	id, err := s.workbook.AddSheet(name)
	if err != nil {
		return err
	}
	if s.active == 0 {
		s.active = id
	}
	// formulas compiled while the sheet was missing hold #REF! and are
	// not revived; cached values of cells reading it by ID are stale
	s.evaluator.ClearAllCachedValues()
	s.logger.Debug("worksheet added", slog.String("name", name), slog.Int("id", int(id)))
	return nil
}

// RemoveWorksheet removes a worksheet and its cells. formulas elsewhere
// that reference it evaluate to #REF!.
func (s *Spreadsheet) RemoveWorksheet(name string) error {
	id, exists := s.workbook.SheetID(name)
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", name))
	}

	referencing := s.workbook.Formulas().CellsReferencingWorksheet(id)
	removed, err := s.workbook.RemoveSheet(name)
	if err != nil {
		return err
	}
	for _, addr := range removed {
		s.evaluator.NotifyDelete(addr)
	}
	for _, addr := range referencing {
		if addr.WorksheetID != id {
			s.evaluator.NotifyUpdate(addr)
		}
	}

	if s.active == id {
		s.active = 0
		if sheets := s.workbook.Sheets(); len(sheets) > 0 {
			s.active, _ = s.workbook.SheetID(sheets[0])
		}
	}
	s.logger.Debug("worksheet removed",
		slog.String("name", name),
		slog.Int("cells", len(removed)))
	return nil
}

// RenameWorksheet renames a worksheet. formulas keep pointing at it.
func (s *Spreadsheet) RenameWorksheet(oldName string, newName string) error {
	return s.workbook.RenameSheet(oldName, newName)
}

// SetActiveWorksheet selects the worksheet used for unprefixed addresses
func (s *Spreadsheet) SetActiveWorksheet(name string) error {
	id, exists := s.workbook.SheetID(name)
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("worksheet %q not found", name))
	}
	s.active = id
	return nil
}

// DoesWorksheetExist checks if a worksheet exists
func (s *Spreadsheet) DoesWorksheetExist(name string) bool {
	_, exists := s.workbook.SheetID(name)
	return exists
}

// ListWorksheets returns the worksheet names in creation order
func (s *Spreadsheet) ListWorksheets() []string {
	return s.workbook.Sheets()
}

// DefineNamedRange defines or redefines name as address, e.g.
// "Sheet1!A1:B3"
func (s *Spreadsheet) DefineNamedRange(name string, address string) error {
	r, err := s.workbook.ParseRange(address, s.active)
	if err != nil {
		return err
	}
	if err := s.workbook.DefineName(name, r); err != nil {
		return err
	}
	s.invalidateName(name)
	return nil
}

// RemoveNamedRange removes a named range. formulas using it evaluate to
// #NAME?.
func (s *Spreadsheet) RemoveNamedRange(name string) error {
	if err := s.workbook.RemoveName(name); err != nil {
		return err
	}
	s.invalidateName(name)
	return nil
}

// RenameNamedRange renames a defined range. formulas keep the name they
// were written with.
func (s *Spreadsheet) RenameNamedRange(oldName string, newName string) error {
	address, defined := s.workbook.ResolveName(oldName)
	if !defined {
		return NewApplicationError(NotFound, fmt.Sprintf("named range %q not found", oldName))
	}
	if _, taken := s.workbook.ResolveName(newName); taken && !strings.EqualFold(oldName, newName) {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("named range %q already exists", newName))
	}
	if err := s.workbook.RemoveName(oldName); err != nil {
		return err
	}
	if err := s.workbook.DefineName(newName, address); err != nil {
		return err
	}
	s.invalidateName(oldName)
	s.invalidateName(newName)
	return nil
}

func (s *Spreadsheet) invalidateName(name string) {
	for _, addr := range s.workbook.Formulas().CellsUsingName(name) {
		s.evaluator.NotifyUpdate(addr)
	}
}

// DoesNamedRangeExist checks if a named range is defined
func (s *Spreadsheet) DoesNamedRangeExist(name string) bool {
	_, exists := s.workbook.ResolveName(name)
	return exists
}

// ListNamedRanges returns all defined names, sorted
func (s *Spreadsheet) ListNamedRanges() []string {
	defined := s.workbook.Names().Defined()
	result := make([]string, 0, len(defined))
	for name := range defined {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

// ListReferencedNamedRanges returns names used by formulas but not defined
func (s *Spreadsheet) ListReferencedNamedRanges() []string {
	result := s.workbook.Names().Undefined()
	slices.Sort(result)
	return result
}

// Calculate evaluates every formula cell. volatile cells are recomputed;
// everything else is served from the cache when still valid.
func (s *Spreadsheet) Calculate(ctx context.Context) error {
	_, err := s.evaluator.EvaluateCells(ctx, s.workbook.FormulaCells())
	return err
}

// ClearCache drops every cached value, e.g. after the stability
// classification of cells changed
func (s *Spreadsheet) ClearCache() {
	s.evaluator.ClearAllCachedValues()
}

// RunnableSpreadsheet provides a chainable interface for
// spreadsheet operations. wraps the standard Spreadsheet and tracks
// errors internally
type RunnableSpreadsheet struct {
	spreadsheet *Spreadsheet
	err         error
	printLn     func(string)
}

// NewRunnableSpreadsheet creates a new RunnableSpreadsheet with one
// worksheet named "Sheet1". printLn is used by Log and CheckError.
func NewRunnableSpreadsheet(printLn func(string), opts ...Option) *RunnableSpreadsheet {
	s := NewSpreadsheet(opts...)
	return &RunnableSpreadsheet{
		spreadsheet: s,
		err:         s.AddWorksheet("Sheet1"),
		printLn:     printLn,
	}
}

// Set sets a cell value (chainable)
func (r *RunnableSpreadsheet) Set(address string, content any) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.Set(address, content)
	return r
}

// Remove removes a cell (chainable)
func (r *RunnableSpreadsheet) Remove(address string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.Remove(address)
	return r
}

// AddWorksheet adds a new worksheet (chainable)
func (r *RunnableSpreadsheet) AddWorksheet(name string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.AddWorksheet(name)
	return r
}

// RemoveWorksheet removes a worksheet (chainable)
func (r *RunnableSpreadsheet) RemoveWorksheet(name string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.RemoveWorksheet(name)
	return r
}

// DefineNamedRange defines a named range (chainable)
func (r *RunnableSpreadsheet) DefineNamedRange(name, address string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.DefineNamedRange(name, address)
	return r
}

// Calculate recalculates all formulas (chainable)
func (r *RunnableSpreadsheet) Calculate() *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	r.err = r.spreadsheet.Calculate(context.Background())
	return r
}

// Run executes a final calculation and returns the spreadsheet and any
// error. typically the last method in the chain
func (r *RunnableSpreadsheet) Run() (*Spreadsheet, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.err = r.spreadsheet.Calculate(context.Background()); r.err != nil {
		return nil, r.err
	}
	return r.spreadsheet, nil
}

// Error returns the current error state
func (r *RunnableSpreadsheet) Error() error {
	return r.err
}

// CheckError logs the current error using the printLn function (chainable)
func (r *RunnableSpreadsheet) CheckError() *RunnableSpreadsheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Spreadsheet returns the underlying spreadsheet. use with caution as it
// bypasses error tracking.
func (r *RunnableSpreadsheet) Spreadsheet() *Spreadsheet {
	return r.spreadsheet
}

// Reset clears the error state (chainable)
func (r *RunnableSpreadsheet) Reset() *RunnableSpreadsheet {
	r.err = nil
	return r
}

// Then runs fn unless the chain already failed
func (r *RunnableSpreadsheet) Then(fn func(*RunnableSpreadsheet) *RunnableSpreadsheet) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableSpreadsheet) OnError(fn func(error) error) *RunnableSpreadsheet {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// SetBatch sets multiple cells in address order (chainable)
func (r *RunnableSpreadsheet) SetBatch(cells map[string]any) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	addresses := make([]string, 0, len(cells))
	for address := range cells {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)
	for _, address := range addresses {
		if err := r.spreadsheet.Set(address, cells[address]); err != nil {
			r.err = err
			return r
		}
	}
	return r
}

// ForEach applies a function to a block of cells (chainable). rows and
// columns are zero-based.
func (r *RunnableSpreadsheet) ForEach(startRow, endRow int, startCol, endCol int, fn func(row, col int, r *RunnableSpreadsheet)) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			fn(row, col, r)
			if r.err != nil {
				return r
			}
		}
	}
	return r
}

// Value is a helper to get a single value from the chain.
// example: NewRunnableSpreadsheet(log).Set("A1", 10).Set("A2", "=A1*2").Value("A2")
func (r *RunnableSpreadsheet) Value(address string) Value {
	if r.err != nil {
		return nil
	}
	val, err := r.spreadsheet.Get(address)
	if err != nil {
		r.err = err
		return nil
	}
	return val
}

// Log prints the value of a cell (chainable)
func (r *RunnableSpreadsheet) Log(address string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	val, err := r.spreadsheet.Get(address)
	if err != nil {
		r.err = err
		return r
	}
	if _, blank := val.(BlankValue); blank {
		r.printLn(fmt.Sprintf("%s: <empty>", address))
	} else {
		r.printLn(fmt.Sprintf("%s: %v", address, val))
	}
	return r
}
