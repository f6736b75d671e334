package main

import (
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/boltstore"
)

// backend is the workbook a command runs against: either an in-memory
// spreadsheet or one persisted in bbolt
type backend interface {
	Get(address string) (formula.Value, error)
	Set(address, input string) error
	Evaluate(text, address string) (formula.Value, error)
	AddSheet(name string) error
	RemoveSheet(name string) error
	DefineName(name, address string) error
	Sheets() []string
	ClearCache()
	Close() error
}

type memoryBackend struct {
	sheet *formula.Spreadsheet
}

func (m *memoryBackend) Get(address string) (formula.Value, error) { return m.sheet.Get(address) }

func (m *memoryBackend) Set(address, input string) error {
	if input == "" {
		return m.sheet.Remove(address)
	}
	return m.sheet.Set(address, input)
}

func (m *memoryBackend) Evaluate(text, address string) (formula.Value, error) {
	return m.sheet.Evaluate(text, address)
}

func (m *memoryBackend) AddSheet(name string) error    { return m.sheet.AddWorksheet(name) }
func (m *memoryBackend) RemoveSheet(name string) error { return m.sheet.RemoveWorksheet(name) }
func (m *memoryBackend) DefineName(name, address string) error {
	return m.sheet.DefineNamedRange(name, address)
}
func (m *memoryBackend) Sheets() []string { return m.sheet.ListWorksheets() }
func (m *memoryBackend) ClearCache()      { m.sheet.ClearCache() }
func (m *memoryBackend) Close() error     { return nil }

type storeBackend struct {
	*boltstore.Store
}

var (
	_ backend = (*memoryBackend)(nil)
	_ backend = storeBackend{}
)

func (s storeBackend) Sheets() []string { return s.Spreadsheet().ListWorksheets() }

// open creates the backend selected by the flags and configuration. a
// new workbook gets the configured worksheets.
func (c *cli) open() (backend, error) {
	var sheet *formula.Spreadsheet
	sheetName := func(id uint32) (string, bool) {
		if sheet == nil {
			return "", false
		}
		return sheet.Workbook().SheetName(id)
	}
	opts, err := c.config.EvalOptions(c.logger, sheetName)
	if err != nil {
		return nil, err
	}

	var b backend
	if c.dbPath == "" {
		sheet = formula.NewSpreadsheet(opts...)
		b = &memoryBackend{sheet: sheet}
	} else {
		store, err := boltstore.Open(c.dbPath, opts...)
		if err != nil {
			return nil, err
		}
		sheet = store.Spreadsheet()
		b = storeBackend{store}
	}

	if len(b.Sheets()) == 0 {
		for _, name := range c.config.Engine.Sheets {
			if err := b.AddSheet(name); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
	}
	return b, nil
}

// display renders a value the way a cell shows it
func display(v formula.Value) string {
	switch x := v.(type) {
	case formula.Number:
		return x.String()
	case formula.Text:
		return string(x)
	case formula.Boolean:
		return x.String()
	case *formula.SpreadsheetError:
		return x.String()
	}
	return ""
}
