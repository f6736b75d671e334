package boltstore

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"go.etcd.io/bbolt"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

var (
	metaBucket  = []byte("meta")
	namesBucket = []byte("names")
	cellsBucket = []byte("cells")
	sheetsKey   = []byte("sheets")
)

// ErrCorrupt is returned when stored data cannot be decoded
var ErrCorrupt = errors.New("corrupt store")

// Store persists spreadsheet content in a bbolt database and keeps a
// formula.Spreadsheet in sync with it. cells are stored the way they were
// typed and recompiled when the store is opened; computed values are never
// persisted.
//
// layout:
//   - meta/sheets        worksheet names in creation order
//   - names/<NAME>       named range definitions
//   - cells/<sheet>/<A1> cell records, one sub-bucket per worksheet
type Store struct {
	db     *bbolt.DB
	sheet  *formula.Spreadsheet
	logger *slog.Logger
}

type cellRecord struct {
	Input string `json:"input"`
	Kind  string `json:"kind"`
}

type nameRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Entry is one stored cell
type Entry struct {
	Address string `json:"address"`
	Input   string `json:"input"`
	Kind    string `json:"kind"`
}

// Open opens (or creates) the database at path and loads its content
func Open(path string, opts ...formula.Option) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New loads the content of db into a fresh spreadsheet
func New(db *bbolt.DB, opts ...formula.Option) (*Store, error) {
	options := formula.EvalOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		db:     db,
		sheet:  formula.NewSpreadsheet(opts...),
		logger: logger,
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{metaBucket, namesBucket, cellsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Spreadsheet returns the in-memory spreadsheet. mutations must go through
// the store to be persisted.
func (s *Store) Spreadsheet() *formula.Spreadsheet {
	return s.sheet
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		sheets, err := readSheets(tx)
		if err != nil {
			return err
		}
		for _, name := range sheets {
			if err := s.sheet.AddWorksheet(name); err != nil {
				return fmt.Errorf("load worksheet %q: %w", name, err)
			}
		}

		err = tx.Bucket(namesBucket).ForEach(func(k, v []byte) error {
			var rec nameRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: name %s: %v", ErrCorrupt, k, err)
			}
			// the worksheet of a name may have been removed since
			if err := s.sheet.DefineNamedRange(rec.Name, rec.Address); err != nil {
				s.logger.Warn("skipping named range",
					slog.String("name", rec.Name),
					slog.String("error", err.Error()))
			}
			return nil
		})
		if err != nil {
			return err
		}

		cells := tx.Bucket(cellsBucket)
		loaded := 0
		for _, name := range sheets {
			bucket := cells.Bucket([]byte(name))
			if bucket == nil {
				continue
			}
			prefix := quoteSheet(name) + "!"
			err := bucket.ForEach(func(k, v []byte) error {
				var rec cellRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("%w: cell %s%s: %v", ErrCorrupt, prefix, k, err)
				}
				if err := s.sheet.Set(prefix+string(k), rec.Input); err != nil {
					s.logger.Warn("skipping cell",
						slog.String("cell", prefix+string(k)),
						slog.String("error", err.Error()))
					return nil
				}
				loaded++
				return nil
			})
			if err != nil {
				return err
			}
		}

		s.logger.Debug("store loaded",
			slog.Int("sheets", len(sheets)),
			slog.Int("cells", loaded))
		return nil
	})
}

func readSheets(tx *bbolt.Tx) ([]string, error) {
	data := tx.Bucket(metaBucket).Get(sheetsKey)
	if data == nil {
		return nil, nil
	}
	var sheets []string
	if err := json.Unmarshal(data, &sheets); err != nil {
		return nil, fmt.Errorf("%w: sheets: %v", ErrCorrupt, err)
	}
	return sheets, nil
}

func writeSheets(tx *bbolt.Tx, sheets []string) error {
	data, err := json.Marshal(sheets)
	if err != nil {
		return err
	}
	return tx.Bucket(metaBucket).Put(sheetsKey, data)
}

// AddSheet creates a worksheet
func (s *Store) AddSheet(name string) error {
	if err := s.sheet.AddWorksheet(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.Bucket(cellsBucket).CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
		return writeSheets(tx, s.sheet.ListWorksheets())
	})
}

// RemoveSheet deletes a worksheet with its cells
func (s *Store) RemoveSheet(name string) error {
	canonical, err := s.sheetName(name)
	if err != nil {
		return err
	}
	// named ranges on the worksheet go with it so that a reload sees the
	// same names
	wb := s.sheet.Workbook()
	id, _ := wb.SheetID(canonical)
	var names []string
	for name, r := range wb.Names().Defined() {
		if r.WorksheetID == id {
			names = append(names, name)
		}
	}
	for _, name := range names {
		if err := s.sheet.RemoveNamedRange(name); err != nil {
			return err
		}
	}

	if err := s.sheet.RemoveWorksheet(canonical); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range names {
			if err := tx.Bucket(namesBucket).Delete(nameKey(name)); err != nil {
				return err
			}
		}
		err := tx.Bucket(cellsBucket).DeleteBucket([]byte(canonical))
		if err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return writeSheets(tx, s.sheet.ListWorksheets())
	})
}

// Set stores typed content in a cell. an empty input clears it.
func (s *Store) Set(address, input string) error {
	if input == "" {
		_, err := s.Remove(address)
		return err
	}

	addr, err := s.sheet.ResolveAddress(address)
	if err != nil {
		return err
	}
	if err := s.sheet.Set(address, input); err != nil {
		return err
	}

	wb := s.sheet.Workbook()
	name, _ := wb.SheetName(addr.WorksheetID)
	rec := cellRecord{Input: input, Kind: kindOf(wb.ReadCell(addr))}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(cellsBucket).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(addr.A1()), data)
	})
}

// Remove clears a cell. returns false when it was already empty.
func (s *Store) Remove(address string) (bool, error) {
	addr, err := s.sheet.ResolveAddress(address)
	if err != nil {
		return false, err
	}
	if s.sheet.Workbook().ReadCell(addr).IsEmpty() {
		return false, nil
	}
	if err := s.sheet.Remove(address); err != nil {
		return false, err
	}

	name, _ := s.sheet.Workbook().SheetName(addr.WorksheetID)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(cellsBucket).Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(addr.A1()))
	})
	return err == nil, err
}

// DefineName defines or redefines a named range
func (s *Store) DefineName(name, address string) error {
	if err := s.sheet.DefineNamedRange(name, address); err != nil {
		return err
	}

	wb := s.sheet.Workbook()
	r, _ := wb.ResolveName(name)
	sheet, _ := wb.SheetName(r.WorksheetID)
	data, err := json.Marshal(nameRecord{Name: name, Address: quoteSheet(sheet) + "!" + r.A1()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(namesBucket).Put(nameKey(name), data)
	})
}

// RemoveName removes a named range
func (s *Store) RemoveName(name string) error {
	if err := s.sheet.RemoveNamedRange(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(namesBucket).Delete(nameKey(name))
	})
}

// Entries returns the stored cells of a worksheet in row-major order
func (s *Store) Entries(sheet string) ([]Entry, error) {
	canonical, err := s.sheetName(sheet)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(cellsBucket).Bucket([]byte(canonical))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec cellRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: cell %s: %v", ErrCorrupt, k, err)
			}
			entries = append(entries, Entry{Address: string(k), Input: rec.Input, Kind: rec.Kind})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// keys sort as bytes, so A10 comes before A2
	wb := s.sheet.Workbook()
	id, _ := wb.SheetID(canonical)
	slices.SortFunc(entries, func(a, b Entry) int {
		x, _ := wb.ParseAddress(a.Address, id)
		y, _ := wb.ParseAddress(b.Address, id)
		switch {
		case x.Less(y):
			return -1
		case y.Less(x):
			return 1
		}
		return 0
	})
	return entries, nil
}

// sheetName returns the name of a worksheet as it was created
func (s *Store) sheetName(name string) (string, error) {
	wb := s.sheet.Workbook()
	id, exists := wb.SheetID(name)
	if !exists {
		return "", formula.NewApplicationError(formula.NotFound, fmt.Sprintf("worksheet %q not found", name))
	}
	canonical, _ := wb.SheetName(id)
	return canonical, nil
}

func kindOf(raw formula.RawCell) string {
	if raw.IsFormula() {
		return formula.CellValueTypeFormula.String()
	}
	return formula.CellTypeOf(raw.Value).String()
}

func nameKey(name string) []byte {
	return []byte(strings.ToUpper(strings.TrimSpace(name)))
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Get returns the evaluated value of a cell
func (s *Store) Get(address string) (formula.Value, error) {
	return s.sheet.Get(address)
}

// Evaluate computes a formula as if it were stored at address
func (s *Store) Evaluate(text, address string) (formula.Value, error) {
	return s.sheet.Evaluate(text, address)
}

// ClearCache drops every computed value
func (s *Store) ClearCache() {
	s.sheet.ClearCache()
}

// Input returns the content of a cell as it was typed
func (s *Store) Input(address string) (string, bool, error) {
	addr, err := s.sheet.ResolveAddress(address)
	if err != nil {
		return "", false, err
	}
	name, _ := s.sheet.Workbook().SheetName(addr.WorksheetID)

	var rec cellRecord
	found := false
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(cellsBucket).Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(addr.A1()))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: cell %s: %v", ErrCorrupt, address, err)
	}
	return rec.Input, found, nil
}
