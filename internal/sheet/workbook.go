// Package sheet keeps work entries in a single .xlsx workbook with one
// sheet per user.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/christopherklint97/worktracker/internal/model"
)

const infoSheet = "default_sheet"

// ownerColumn holds the chat user id of each row. Users with the same
// display name share a sheet, so every per-user read and write filters on it.
const (
	ownerColumn = "E"
	ownerHeader = "user_id"
)

var (
	header    = []string{"Дата", "Время работы", "Описание работы", "Часы работы без обеда"}
	colWidths = map[string]float64{"A": 12, "B": 15, "C": 50, "D": 20}
)

type Options struct {
	// Location is used to interpret dates read back from the sheet.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Workbook serializes every load-modify-save cycle on the file behind a
// mutex. It does not guard against other processes writing the same file.
type Workbook struct {
	mu     sync.Mutex
	path   string
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Open prepares the workbook at path, creating it when missing.
func Open(path string, opts Options) (*Workbook, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating workbook directory: %w", err)
		}
	}

	w := &Workbook{path: path, loc: opts.Location, now: opts.Now, logger: opts.Logger}
	if err := w.view(func(*excelize.File) error { return nil }); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the workbook's file path.
func (w *Workbook) Path() string {
	return w.path
}

// GetOrCreateTable returns the owner's sheet name, creating the sheet with
// its header row if needed.
func (w *Workbook) GetOrCreateTable(owner model.User) (string, error) {
	name := SheetName(owner)
	err := w.update(func(f *excelize.File) error {
		return ensureTable(f, name)
	})
	if err != nil {
		return "", fmt.Errorf("creating sheet %q: %w", name, err)
	}
	return name, nil
}

// Append adds entry as the last row of the owner's sheet.
func (w *Workbook) Append(owner model.User, e model.Entry) error {
	name := SheetName(owner)
	err := w.update(func(f *excelize.File) error {
		if err := ensureTable(f, name); err != nil {
			return err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return fmt.Errorf("reading rows: %w", err)
		}
		return writeRow(f, name, len(rows)+1, owner.ID, e)
	})
	if err != nil {
		return fmt.Errorf("appending to %q: %w", name, err)
	}
	w.logger.Debug("entry appended", "sheet", name, "date", e.DateString())
	return nil
}

// Upsert replaces the owner's entry for e's date, or appends it when the
// sheet has none. It reports whether a row was replaced.
func (w *Workbook) Upsert(owner model.User, e model.Entry) (bool, error) {
	name := SheetName(owner)
	replaced := false
	err := w.update(func(f *excelize.File) error {
		if err := ensureTable(f, name); err != nil {
			return err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return fmt.Errorf("reading rows: %w", err)
		}
		day := e.DateString()
		for i, row := range rows {
			if i == 0 || cell(row, 0) != day || rowOwner(row) != owner.ID {
				continue
			}
			replaced = true
			return writeRow(f, name, i+1, owner.ID, e)
		}
		return writeRow(f, name, len(rows)+1, owner.ID, e)
	})
	if err != nil {
		return false, fmt.Errorf("upserting into %q: %w", name, err)
	}
	return replaced, nil
}

// RowCount returns the number of the owner's rows in their sheet.
func (w *Workbook) RowCount(owner model.User) (int, error) {
	entries, err := w.Entries(owner)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// FindByDate returns the owner's entry for day, or nil when there is none.
func (w *Workbook) FindByDate(owner model.User, day time.Time) (*model.Entry, error) {
	entries, err := w.Entries(owner)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if model.SameDay(entries[i].Date, day.In(w.loc)) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// DeleteByDate removes the owner's rows dated day.
func (w *Workbook) DeleteByDate(owner model.User, day time.Time) (bool, error) {
	name := SheetName(owner)
	target := day.In(w.loc).Format(model.DateLayout)
	deleted := false
	err := w.update(func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return nil
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return fmt.Errorf("reading rows: %w", err)
		}
		// Bottom-up so earlier row numbers stay valid.
		for i := len(rows) - 1; i >= 1; i-- {
			if cell(rows[i], 0) != target || rowOwner(rows[i]) != owner.ID {
				continue
			}
			if err := f.RemoveRow(name, i+1); err != nil {
				return fmt.Errorf("removing row %d: %w", i+1, err)
			}
			deleted = true
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting from %q: %w", name, err)
	}
	return deleted, nil
}

// Entries returns the owner's entries in sheet order, skipping rows of other
// users sharing the sheet. HadLunch is not stored, so it is always false on
// returned entries.
func (w *Workbook) Entries(owner model.User) ([]model.Entry, error) {
	rows, err := w.rows(SheetName(owner))
	if err != nil {
		return nil, err
	}
	var entries []model.Entry
	for i, row := range rows {
		if i == 0 || rowOwner(row) != owner.ID {
			continue
		}
		e, ok := w.parseRow(row)
		if !ok {
			w.logger.Debug("skipping unparseable row", "owner", owner.ID, "row", i+1)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type SheetSummary struct {
	Sheet    string
	Rows     int
	Hours    float64
	LastDate string
}

// Summary returns row counts and hour totals for every user sheet.
func (w *Workbook) Summary() ([]SheetSummary, error) {
	var out []SheetSummary
	err := w.view(func(f *excelize.File) error {
		for _, name := range f.GetSheetList() {
			if name == infoSheet {
				continue
			}
			rows, err := f.GetRows(name)
			if err != nil {
				return fmt.Errorf("reading %q: %w", name, err)
			}
			s := SheetSummary{Sheet: name}
			for i, row := range rows {
				if i == 0 {
					continue
				}
				e, ok := w.parseRow(row)
				if !ok {
					continue
				}
				s.Rows++
				s.Hours += e.Hours
				s.LastDate = e.DateString()
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// Snapshot returns the workbook file contents.
func (w *Workbook) Snapshot() ([]byte, error) {
	var data []byte
	err := w.view(func(f *excelize.File) error {
		buf, err := f.WriteToBuffer()
		if err != nil {
			return fmt.Errorf("serializing workbook: %w", err)
		}
		data = bytes.Clone(buf.Bytes())
		return nil
	})
	return data, err
}

func (w *Workbook) rows(name string) ([][]string, error) {
	var rows [][]string
	err := w.view(func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return nil
		}
		var err error
		rows, err = f.GetRows(name)
		if err != nil {
			return fmt.Errorf("reading %q: %w", name, err)
		}
		return nil
	})
	return rows, err
}

func (w *Workbook) parseRow(row []string) (model.Entry, bool) {
	date, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(cell(row, 0)), w.loc)
	if err != nil {
		return model.Entry{}, false
	}
	h, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(cell(row, 3)), ",", "."), 64)
	return model.Entry{
		Date:        date,
		TimeRange:   cell(row, 1),
		Description: cell(row, 2),
		Hours:       h,
	}, true
}

// view loads the workbook and runs fn on it without saving.
func (w *Workbook) view(fn func(f *excelize.File) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.load()
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// update loads the workbook, runs fn and saves the result.
func (w *Workbook) update(fn func(f *excelize.File) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.load()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	return w.save(f)
}

// load opens the workbook, creating it if missing. An unreadable file is
// moved aside and replaced with a fresh workbook.
func (w *Workbook) load() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		return f, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		w.logger.Info("creating workbook", "path", w.path)
	} else {
		backup := w.backupName()
		w.logger.Warn("workbook unreadable, moving aside", "path", w.path, "backup", backup, "error", err)
		if err := os.Rename(w.path, backup); err != nil {
			return nil, fmt.Errorf("moving unreadable workbook aside: %w", err)
		}
	}

	f = w.freshFile()
	if err := w.save(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating workbook: %w", err)
	}
	return f, nil
}

func (w *Workbook) freshFile() *excelize.File {
	f := excelize.NewFile()
	_ = f.SetSheetName(f.GetSheetName(0), infoSheet)
	_ = f.SetCellValue(infoSheet, "A1", "Информация")
	_ = f.SetCellValue(infoSheet, "A2", "Этот файл создан Work Tracker Bot")
	_ = f.SetCellValue(infoSheet, "A3", "Дата создания: "+w.now().In(w.loc).Format("02.01.2006 15:04"))
	return f
}

// save writes f to a temporary file and renames it over the workbook. One
// failed attempt is retried; if the retry fails too the data is written
// to a backup file so it is not lost.
func (w *Workbook) save(f *excelize.File) error {
	err := w.writeAtomic(f)
	if err == nil {
		return nil
	}
	w.logger.Warn("saving workbook failed, retrying", "path", w.path, "error", err)
	if err = w.writeAtomic(f); err == nil {
		return nil
	}

	backup := w.backupName()
	if berr := f.SaveAs(backup); berr == nil {
		w.logger.Error("workbook saved to backup only", "backup", backup, "error", err)
	}
	return fmt.Errorf("saving workbook: %w", err)
}

func (w *Workbook) writeAtomic(f *excelize.File) error {
	tmp := w.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := f.Write(out); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, w.path)
}

func (w *Workbook) backupName() string {
	return w.path + ".backup_" + w.now().Format("20060102_150405")
}

func ensureTable(f *excelize.File, name string) error {
	if idx, _ := f.GetSheetIndex(name); idx >= 0 {
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}

	for i, h := range header {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(name, c, h); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := f.SetCellValue(name, ownerColumn+"1", ownerHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetColVisible(name, ownerColumn, false); err != nil {
		return fmt.Errorf("hiding owner column: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(name, "A1", "D1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	for col, width := range colWidths {
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, name string, row int, ownerID int64, e model.Entry) error {
	start, _ := excelize.CoordinatesToCellName(1, row)
	// The id is written as text so large ids are not reformatted as floats.
	values := []interface{}{e.DateString(), e.TimeRange, e.Description, e.Hours, strconv.FormatInt(ownerID, 10)}
	if err := f.SetSheetRow(name, start, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}

// rowOwner returns the user id stored in the row, or 0 when it has none.
func rowOwner(row []string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cell(row, 4)), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
