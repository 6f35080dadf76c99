package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"
)

const excelSheetName = "Sheet1"

// ExcelTabularStore implements TabularStore against one .xlsx file per
// sheetId under Root, the way this codebase's export service builds
// workbooks with excelize. Writes are serialized per sheetId to protect
// append ordering, matching the sheet-level mutex the spec requires.
type ExcelTabularStore struct {
	Root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExcelTabularStore(root string) *ExcelTabularStore {
	return &ExcelTabularStore{Root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *ExcelTabularStore) lockFor(sheetId string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sheetId]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sheetId] = l
	}
	return l
}

func (s *ExcelTabularStore) path(sheetId string) string {
	return filepath.Join(s.Root, sheetId+".xlsx")
}

func (s *ExcelTabularStore) open(sheetId string) (*excelize.File, error) {
	p := s.path(sheetId)
	if _, err := os.Stat(p); err != nil {
		f := excelize.NewFile()
		f.SetSheetName("Sheet1", excelSheetName)
		return f, nil
	}
	return excelize.OpenFile(p)
}

func (s *ExcelTabularStore) save(sheetId string, f *excelize.File) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}
	return f.SaveAs(s.path(sheetId))
}

func (s *ExcelTabularStore) GetValues(ctx context.Context, sheetId, rangeA1 string) ([][]string, error) {
	l := s.lockFor(sheetId)
	l.Lock()
	defer l.Unlock()

	f, err := s.open(sheetId)
	if err != nil {
		return nil, fmt.Errorf("opening sheet %q: %w", sheetId, err)
	}
	rows, err := f.GetRows(excelSheetName)
	if err != nil {
		return nil, fmt.Errorf("reading rows from %q: %w", sheetId, err)
	}
	return rows, nil
}

func (s *ExcelTabularStore) AppendRows(ctx context.Context, sheetId string, rows [][]any) error {
	l := s.lockFor(sheetId)
	l.Lock()
	defer l.Unlock()

	f, err := s.open(sheetId)
	if err != nil {
		return fmt.Errorf("opening sheet %q: %w", sheetId, err)
	}
	existing, err := f.GetRows(excelSheetName)
	if err != nil {
		return fmt.Errorf("reading existing rows from %q: %w", sheetId, err)
	}
	nextRow := len(existing) + 1

	for _, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, nextRow)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(excelSheetName, cell, value); err != nil {
				return err
			}
		}
		nextRow++
	}

	return s.save(sheetId, f)
}

func (s *ExcelTabularStore) BatchUpdate(ctx context.Context, sheetId string, updates []CellUpdate) error {
	l := s.lockFor(sheetId)
	l.Lock()
	defer l.Unlock()

	f, err := s.open(sheetId)
	if err != nil {
		return fmt.Errorf("opening sheet %q: %w", sheetId, err)
	}
	for _, u := range updates {
		cell, err := excelize.CoordinatesToCellName(u.Col+1, u.Row+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(excelSheetName, cell, u.Value); err != nil {
			return err
		}
	}
	return s.save(sheetId, f)
}

func (s *ExcelTabularStore) SortSheet(ctx context.Context, sheetId string, columnIndex int) error {
	l := s.lockFor(sheetId)
	l.Lock()
	defer l.Unlock()

	f, err := s.open(sheetId)
	if err != nil {
		return fmt.Errorf("opening sheet %q: %w", sheetId, err)
	}
	rows, err := f.GetRows(excelSheetName)
	if err != nil {
		return fmt.Errorf("reading rows from %q: %w", sheetId, err)
	}
	if len(rows) <= 1 {
		return nil
	}

	header := rows[0]
	body := rows[1:]
	sort.SliceStable(body, func(i, j int) bool {
		return sortKey(body[i], columnIndex) < sortKey(body[j], columnIndex)
	})

	fresh := excelize.NewFile()
	fresh.SetSheetName("Sheet1", excelSheetName)
	allRows := append([][]string{header}, body...)
	for r, row := range allRows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := fresh.SetCellValue(excelSheetName, cell, value); err != nil {
				return err
			}
		}
	}
	return s.save(sheetId, fresh)
}

func sortKey(row []string, columnIndex int) string {
	if columnIndex < 0 || columnIndex >= len(row) {
		return ""
	}
	cell := row[columnIndex]
	if n, err := strconv.ParseFloat(cell, 64); err == nil {
		return fmt.Sprintf("%020.4f", n)
	}
	return cell
}
