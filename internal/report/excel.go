package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// excel caps sheet names at 31 characters.
const maxSheetName = 31

var errNoSheet = errors.New("no active sheet")

// ExcelWriter appends rows to sheets of a workbook.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []any) error
	Save(w io.Writer) error
	SaveToFile(path string) error
	Close() error
}

// ExcelizeWriter implements ExcelWriter using excelize.
type ExcelizeWriter struct {
	file   *excelize.File
	sheet  string
	row    int
	header int // style id of the header row, 0 until first use
}

func NewExcelizeWriter() ExcelWriter {
	return &ExcelizeWriter{file: excelize.NewFile()}
}

func (w *ExcelizeWriter) AddSheet(name string) error {
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}

	if w.sheet == "" {
		// the new workbook starts with Sheet1
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	return nil
}

func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	start := w.row
	if err := w.WriteRow(row); err != nil {
		return err
	}

	if w.header == 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			// unstyled header
			return nil
		}
		w.header = style
	}
	first, _ := excelize.CoordinatesToCellName(1, start)
	last, _ := excelize.CoordinatesToCellName(max(len(columns), 1), start)
	_ = w.file.SetCellStyle(w.sheet, first, last, w.header)
	return nil
}

func (w *ExcelizeWriter) WriteRow(row []any) error {
	if w.sheet == "" {
		return errNoSheet
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d of %s: %w", w.row, w.sheet, err)
	}
	w.row++
	return nil
}

func (w *ExcelizeWriter) Save(out io.Writer) error {
	return w.file.Write(out)
}

func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
