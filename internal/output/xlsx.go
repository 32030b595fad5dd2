package output

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/Additional-Code/salesledger/internal/ledger"
)

const sheetName = "Sheet1"

// XLSXWriter mirrors the ledger into an unstyled workbook. Rows are streamed
// to a temporary file and the workbook is saved on Close.
type XLSXWriter struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	stream *excelize.StreamWriter
	next   int
}

// NewXLSX prepares a workbook that will be saved at path.
func NewXLSX(path string) (*XLSXWriter, error) {
	f := excelize.NewFile()
	stream, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx stream: %w", err)
	}
	return &XLSXWriter{path: path, file: f, stream: stream, next: 1}, nil
}

// Path returns the workbook path.
func (w *XLSXWriter) Path() string { return w.path }

// WriteRows appends rows below the ones already written.
func (w *XLSXWriter) WriteRows(rows []ledger.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, w.next)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, field := range row {
			values[i] = field
		}
		if err := w.stream.SetRow(cell, values); err != nil {
			return fmt.Errorf("xlsx row %d: %w", w.next, err)
		}
		w.next++
	}
	return nil
}

// Close flushes the stream and saves the workbook.
func (w *XLSXWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.stream.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("xlsx flush: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("xlsx save: %w", err)
	}
	return w.file.Close()
}
