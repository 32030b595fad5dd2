// Package output writes ledger rows to their destination files.
package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Additional-Code/salesledger/internal/ledger"
)

const (
	delimiter  = ';'
	escapeChar = '\\'
	terminator = "\r\n"
)

// Writer receives the rows of each completed chunk.
type Writer interface {
	WriteRows(rows []ledger.Row) error
	Close() error
	Path() string
}

// FileWriter appends rows to a delimiter-separated ledger file. The file is
// reopened in append mode for every chunk so that rows of finished chunks
// survive a crash in a later one.
type FileWriter struct {
	mu   sync.Mutex
	path string
}

// Create truncates (or creates) the ledger file at path.
func Create(path string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &FileWriter{path: path}, nil
}

// Append keeps the existing content of path, for resumed runs.
func Append(path string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &FileWriter{path: path}, nil
}

// Path returns the ledger file path.
func (w *FileWriter) Path() string { return w.path }

// WriteRows appends rows and syncs them to disk before returning.
func (w *FileWriter) WriteRows(rows []ledger.Row) (err error) {
	if len(rows) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	buf := bufio.NewWriter(f)
	for _, row := range rows {
		for i, field := range row {
			if i > 0 {
				buf.WriteByte(delimiter)
			}
			buf.WriteString(escape(field))
		}
		buf.WriteString(terminator)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return f.Sync()
}

// Close is a no-op; every chunk already closed its handle.
func (w *FileWriter) Close() error { return nil }

func escape(field string) string {
	if !strings.ContainsAny(field, ";\\\"\r\n") {
		return field
	}
	var b strings.Builder
	b.Grow(len(field) + 4)
	for _, r := range field {
		switch r {
		case delimiter, escapeChar, '"', '\r', '\n':
			b.WriteRune(escapeChar)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FileName returns the conventional ledger file name for a run interval.
func FileName(start, end time.Time) string {
	if start.Equal(end) {
		return fmt.Sprintf("faturamento_diario_%s.csv", start.Format("020106"))
	}
	return fmt.Sprintf("faturamento_retroativo_%s_%s.csv", start.Format("020106"), end.Format("020106"))
}

// CheckFileName accepts a bare ledger file name: no directory part and a
// .csv extension. Names coming from remote callers go through it before
// being joined to the output directory.
func CheckFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid ledger file name %q", name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || filepath.IsAbs(name):
		return fmt.Errorf("ledger file name %q must not contain a directory", name)
	case !strings.EqualFold(filepath.Ext(name), ".csv"):
		return fmt.Errorf("ledger file name %q must end in .csv", name)
	}
	return nil
}

// Tee fans every call out to all writers, reporting the first error. Path
// is the primary (first) writer's.
type Tee []Writer

// WriteRows writes rows to the mirrors first and to the primary writer last,
// so a failed mirror never leaves rows in the primary that the run journal
// does not know about.
func (t Tee) WriteRows(rows []ledger.Row) error {
	for i := len(t) - 1; i >= 0; i-- {
		if err := t[i].WriteRows(rows); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer.
func (t Tee) Close() error {
	var first error
	for _, w := range t {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Path returns the primary writer's path.
func (t Tee) Path() string {
	if len(t) == 0 {
		return ""
	}
	return t[0].Path()
}
