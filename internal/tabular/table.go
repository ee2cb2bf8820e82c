// Package tabular stores rows of string columns in CSV files. Every write
// replaces the whole file through a temp file and an atomic rename, so a
// reader sees either the old rows or the new rows, never a mix.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/renameio/v2"
)

type Table struct {
	mu     sync.Mutex
	path   string
	header []string
}

// Open returns the table stored at dir/name, creating it with only the
// header row when it does not exist yet.
func Open(dir, name string, header []string) (*Table, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	t := &Table{path: filepath.Join(dir, name), header: header}

	if _, err := os.Stat(t.path); errors.Is(err, os.ErrNotExist) {
		if err := t.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", t.path, err)
	}

	return t, nil
}

func (t *Table) Path() string { return t.path }

// ReadAll returns every data row in stored order.
func (t *Table) ReadAll() ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

// Append adds rows after the existing ones in a single rewrite.
func (t *Table) Append(rows ...[]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.read()
	if err != nil {
		return err
	}
	return t.write(append(existing, rows...))
}

// Update rewrites every row for which match is true with update(row) and
// returns how many rows changed. Nothing is written when none match.
func (t *Table) Update(match func(row []string) bool, update func(row []string) []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.read()
	if err != nil {
		return 0, err
	}

	n := 0
	for i, row := range rows {
		if match(row) {
			rows[i] = update(slices.Clone(row))
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, t.write(rows)
}

// Rewrite replaces the table contents with rows.
func (t *Table) Rewrite(rows [][]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(rows)
}

// Swap reads the current rows, lets fn compute the replacement, and writes
// it back under one lock. fn returning an error leaves the file untouched.
func (t *Table) Swap(fn func(rows [][]string) ([][]string, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.read()
	if err != nil {
		return err
	}
	next, err := fn(rows)
	if err != nil {
		return err
	}
	return t.write(next)
}

func (t *Table) read() ([][]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(t.header)

	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", t.path, err)
		}
		if first {
			first = false
			if slices.Equal(rec, t.header) {
				continue
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (t *Table) write(rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, row := range rows {
		if len(row) != len(t.header) {
			return fmt.Errorf("row has %d columns, want %d", len(row), len(t.header))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	if err := renameio.WriteFile(t.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("replace %s: %w", t.path, err)
	}
	return nil
}
