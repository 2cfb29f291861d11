// Package storage implements the flat-file storage engine for csvdb tables.
//
// EDUCATIONAL NOTES:
// ------------------
// Real databases store data in fixed-size blocks called "pages". We keep
// the idea but bound pages by ROW COUNT instead of bytes, and store each
// page as a plain CSV file so it can be inspected with any text tool:
//
//	<data>/<schema>/<table>/
//	├── 1.csv                     header + up to N rows
//	├── 2.csv                     same header, copied from 1.csv
//	├── <table>_pk_sequence.txt   next primary key to issue
//	└── <table>_lock.txt          "locked" or "unlocked"
//
// Every page starts with the header "PrimaryKey,<col1>,...,<colN>". The
// primary key is synthetic: it is handed out by the Sequencer and is
// unique across all pages of the table.
//
// Pagination bounds how much data a single update rewrites: updating a
// row rewrites only the page that holds it.

package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// PrimaryKeyColumn is the first header field of every page.
const PrimaryKeyColumn = "PrimaryKey"

const pageExt = ".csv"

// Row is one record of a table.
type Row struct {
	Key    int64
	Values []string
}

// Fields returns the row as written to a page: key first, then values.
func (r Row) Fields() []string {
	rec := make([]string, 0, len(r.Values)+1)
	rec = append(rec, strconv.FormatInt(r.Key, 10))
	return append(rec, r.Values...)
}

// rowFromRecord parses a page record. width is the header length.
func rowFromRecord(rec []string, width int) (Row, error) {
	if len(rec) != width {
		return Row{}, fmt.Errorf("record has %d fields, header has %d", len(rec), width)
	}
	key, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("invalid primary key %q: %w", rec[0], err)
	}
	return Row{Key: key, Values: slices.Clone(rec[1:])}, nil
}

// PageFileName returns the file name of page n (1-based).
func PageFileName(n int) string {
	return strconv.Itoa(n) + pageExt
}

// HeaderFor returns the page header for a column list.
func HeaderFor(columns []string) []string {
	return append([]string{PrimaryKeyColumn}, columns...)
}

// listPages returns the page numbers present in dir, ascending. Pages must
// be numbered contiguously from 1.
func listPages(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var pages []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, pageExt) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, pageExt))
		if err != nil || n < 1 {
			continue
		}
		pages = append(pages, n)
	}
	slices.Sort(pages)

	for i, n := range pages {
		if n != i+1 {
			return nil, fmt.Errorf("page %d missing in %s", i+1, dir)
		}
	}
	return pages, nil
}

// newPageReader returns a CSV reader that enforces a constant field count.
func newPageReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	return cr
}

// ReadHeaderFile reads the header record of a page file.
func ReadHeaderFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := newPageReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("page %s has no header", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}
	return header, nil
}

// readPageFile reads a whole page into memory.
func readPageFile(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := newPageReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("page %s has no header", filepath.Base(path))
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := rowFromRecord(rec, len(header))
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+2, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// countPageRows returns the number of data rows in a page.
func countPageRows(path string) (int, error) {
	_, rows, err := readPageFile(path)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// writePageFile replaces a page with header and rows. The file is truncated
// first, so an interrupted write leaves a short page behind.
func writePageFile(path string, header []string, rows []Row) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.Fields()); err != nil {
			f.Close()
			return err
		}
	}
	return finishWrite(f, w)
}

// appendPageRow appends one row to the end of a page.
func appendPageRow(path string, row Row) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(row.Fields()); err != nil {
		f.Close()
		return err
	}
	return finishWrite(f, w)
}

// finishWrite flushes w, syncs and closes f.
func finishWrite(f *os.File, w *csv.Writer) error {
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeFileSync writes a small metadata file and syncs it to disk.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
