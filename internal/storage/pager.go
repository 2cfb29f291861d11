// Package storage - Page Store component
//
// EDUCATIONAL NOTES:
// ------------------
// The PageStore owns the on-disk pages of ONE table. It is responsible for:
// 1. Creating page 1 with the table header
// 2. Appending rows to the last page, opening a new page when it is full
// 3. Updating a row in place when its primary key already exists
// 4. Streaming every row back in page order
//
// Freshly sequenced keys are never present yet, so scanning every page to
// look for them would be wasted work. A bloom filter answers "definitely
// not present" for those keys and the update scan only runs when the
// filter says the key MIGHT exist.

package storage

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/logging"
)

// bloomFalsePositiveRate is the target false positive rate of the key filter.
const bloomFalsePositiveRate = 0.01

// PageStore manages the page files of a single table.
//
// A PageStore is not safe for concurrent use; the executor serialises
// commands.
type PageStore struct {
	dir      string
	table    string
	capacity int
	header   []string

	// lastPage is the highest page number; lastRows the rows it holds.
	lastPage int
	lastRows int

	// keys holds every key written through this store once keysLoaded.
	keys       *bloom.BloomFilter
	keysLoaded bool

	log *slog.Logger
}

// CreatePageStore initialises an empty table in dir: any existing pages are
// removed and page 1 is written with the header for columns.
func CreatePageStore(dir, table string, columns []string, capacity int) (*PageStore, error) {
	if capacity <= 0 {
		return nil, dberror.New(dberror.KindSchema, "CreatePageStore", "page capacity must be positive, got %d", capacity)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("CreatePageStore", table, err)
	}

	existing, err := listPages(dir)
	if err != nil {
		// A gap in numbering is irrelevant when everything is being removed.
		existing = nil
		matches, _ := filepath.Glob(filepath.Join(dir, "*"+pageExt))
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return nil, storageErr("CreatePageStore", table, err)
			}
		}
	}
	for _, n := range existing {
		if err := os.Remove(filepath.Join(dir, PageFileName(n))); err != nil {
			return nil, storageErr("CreatePageStore", table, err)
		}
	}

	header := HeaderFor(columns)
	if err := writePageFile(filepath.Join(dir, PageFileName(1)), header, nil); err != nil {
		return nil, storageErr("CreatePageStore", table, err)
	}

	s := newPageStore(dir, table, capacity, header)
	s.lastPage = 1
	s.lastRows = 0
	s.keysLoaded = true
	return s, nil
}

// OpenPageStore opens the pages of an existing table.
func OpenPageStore(dir, table string, capacity int) (*PageStore, error) {
	if capacity <= 0 {
		return nil, dberror.New(dberror.KindSchema, "OpenPageStore", "page capacity must be positive, got %d", capacity)
	}

	pages, err := listPages(dir)
	if err != nil {
		return nil, storageErr("OpenPageStore", table, err)
	}
	if len(pages) == 0 {
		return nil, storageErr("OpenPageStore", table, fmt.Errorf("no pages in %s", dir))
	}

	header, err := ReadHeaderFile(filepath.Join(dir, PageFileName(1)))
	if err != nil {
		return nil, storageErr("OpenPageStore", table, err)
	}

	last := pages[len(pages)-1]
	rows, err := countPageRows(filepath.Join(dir, PageFileName(last)))
	if err != nil {
		return nil, storageErr("OpenPageStore", table, err)
	}

	s := newPageStore(dir, table, capacity, header)
	s.lastPage = last
	s.lastRows = rows
	return s, nil
}

func newPageStore(dir, table string, capacity int, header []string) *PageStore {
	return &PageStore{
		dir:      dir,
		table:    table,
		capacity: capacity,
		header:   header,
		keys:     bloom.NewWithEstimates(uint(max(capacity*16, 1024)), bloomFalsePositiveRate),
		log:      logging.WithTable(table).With("component", "pagestore"),
	}
}

// Capacity returns the maximum number of rows per page.
func (s *PageStore) Capacity() int {
	return s.capacity
}

// PageCount returns the number of pages currently on disk.
func (s *PageStore) PageCount() int {
	return s.lastPage
}

// ReadHeader reads the header shared by all pages from page 1.
func (s *PageStore) ReadHeader() ([]string, error) {
	header, err := ReadHeaderFile(s.pagePath(1))
	if err != nil {
		return nil, storageErr("ReadHeader", s.table, err)
	}
	return header, nil
}

// AppendOrUpdate writes row and returns the page number it landed on.
//
// If a row with the same key exists, its values are replaced in place and
// the whole page is rewritten. Otherwise the row is appended to the last
// page, opening a new page first when the last one is full.
func (s *PageStore) AppendOrUpdate(row Row) (int, error) {
	if len(row.Values) != len(s.header)-1 {
		return 0, storageErr("AppendOrUpdate", s.table,
			fmt.Errorf("row has %d values, table has %d columns", len(row.Values), len(s.header)-1))
	}

	if err := s.loadKeys(); err != nil {
		return 0, err
	}

	key := strconv.FormatInt(row.Key, 10)
	if s.keys.TestString(key) {
		page, found, err := s.updateInPlace(row)
		if err != nil {
			return 0, err
		}
		if found {
			return page, nil
		}
	}

	if s.lastRows >= s.capacity {
		if err := s.openNextPage(); err != nil {
			return 0, err
		}
	}

	if err := appendPageRow(s.pagePath(s.lastPage), row); err != nil {
		return 0, storageErr("AppendOrUpdate", s.table, err)
	}
	s.lastRows++
	s.keys.AddString(key)

	return s.lastPage, nil
}

// updateInPlace looks for row.Key page by page and rewrites the page that
// holds it.
func (s *PageStore) updateInPlace(row Row) (int, bool, error) {
	for page := 1; page <= s.lastPage; page++ {
		path := s.pagePath(page)
		header, rows, err := readPageFile(path)
		if err != nil {
			return 0, false, storageErr("AppendOrUpdate", s.table, err)
		}

		idx := slices.IndexFunc(rows, func(r Row) bool { return r.Key == row.Key })
		if idx < 0 {
			continue
		}

		rows[idx].Values = slices.Clone(row.Values)
		if err := writePageFile(path, header, rows); err != nil {
			return 0, false, storageErr("AppendOrUpdate", s.table, err)
		}
		s.log.Debug("row updated in place", "key", row.Key, "page", page)
		return page, true, nil
	}
	return 0, false, nil
}

// openNextPage creates page lastPage+1 with the header copied from page 1.
func (s *PageStore) openNextPage() error {
	header, err := s.ReadHeader()
	if err != nil {
		return err
	}

	next := s.lastPage + 1
	if err := writePageFile(s.pagePath(next), header, nil); err != nil {
		return storageErr("AppendOrUpdate", s.table, err)
	}

	s.lastPage = next
	s.lastRows = 0
	s.log.Debug("opened new page", "page", next)
	return nil
}

// loadKeys fills the bloom filter from disk the first time it is needed.
func (s *PageStore) loadKeys() error {
	if s.keysLoaded {
		return nil
	}
	for row, err := range s.ScanAll() {
		if err != nil {
			return err
		}
		s.keys.AddString(strconv.FormatInt(row.Key, 10))
	}
	s.keysLoaded = true
	return nil
}

// ScanAll streams every row in page order, then row order within a page.
// Each call re-reads from page 1. Iteration stops at the first error,
// which is yielded with a zero Row.
func (s *PageStore) ScanAll() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		pages, err := listPages(s.dir)
		if err != nil {
			yield(Row{}, storageErr("ScanAll", s.table, err))
			return
		}
		for _, page := range pages {
			if !s.scanPage(page, yield) {
				return
			}
		}
	}
}

// scanPage yields the rows of one page. It returns false when iteration
// must stop.
func (s *PageStore) scanPage(page int, yield func(Row, error) bool) bool {
	f, err := os.Open(s.pagePath(page))
	if err != nil {
		yield(Row{}, storageErr("ScanAll", s.table, err))
		return false
	}
	defer f.Close()

	r := newPageReader(f)
	header, err := r.Read()
	if err != nil {
		yield(Row{}, storageErr("ScanAll", s.table, fmt.Errorf("page %d header: %w", page, err)))
		return false
	}
	if !slices.Equal(header, s.header) {
		yield(Row{}, storageErr("ScanAll", s.table, fmt.Errorf("page %d header %v differs from %v", page, header, s.header)))
		return false
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			yield(Row{}, storageErr("ScanAll", s.table, fmt.Errorf("page %d: %w", page, err)))
			return false
		}
		row, err := rowFromRecord(rec, len(header))
		if err != nil {
			yield(Row{}, storageErr("ScanAll", s.table, fmt.Errorf("page %d: %w", page, err)))
			return false
		}
		if !yield(row, nil) {
			return false
		}
	}
}

func (s *PageStore) pagePath(n int) string {
	return filepath.Join(s.dir, PageFileName(n))
}

func storageErr(op, table string, err error) error {
	wrapped := dberror.Wrap(dberror.KindStorage, op, err)
	var dbErr *dberror.Error
	if errors.As(wrapped, &dbErr) && dbErr.Table == "" {
		dbErr.Table = table
	}
	return wrapped
}
