// Package table implements table handles and row operations.
//
// EDUCATIONAL NOTES:
// ------------------
// A table ties together the three storage pieces that make up one table
// on disk:
// 1. The page store - the rows themselves, spread over N.csv pages
// 2. The sequencer  - hands out the synthetic PrimaryKey
// 3. The lock       - a flag file that keeps writers from overlapping
//
// Every write follows the same protocol:
//
//	acquire lock -> obtain key -> append or update row -> release lock
//
// The lock is released on every path, including failures. A failure after
// the key is obtained leaves a gap in the key sequence; keys are never
// reused.
//
// All values are text. A row is addressed by position: position 0 is the
// PrimaryKey, position i is the i-th user column.

package table

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/cabewaldrop/csvdb/internal/catalog"
	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/logging"
	"github.com/cabewaldrop/csvdb/internal/storage"
)

// Table is an open table.
type Table struct {
	entry catalog.Entry
	pages *storage.PageStore
	seq   *storage.Sequencer
	lock  *storage.TableLock
	log   *slog.Logger
}

// WriteResult reports where a written row landed.
type WriteResult struct {
	Key  int64
	Page int
}

// Stats is a point-in-time summary of a table.
type Stats struct {
	Pages      int
	NextKey    int64
	LockState  storage.LockState
	LockHolder string
}

// Open opens the files of a table instantiated by the catalog.
func Open(e catalog.Entry) (*Table, error) {
	pages, err := storage.OpenPageStore(e.StorageRoot, e.TableName, e.PageCapacity)
	if err != nil {
		return nil, err
	}
	seq, err := storage.OpenSequencer(e.StorageRoot, e.TableName)
	if err != nil {
		return nil, err
	}
	lock, err := storage.OpenTableLock(e.StorageRoot, e.TableName)
	if err != nil {
		return nil, err
	}

	return &Table{
		entry: e,
		pages: pages,
		seq:   seq,
		lock:  lock,
		log:   logging.WithTable(e.TableName),
	}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.entry.TableName
}

// Columns returns the user columns in schema order.
func (t *Table) Columns() []string {
	return slices.Clone(t.entry.Columns)
}

// Header returns PrimaryKey followed by the user columns.
func (t *Table) Header() []string {
	return t.entry.Header()
}

// ColumnIndex returns the row position of a column, 0 being PrimaryKey.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i := slices.Index(t.entry.Header(), name)
	return i, i >= 0
}

// Insert stores values under a freshly issued key.
func (t *Table) Insert(values []string) (WriteResult, error) {
	return t.write(nil, values)
}

// Upsert stores values under key, replacing the row if key exists. The
// sequencer is advanced past key so later inserts never reuse it.
func (t *Table) Upsert(key int64, values []string) (WriteResult, error) {
	return t.write(&key, values)
}

func (t *Table) write(key *int64, values []string) (res WriteResult, err error) {
	if len(values) != len(t.entry.Columns) {
		return WriteResult{}, dberror.New(dberror.KindParse, "Insert",
			"expected %d values, got %d", len(t.entry.Columns), len(values)).WithTable(t.Name())
	}

	guard, err := t.lock.TryAcquire()
	if err != nil {
		return WriteResult{}, err
	}
	defer func() {
		if rerr := guard.Release(); rerr != nil {
			t.log.Error("failed to release lock", "op_id", guard.OperationID(), "error", rerr)
			if err == nil {
				err = rerr
			}
		}
	}()

	if key != nil {
		if err := t.seq.Observe(*key); err != nil {
			return WriteResult{}, err
		}
		res.Key = *key
	} else {
		res.Key, err = t.seq.NextKey()
		if err != nil {
			return WriteResult{}, err
		}
	}

	res.Page, err = t.pages.AppendOrUpdate(storage.Row{Key: res.Key, Values: slices.Clone(values)})
	if err != nil {
		t.log.Warn("write failed after key was issued", "key", res.Key, "op_id", guard.OperationID())
		return WriteResult{Key: res.Key}, err
	}

	t.log.Debug("row written", "key", res.Key, "page", res.Page, "op_id", guard.OperationID())
	return res, nil
}

// Scan streams every row as a field list in header order.
func (t *Table) Scan() iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for row, err := range t.pages.ScanAll() {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(row.Fields(), nil) {
				return
			}
		}
	}
}

// Rows reads every row into memory.
func (t *Table) Rows() ([][]string, error) {
	var out [][]string
	for fields, err := range t.Scan() {
		if err != nil {
			return nil, err
		}
		out = append(out, fields)
	}
	return out, nil
}

// Stats reads the page count, next key and lock state.
func (t *Table) Stats() (Stats, error) {
	next, err := t.seq.Peek()
	if err != nil {
		return Stats{}, err
	}
	state, holder, err := t.lock.State()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Pages:      t.pages.PageCount(),
		NextKey:    next,
		LockState:  state,
		LockHolder: holder,
	}, nil
}

// String describes the table for logs and the REPL.
func (t *Table) String() string {
	return fmt.Sprintf("%s(%d columns, %d rows/page)", t.Name(), len(t.entry.Columns), t.entry.PageCapacity)
}
