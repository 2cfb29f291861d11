package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/logging"
)

// LockState is the persisted state of a table lock.
type LockState int

const (
	Unlocked LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// legacyLockPrefix is accepted when reading lock files written as
// "Status: locked".
const legacyLockPrefix = "Status:"

// LockFileName returns the name of a table's lock file.
func LockFileName(table string) string {
	return table + "_lock.txt"
}

// TableLock is the advisory write lock of one table, persisted as a flag
// file. A lock left "locked" by a crashed process stays locked until the
// file is edited or the table is reset.
type TableLock struct {
	path  string
	table string

	mu    sync.Mutex
	owner string // operation id of the current holder, empty when free

	log *slog.Logger
}

// LockGuard is held by the operation that acquired a TableLock. Release is
// idempotent and only the acquiring guard can release.
type LockGuard struct {
	lock     *TableLock
	id       string
	released bool
}

// CreateTableLock writes a lock file in the unlocked state.
func CreateTableLock(dir, table string) (*TableLock, error) {
	l := newTableLock(dir, table)
	if err := l.write(Unlocked); err != nil {
		return nil, err
	}
	return l, nil
}

// OpenTableLock opens an existing lock file.
func OpenTableLock(dir, table string) (*TableLock, error) {
	l := newTableLock(dir, table)
	state, err := l.read()
	if err != nil {
		return nil, err
	}
	if state == Locked {
		l.log.Warn("table lock is held on open; writes will fail until it is cleared", "path", l.path)
	}
	return l, nil
}

func newTableLock(dir, table string) *TableLock {
	return &TableLock{
		path:  filepath.Join(dir, LockFileName(table)),
		table: table,
		log:   logging.WithTable(table).With("component", "lock"),
	}
}

// TryAcquire takes the lock or fails immediately with a TableLocked error.
// It never waits.
func (l *TableLock) TryAcquire() (*LockGuard, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.read()
	if err != nil {
		return nil, err
	}
	if state == Locked {
		return nil, dberror.New(dberror.KindTableLocked, "TryAcquire", "table %q is locked", l.table).WithTable(l.table)
	}

	if err := l.write(Locked); err != nil {
		return nil, err
	}
	l.owner = uuid.NewString()
	l.log.Debug("lock acquired", "op_id", l.owner)

	return &LockGuard{lock: l, id: l.owner}, nil
}

// State returns the persisted lock state and the in-process holder's
// operation id, if any.
func (l *TableLock) State() (LockState, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.read()
	if err != nil {
		return Unlocked, "", err
	}
	return state, l.owner, nil
}

// OperationID identifies the operation holding the guard.
func (g *LockGuard) OperationID() string {
	return g.id
}

// Release writes the unlocked state. Calling it more than once is a no-op.
func (g *LockGuard) Release() error {
	if g == nil || g.released {
		return nil
	}
	l := g.lock

	l.mu.Lock()
	defer l.mu.Unlock()

	g.released = true
	if l.owner != g.id {
		return storageErr("Release", l.table, fmt.Errorf("lock not held by operation %s", g.id))
	}
	if err := l.write(Unlocked); err != nil {
		return err
	}
	l.owner = ""
	l.log.Debug("lock released", "op_id", g.id)
	return nil
}

func (l *TableLock) read() (LockState, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Unlocked, storageErr("ReadLock", l.table, err)
	}

	text := strings.TrimSpace(string(data))
	text = strings.TrimSpace(strings.TrimPrefix(text, legacyLockPrefix))

	switch text {
	case "locked":
		return Locked, nil
	case "unlocked":
		return Unlocked, nil
	default:
		return Unlocked, storageErr("ReadLock", l.table, fmt.Errorf("corrupt lock file %s: %q", filepath.Base(l.path), text))
	}
}

func (l *TableLock) write(state LockState) error {
	if err := writeFileSync(l.path, []byte(state.String()+"\n")); err != nil {
		return storageErr("WriteLock", l.table, err)
	}
	return nil
}
