package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cabewaldrop/csvdb/internal/dberror"
)

// legacySequencePrefix is accepted when reading sequence files written as
// "Primary Key: N".
const legacySequencePrefix = "Primary Key:"

// SequenceFileName returns the name of a table's sequence file.
func SequenceFileName(table string) string {
	return table + "_pk_sequence.txt"
}

// Sequencer issues primary keys for one table. The file always holds the
// next key to hand out, so keys are strictly increasing across restarts.
type Sequencer struct {
	path  string
	table string
}

// CreateSequencer writes a fresh sequence file starting at 1.
func CreateSequencer(dir, table string) (*Sequencer, error) {
	s := &Sequencer{path: filepath.Join(dir, SequenceFileName(table)), table: table}
	if err := s.store(1); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSequencer opens an existing sequence file and checks that it parses.
func OpenSequencer(dir, table string) (*Sequencer, error) {
	s := &Sequencer{path: filepath.Join(dir, SequenceFileName(table)), table: table}
	if _, err := s.Peek(); err != nil {
		return nil, err
	}
	return s, nil
}

// Peek returns the next key without consuming it.
func (s *Sequencer) Peek() (int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, storageErr("Peek", s.table, err)
	}

	text := strings.TrimSpace(string(data))
	text = strings.TrimSpace(strings.TrimPrefix(text, legacySequencePrefix))

	next, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, storageErr("Peek", s.table, fmt.Errorf("corrupt sequence file %s: %w", filepath.Base(s.path), err))
	}
	if next < 1 {
		return 0, storageErr("Peek", s.table, fmt.Errorf("corrupt sequence file %s: next key %d", filepath.Base(s.path), next))
	}
	return next, nil
}

// NextKey returns the next key and durably advances the sequence. A key is
// never returned twice, even if the write that follows fails.
func (s *Sequencer) NextKey() (int64, error) {
	key, err := s.Peek()
	if err != nil {
		return 0, err
	}
	if err := s.store(key + 1); err != nil {
		return 0, err
	}
	return key, nil
}

// Observe records that key is in use, advancing the sequence past it when
// needed. Keys below the current position leave the sequence unchanged.
func (s *Sequencer) Observe(key int64) error {
	if key < 1 {
		return dberror.New(dberror.KindParse, "Observe", "primary key must be positive, got %d", key).WithTable(s.table)
	}
	next, err := s.Peek()
	if err != nil {
		return err
	}
	if key < next {
		return nil
	}
	return s.store(key + 1)
}

func (s *Sequencer) store(next int64) error {
	if err := writeFileSync(s.path, []byte(strconv.FormatInt(next, 10)+"\n")); err != nil {
		return storageErr("NextKey", s.table, err)
	}
	return nil
}
