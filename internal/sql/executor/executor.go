// Package executor implements the command executor.
//
// EDUCATIONAL NOTES:
// ------------------
// The executor is the component that actually runs commands.
// It takes an AST (Abstract Syntax Tree) from the parser and:
// 1. Validates the command (table exists, columns exist, etc.)
// 2. Plans the execution (which row positions to read and compare)
// 3. Executes the plan and returns results
//
// Rows are pulled from the table one at a time through an iterator, so a
// single-table SELECT never holds more than one page in memory. A cross
// join reads the second table once into memory and pairs every row of
// the first table with every row of the second.
//
// Commands run one at a time. The executor holds a mutex for the whole
// command, which keeps the single-writer model intact when commands
// arrive from several goroutines (the HTTP API).

package executor

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/cabewaldrop/csvdb/internal/catalog"
	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/logging"
	"github.com/cabewaldrop/csvdb/internal/sql/parser"
	"github.com/cabewaldrop/csvdb/internal/storage"
	"github.com/cabewaldrop/csvdb/internal/table"
)

// Result represents the result of executing a command.
type Result struct {
	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
	Message string     `json:"message,omitempty"`

	// Key and Page are set by INSERT.
	Key  int64 `json:"key,omitempty"`
	Page int   `json:"page,omitempty"`
}

// String formats the result the way the command loop prints it: a header
// line followed by one comma-joined line per row.
func (r *Result) String() string {
	if r.Message != "" {
		return r.Message
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(r.Columns, ","))
	for _, row := range r.Rows {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(row, ","))
	}
	return sb.String()
}

// Table formats the result as a boxed table.
func (r *Result) Table() string {
	if r.Message != "" {
		return r.Message
	}

	if len(r.Rows) == 0 {
		return "(no rows)"
	}

	var sb strings.Builder

	// Calculate column widths
	widths := make([]int, len(r.Columns))
	for i, col := range r.Columns {
		widths[i] = len(col)
	}
	for _, row := range r.Rows {
		for i, val := range row {
			if len(val) > widths[i] {
				widths[i] = len(val)
			}
		}
	}

	border := func() {
		sb.WriteString("+")
		for _, w := range widths {
			sb.WriteString(strings.Repeat("-", w+2))
			sb.WriteString("+")
		}
		sb.WriteString("\n")
	}

	border()
	sb.WriteString("|")
	for i, col := range r.Columns {
		fmt.Fprintf(&sb, " %-*s |", widths[i], col)
	}
	sb.WriteString("\n")
	border()

	for _, row := range r.Rows {
		sb.WriteString("|")
		for i, val := range row {
			fmt.Fprintf(&sb, " %-*s |", widths[i], val)
		}
		sb.WriteString("\n")
	}

	border()
	fmt.Fprintf(&sb, "(%d rows)\n", len(r.Rows))

	return sb.String()
}

// Executor executes commands against the tables of a catalog.
type Executor struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	tables  map[string]*table.Table
	log     *slog.Logger
}

// New opens every table of the catalog.
func New(cat *catalog.Catalog) (*Executor, error) {
	e := &Executor{
		catalog: cat,
		tables:  make(map[string]*table.Table, cat.Len()),
		log:     logging.WithComponent("executor"),
	}

	for _, entry := range cat.Entries() {
		tbl, err := table.Open(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to open table %s: %w", entry.TableName, err)
		}
		e.tables[entry.TableName] = tbl
	}

	return e, nil
}

// Catalog returns the catalog the executor runs against.
func (e *Executor) Catalog() *catalog.Catalog {
	return e.catalog
}

// Tables returns the table names in sorted order.
func (e *Executor) Tables() []string {
	return e.catalog.Tables()
}

// Table returns an open table by name.
func (e *Executor) Table(name string) (*table.Table, bool) {
	t, ok := e.tables[name]
	return t, ok
}

// Stats reports the page count, next key and lock state of a table. It
// waits for a running command to finish.
func (e *Executor) Stats(name string) (table.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, err := e.lookupTable(name)
	if err != nil {
		return table.Stats{}, err
	}
	return tbl.Stats()
}

func (e *Executor) lookupTable(name string) (*table.Table, error) {
	entry, err := e.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	return e.tables[entry.TableName], nil
}

// ExecuteCommand parses and runs one command line.
func (e *Executor) ExecuteCommand(command string) (*Result, error) {
	stmt, err := parser.Parse(command)
	if err != nil {
		return nil, err
	}
	return e.Execute(stmt)
}

// Execute runs a parsed statement and returns the result.
func (e *Executor) Execute(stmt parser.Statement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s := stmt.(type) {
	case *parser.InsertStatement:
		return e.executeInsert(s)
	case *parser.SelectStatement:
		return e.executeSelect(s)
	default:
		return nil, dberror.New(dberror.KindUnknownCommand, "Execute", "unsupported statement type: %T", stmt)
	}
}

// ============================================================================
// INSERT
// ============================================================================

func (e *Executor) executeInsert(stmt *parser.InsertStatement) (*Result, error) {
	tbl, err := e.lookupTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	key, values, err := bindInsert(tbl, stmt)
	if err != nil {
		return nil, err
	}

	var res table.WriteResult
	if key > 0 {
		res, err = tbl.Upsert(key, values)
	} else {
		res, err = tbl.Insert(values)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Message: fmt.Sprintf("inserted key %d into %s (page %d)", res.Key, tbl.Name(), res.Page),
		Key:     res.Key,
		Page:    res.Page,
	}, nil
}

// bindInsert maps the VALUES list onto the table's columns. A positive
// key means the command named PrimaryKey explicitly.
func bindInsert(tbl *table.Table, stmt *parser.InsertStatement) (int64, []string, error) {
	columns := tbl.Columns()

	if stmt.Columns == nil {
		if len(stmt.Values) != len(columns) {
			return 0, nil, dberror.New(dberror.KindParse, "Insert",
				"%s has %d columns, got %d values", tbl.Name(), len(columns), len(stmt.Values)).WithTable(tbl.Name())
		}
		values := make([]string, len(stmt.Values))
		for i, v := range stmt.Values {
			values[i] = v.Text
		}
		return 0, values, nil
	}

	if len(stmt.Columns) != len(stmt.Values) {
		return 0, nil, dberror.New(dberror.KindParse, "Insert",
			"%d columns named, got %d values", len(stmt.Columns), len(stmt.Values)).WithTable(tbl.Name())
	}

	var key int64
	values := make([]string, len(columns))
	seen := make(map[string]bool, len(stmt.Columns))
	for i, name := range stmt.Columns {
		if seen[name] {
			return 0, nil, dberror.New(dberror.KindParse, "Insert", "column %q named twice", name).WithTable(tbl.Name())
		}
		seen[name] = true

		text := stmt.Values[i].Text
		if name == storage.PrimaryKeyColumn {
			k, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
			if err != nil || k < 1 {
				return 0, nil, dberror.New(dberror.KindParse, "Insert",
					"%s must be a positive integer, got %q", storage.PrimaryKeyColumn, text).WithTable(tbl.Name())
			}
			key = k
			continue
		}

		idx, ok := tbl.ColumnIndex(name)
		if !ok {
			return 0, nil, dberror.New(dberror.KindColumnNotFound, "Insert", "no column %q", name).WithTable(tbl.Name())
		}
		// ColumnIndex counts PrimaryKey as position 0.
		values[idx-1] = text
	}

	return key, values, nil
}

// ============================================================================
// SELECT
// ============================================================================

func (e *Executor) executeSelect(stmt *parser.SelectStatement) (*Result, error) {
	plan, err := e.planSelect(stmt)
	if err != nil {
		return nil, err
	}
	if len(plan.skipped) > 0 {
		e.log.Warn("skipping unknown columns", "columns", plan.skipped, "tables", stmt.Tables)
	}

	result := &Result{Columns: plan.columns}

	if len(plan.tables) == 1 {
		for row, err := range plan.tables[0].Scan() {
			if err != nil {
				return nil, err
			}
			if plan.match(row) {
				result.Rows = append(result.Rows, plan.project(row))
			}
		}
		return result, nil
	}

	left, right := plan.tables[0], plan.tables[1]
	inner, err := right.Rows()
	if err != nil {
		return nil, err
	}
	e.log.Debug("cross join", "left", left.Name(), "right", right.Name(), "right_rows", len(inner))

	combined := make([]string, 0, len(left.Header())+len(right.Header()))
	for outer, err := range left.Scan() {
		if err != nil {
			return nil, err
		}
		for _, row := range inner {
			combined = append(append(combined[:0], outer...), row...)
			if plan.match(combined) {
				result.Rows = append(result.Rows, plan.project(combined))
			}
		}
	}

	return result, nil
}
