// Package executor - query planner implementation
//
// EDUCATIONAL NOTES:
// ------------------
// Before a SELECT runs, the planner turns names into positions:
// 1. It builds a SCOPE: the ordered list of columns a row will carry.
//    For one table that is its header; for a cross join it is the header
//    of the first table followed by the header of the second.
// 2. It resolves every projected column to an index in that scope.
// 3. It compiles the WHERE tree into a Go closure over row indices, so
//    evaluating a row never looks a name up again.
//
// Name resolution rules:
// - "col" matches any table's column of that name; matching more than
//   one table is ambiguous.
// - "table.col" matches only that table's column.
// - A name nothing matches is ColumnNotFound.
//
// All values are text. "=" compares text, "startsWith" is a prefix test
// and ">"/"<" compare integers; a side that is not an integer makes the
// comparison false rather than failing the query.

package executor

import (
	"strconv"
	"strings"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/sql/parser"
	"github.com/cabewaldrop/csvdb/internal/table"
)

// boundColumn is one column of a scope.
type boundColumn struct {
	table  string
	column string
}

// scope is the column layout of the rows a query evaluates.
type scope struct {
	columns []boundColumn

	// qualified is set for joins; output headers are then "table.col".
	qualified bool
}

func newScope(tables []*table.Table) *scope {
	s := &scope{qualified: len(tables) > 1}
	for _, t := range tables {
		for _, col := range t.Header() {
			s.columns = append(s.columns, boundColumn{table: t.Name(), column: col})
		}
	}
	return s
}

// resolve returns the row index of ref.
func (s *scope) resolve(ref *parser.ColumnRef) (int, error) {
	found := -1
	for i, c := range s.columns {
		if c.column != ref.Column || (ref.Table != "" && c.table != ref.Table) {
			continue
		}
		if found >= 0 {
			return 0, dberror.New(dberror.KindParse, "Resolve",
				"column %q is ambiguous; qualify it as %s.%s or %s.%s",
				ref.Column, s.columns[found].table, ref.Column, c.table, ref.Column)
		}
		found = i
	}
	if found < 0 {
		return 0, dberror.New(dberror.KindColumnNotFound, "Resolve", "no column %q", ref.String())
	}
	return found, nil
}

// header returns the output name of column i.
func (s *scope) header(i int) string {
	c := s.columns[i]
	if s.qualified {
		return c.table + "." + c.column
	}
	return c.column
}

// predicate reports whether a row matches.
type predicate func(row []string) bool

// operand yields one side of a comparison for a row.
type operand func(row []string) string

// selectPlan is a resolved SELECT.
type selectPlan struct {
	tables     []*table.Table
	scope      *scope
	projection []int
	columns    []string
	where      predicate // nil when there is no WHERE
	skipped    []string
}

func (p *selectPlan) match(row []string) bool {
	return p.where == nil || p.where(row)
}

func (p *selectPlan) project(row []string) []string {
	out := make([]string, len(p.projection))
	for i, idx := range p.projection {
		out[i] = row[idx]
	}
	return out
}

// planSelect resolves tables, projection and WHERE for stmt.
func (e *Executor) planSelect(stmt *parser.SelectStatement) (*selectPlan, error) {
	tables := make([]*table.Table, 0, len(stmt.Tables))
	for _, name := range stmt.Tables {
		t, err := e.lookupTable(name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	plan := &selectPlan{tables: tables, scope: newScope(tables)}

	if stmt.AllColumns() {
		for i := range plan.scope.columns {
			plan.projection = append(plan.projection, i)
			plan.columns = append(plan.columns, plan.scope.header(i))
		}
	} else {
		for _, ref := range stmt.Columns {
			idx, err := plan.scope.resolve(ref)
			if dberror.KindOf(err) == dberror.KindColumnNotFound {
				plan.skipped = append(plan.skipped, ref.String())
				continue
			}
			if err != nil {
				return nil, err
			}
			plan.projection = append(plan.projection, idx)
			plan.columns = append(plan.columns, plan.scope.header(idx))
		}
		if len(plan.projection) == 0 {
			return nil, dberror.New(dberror.KindColumnNotFound, "Select",
				"none of the requested columns exist: %s", strings.Join(plan.skipped, ", "))
		}
	}

	if stmt.Where != nil {
		where, err := compilePredicate(stmt.Where, plan.scope)
		if err != nil {
			return nil, err
		}
		plan.where = where
	}

	return plan, nil
}

// compilePredicate turns a WHERE tree into a closure.
func compilePredicate(expr parser.Expression, s *scope) (predicate, error) {
	switch e := expr.(type) {
	case *parser.LogicalExpression:
		left, err := compilePredicate(e.Left, s)
		if err != nil {
			return nil, err
		}
		right, err := compilePredicate(e.Right, s)
		if err != nil {
			return nil, err
		}
		if e.Operator == parser.OpOr {
			return func(row []string) bool { return left(row) || right(row) }, nil
		}
		return func(row []string) bool { return left(row) && right(row) }, nil

	case *parser.ComparisonExpression:
		left, err := compileOperand(e.Left, s)
		if err != nil {
			return nil, err
		}
		right, err := compileOperand(e.Right, s)
		if err != nil {
			return nil, err
		}
		return comparison(e.Operator, left, right), nil

	default:
		return nil, dberror.New(dberror.KindParse, "Where", "%s is not a condition", expr)
	}
}

func compileOperand(expr parser.Expression, s *scope) (operand, error) {
	switch e := expr.(type) {
	case *parser.ColumnRef:
		idx, err := s.resolve(e)
		if err != nil {
			return nil, err
		}
		return func(row []string) string { return row[idx] }, nil
	case *parser.Literal:
		v := e.Value
		return func([]string) string { return v }, nil
	default:
		return nil, dberror.New(dberror.KindParse, "Where", "%s is not a column or literal", expr)
	}
}

func comparison(op parser.CompareOp, left, right operand) predicate {
	switch op {
	case parser.OpGreaterThan:
		return func(row []string) bool {
			l, r, ok := integers(left(row), right(row))
			return ok && l > r
		}
	case parser.OpLessThan:
		return func(row []string) bool {
			l, r, ok := integers(left(row), right(row))
			return ok && l < r
		}
	case parser.OpStartsWith:
		return func(row []string) bool {
			return strings.HasPrefix(left(row), right(row))
		}
	default:
		return func(row []string) bool {
			return left(row) == right(row)
		}
	}
}

// integers parses both sides as base-10 integers.
func integers(a, b string) (int64, int64, bool) {
	l, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	r, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return l, r, true
}
