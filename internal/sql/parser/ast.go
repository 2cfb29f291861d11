// Package parser implements the command parser that builds an Abstract Syntax Tree (AST).
//
// EDUCATIONAL NOTES:
// ------------------
// An Abstract Syntax Tree (AST) is a tree representation of the structure
// of a command. Each node in the tree represents a construct in the text.
//
// For example:
//   SELECT name FROM users WHERE age > 18 AND name startsWith 'J'
//
// Becomes an AST like:
//   SelectStatement
//   ├── Columns: [name]
//   ├── Tables:  [users]
//   └── Where:   LogicalExpression(AND)
//                ├── ComparisonExpression(age > 18)
//                └── ComparisonExpression(name startsWith 'J')
//
// csvdb understands two statements, INSERT and SELECT. All stored values
// are text, so literals keep their text form; the executor decides how to
// compare them.

package parser

import (
	"fmt"
	"strings"
)

// Node is the base interface for all AST nodes.
type Node interface {
	node()
	String() string
}

// Statement represents a command.
type Statement interface {
	Node
	statement()
}

// Expression represents a WHERE expression or one of its operands.
type Expression interface {
	Node
	expression()
}

// ============================================================================
// Statements
// ============================================================================

// SelectStatement represents a SELECT query.
//
// Example: SELECT users.name, orders.item FROM users, orders WHERE users.age > 18
type SelectStatement struct {
	Columns []*ColumnRef // nil means every column
	Tables  []string     // one table, or two for a cross join
	Where   Expression   // optional
}

func (s *SelectStatement) node()      {}
func (s *SelectStatement) statement() {}
func (s *SelectStatement) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		sb.WriteString("*")
	} else {
		cols := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = c.String()
		}
		sb.WriteString(strings.Join(cols, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(s.Tables, ", "))
	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}
	return sb.String()
}

// AllColumns reports whether the projection is * (or empty).
func (s *SelectStatement) AllColumns() bool {
	return len(s.Columns) == 0
}

// IsJoin reports whether the query names two tables.
func (s *SelectStatement) IsJoin() bool {
	return len(s.Tables) == 2
}

// InsertStatement represents an INSERT command.
//
// Example: INSERT INTO users (name, age) VALUES ('Alice', 30)
type InsertStatement struct {
	Table   string
	Columns []string // optional; nil means every column in schema order
	Values  []Value
}

func (s *InsertStatement) node()      {}
func (s *InsertStatement) statement() {}
func (s *InsertStatement) String() string {
	vals := make([]string, len(s.Values))
	for i, v := range s.Values {
		vals[i] = v.String()
	}
	cols := ""
	if len(s.Columns) > 0 {
		cols = " (" + strings.Join(s.Columns, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s%s VALUES (%s)", s.Table, cols, strings.Join(vals, ", "))
}

// Value is one item of a VALUES list.
type Value struct {
	// Text is the stored text: the content of a quoted value without its
	// quotes, or an unquoted value trimmed of surrounding whitespace.
	Text   string
	Quoted bool
}

func (v Value) String() string {
	if v.Quoted {
		return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
	}
	return v.Text
}

// ============================================================================
// Expressions
// ============================================================================

// ColumnRef names a column, optionally qualified by its table.
type ColumnRef struct {
	Table  string // empty when unqualified
	Column string
}

func (c *ColumnRef) node()       {}
func (c *ColumnRef) expression() {}
func (c *ColumnRef) String() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// LiteralKind distinguishes quoted text from bare numbers.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
)

// Literal is a constant operand.
type Literal struct {
	Value string
	Kind  LiteralKind
}

func (l *Literal) node()       {}
func (l *Literal) expression() {}
func (l *Literal) String() string {
	if l.Kind == LiteralNumber {
		return l.Value
	}
	return "'" + strings.ReplaceAll(l.Value, "'", "''") + "'"
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEquals CompareOp = iota
	OpGreaterThan
	OpLessThan
	OpStartsWith
)

func (op CompareOp) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpStartsWith:
		return "startsWith"
	default:
		return "?"
	}
}

// ComparisonExpression compares two operands.
type ComparisonExpression struct {
	Left     Expression
	Operator CompareOp
	Right    Expression
}

func (c *ComparisonExpression) node()       {}
func (c *ComparisonExpression) expression() {}
func (c *ComparisonExpression) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Operator, c.Right)
}

// LogicalOp combines predicates.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpOr {
		return "OR"
	}
	return "AND"
}

// LogicalExpression is an AND or OR of two predicates.
type LogicalExpression struct {
	Left     Expression
	Operator LogicalOp
	Right    Expression
}

func (l *LogicalExpression) node()       {}
func (l *LogicalExpression) expression() {}
func (l *LogicalExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Operator, l.Right)
}
