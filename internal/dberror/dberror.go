// Package dberror defines the error taxonomy shared by every csvdb layer.
//
// EDUCATIONAL NOTES:
// ------------------
// A database reports very different kinds of failure: a malformed schema
// at startup, an unreadable page file, a typo in a table name, a table
// that is busy. Callers need to tell these apart without parsing message
// strings, so every error produced by csvdb carries a Kind.
//
// Kinds are matched with errors.Is against the sentinel values below:
//
//	if errors.Is(err, dberror.ErrTableLocked) {
//	    // report and move on, no retry
//	}
//
// Lower layers still wrap with fmt.Errorf("...: %w", err); the Kind
// survives any amount of wrapping because Is walks the Unwrap chain.

package dberror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by how the command loop should treat it.
type Kind int

const (
	// KindUnknown is the zero value; KindOf returns it for foreign errors.
	KindUnknown Kind = iota
	// KindSchema covers malformed or missing schema fields. Fatal at startup.
	KindSchema
	// KindStorage covers file open/read/write failures.
	KindStorage
	// KindTableNotFound is returned when a command names an unknown table.
	KindTableNotFound
	// KindColumnNotFound is returned when a command names an unknown column.
	KindColumnNotFound
	// KindTableLocked is returned when a write finds the table lock held.
	KindTableLocked
	// KindParse covers malformed command syntax.
	KindParse
	// KindUnknownCommand is returned for an unrecognised verb.
	KindUnknownCommand
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindStorage:
		return "StorageError"
	case KindTableNotFound:
		return "TableNotFound"
	case KindColumnNotFound:
		return "ColumnNotFound"
	case KindTableLocked:
		return "TableLocked"
	case KindParse:
		return "ParseError"
	case KindUnknownCommand:
		return "UnknownCommand"
	default:
		return "UnknownError"
	}
}

// Sentinels for errors.Is. They carry only a Kind.
var (
	ErrSchema         = &Error{Kind: KindSchema}
	ErrStorage        = &Error{Kind: KindStorage}
	ErrTableNotFound  = &Error{Kind: KindTableNotFound}
	ErrColumnNotFound = &Error{Kind: KindColumnNotFound}
	ErrTableLocked    = &Error{Kind: KindTableLocked}
	ErrParse          = &Error{Kind: KindParse}
	ErrUnknownCommand = &Error{Kind: KindUnknownCommand}
)

// Error is a classified csvdb error.
type Error struct {
	Kind Kind

	// Op names the operation that failed, e.g. "AppendOrUpdate".
	Op string

	// Table is the table involved, if any.
	Table string

	// Msg is a human-readable description.
	Msg string

	// Err is the underlying cause.
	Err error
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap classifies err under kind. A nil err yields nil. If err is already
// a *Error of any kind it is returned with Op filled in when missing, so
// the innermost classification wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		if dbErr.Op == "" {
			dbErr.Op = op
		}
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithTable returns a copy of e annotated with a table name.
func (e *Error) WithTable(name string) *Error {
	cp := *e
	cp.Table = name
	return &cp
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Table != "" {
		fmt.Fprintf(&sb, " [%s]", e.Table)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same Kind. Sentinels match
// any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return KindUnknown
}
