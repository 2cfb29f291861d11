package web

import (
	"net/http"

	"github.com/cabewaldrop/csvdb/internal/dberror"
)

// statusFor maps an error kind to an HTTP status code.
func statusFor(err error) int {
	switch dberror.KindOf(err) {
	case dberror.KindParse, dberror.KindUnknownCommand:
		return http.StatusBadRequest
	case dberror.KindTableNotFound, dberror.KindColumnNotFound:
		return http.StatusNotFound
	case dberror.KindTableLocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorHint returns a helpful hint for an error.
// Returns empty string if no hint is available.
func GetErrorHint(err error) string {
	switch dberror.KindOf(err) {
	case dberror.KindTableNotFound:
		return "Check the table name spelling or GET /api/tables to see available tables."
	case dberror.KindColumnNotFound:
		return "Check the column name or GET /api/tables/{name} to see its columns."
	case dberror.KindParse:
		return "Commands look like INSERT INTO t VALUES (...) or SELECT cols FROM t [, t2] [WHERE ...]."
	case dberror.KindUnknownCommand:
		return "Only INSERT and SELECT are supported, in upper case."
	case dberror.KindTableLocked:
		return "Another write holds the table lock. Retry later, or reset the lock file if its writer crashed."
	case dberror.KindStorage:
		return "The table files could not be read or written. Check the data directory."
	default:
		return ""
	}
}
