// Package web - Input validation for web handlers
//
// EDUCATIONAL NOTES:
// ------------------
// Input validation happens at the HTTP layer before anything reaches the
// executor:
//
// 1. Table names in URLs must be identifiers, the same rule the schema
//    loader enforces, so a malformed name is a 400 and never a lookup.
//
// 2. Pagination parameters are clamped rather than rejected, so a client
//    asking for too much gets a bounded page.

package web

import (
	"net/http"
	"strconv"

	"github.com/cabewaldrop/csvdb/internal/schema"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

// IsValidIdentifier checks if a string is a valid table or column name.
//
// Examples:
//
//	IsValidIdentifier("users")      // true
//	IsValidIdentifier("_private")   // true
//	IsValidIdentifier("123start")   // false (starts with number)
//	IsValidIdentifier("has-dash")   // false (contains dash)
//	IsValidIdentifier("")           // false (empty)
func IsValidIdentifier(s string) bool {
	return schema.IsValidIdentifier(s)
}

// pageParams reads limit and offset from the query string. Missing or
// malformed values fall back to the defaults.
func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, maxPageLimit)
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
