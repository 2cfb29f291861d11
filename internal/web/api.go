// Package web provides the HTTP API for csvdb.
//
// This file contains the JSON API endpoints for programmatic access.

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ============================================================================
// API Response Types
// ============================================================================

// APIResponse wraps all API responses with success/error info.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// TableListResponse contains the list of tables.
type TableListResponse struct {
	Tables []string `json:"tables"`
}

// TableResponse describes a table's structure and on-disk state.
type TableResponse struct {
	Name         string   `json:"name"`
	Columns      []string `json:"columns"`
	PageCapacity int      `json:"page_capacity"`
	Pages        int      `json:"pages"`
	NextKey      int64    `json:"next_key"`
	Lock         string   `json:"lock"`
}

// RowsResponse contains paginated row data.
type RowsResponse struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Offset  int        `json:"offset"`
	Limit   int        `json:"limit"`
	HasMore bool       `json:"has_more"`
}

// QueryRequest is the body for command execution.
type QueryRequest struct {
	Command string `json:"command"`
}

// QueryResponse contains command results.
type QueryResponse struct {
	Columns  []string   `json:"columns,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	RowCount int        `json:"row_count"`
	Message  string     `json:"message,omitempty"`
	Key      int64      `json:"key,omitempty"`
	Page     int        `json:"page,omitempty"`
}

// ============================================================================
// Helper Functions
// ============================================================================

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful API response.
func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error API response.
func writeError(w http.ResponseWriter, status int, message, hint string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   message,
		Hint:    hint,
	})
}

// writeDBError writes a classified error with its status and hint.
func writeDBError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error(), GetErrorHint(err))
}

// ============================================================================
// API Handlers
// ============================================================================

// handleAPITables returns a list of all tables.
// GET /api/tables
func handleAPITables(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, TableListResponse{Tables: GetExecutor(r).Tables()})
}

// handleAPITable returns the columns and state of a table.
// GET /api/tables/{name}
func handleAPITable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !IsValidIdentifier(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid table name %q", name), "")
		return
	}

	tbl, exists := GetExecutor(r).Table(name)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("table '%s' not found", name), "")
		return
	}

	stats, err := GetExecutor(r).Stats(name)
	if err != nil {
		writeDBError(w, err)
		return
	}

	entry, _ := GetExecutor(r).Catalog().Lookup(name)
	writeSuccess(w, TableResponse{
		Name:         name,
		Columns:      tbl.Header(),
		PageCapacity: entry.PageCapacity,
		Pages:        stats.Pages,
		NextKey:      stats.NextKey,
		Lock:         stats.LockState.String(),
	})
}

// handleAPITableRows returns paginated rows from a table.
// GET /api/tables/{name}/rows?limit=50&offset=0
func handleAPITableRows(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !IsValidIdentifier(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid table name %q", name), "")
		return
	}

	tbl, exists := GetExecutor(r).Table(name)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Sprintf("table '%s' not found", name), "")
		return
	}

	limit, offset := pageParams(r)
	resp := RowsResponse{
		Columns: tbl.Header(),
		Rows:    [][]string{},
		Offset:  offset,
		Limit:   limit,
	}

	// Stop the scan one row past the page to learn whether more exist.
	i := 0
	for row, err := range tbl.Scan() {
		if err != nil {
			writeDBError(w, err)
			return
		}
		if i >= offset+limit {
			resp.HasMore = true
			break
		}
		if i >= offset {
			resp.Rows = append(resp.Rows, row)
		}
		i++
	}

	writeSuccess(w, resp)
}

// handleAPIQuery executes one command.
// POST /api/query
func handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command field is required", "")
		return
	}

	result, err := GetExecutor(r).ExecuteCommand(req.Command)
	if err != nil {
		writeDBError(w, err)
		return
	}

	writeSuccess(w, QueryResponse{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: len(result.Rows),
		Message:  result.Message,
		Key:      result.Key,
		Page:     result.Page,
	})
}
