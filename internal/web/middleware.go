// Package web - Request middleware
//
// EDUCATIONAL NOTES:
// ------------------
// Middleware in Go HTTP servers wraps handlers to add cross-cutting concerns.
// Context-based dependency injection is a common pattern:
//
// 1. Outer middleware injects dependencies into request context
// 2. Handlers retrieve dependencies from context when needed
// 3. Inner middleware can require dependencies and fail fast if missing
//
// Request logging goes through the same slog logger as the rest of the
// process, so HTTP traffic and storage events land in one stream.

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/cabewaldrop/csvdb/internal/sql/executor"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// executorKey is the context key for storing the executor.
const executorKey contextKey = "executor"

// WithExecutor returns middleware that injects the executor into the
// request context. Handlers can retrieve it using GetExecutor.
//
// Usage:
//
//	router.Use(WithExecutor(exec))
//	router.Get("/query", func(w http.ResponseWriter, r *http.Request) {
//	    exec := GetExecutor(r)
//	    // use exec to run commands
//	})
func WithExecutor(exec *executor.Executor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), executorKey, exec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetExecutor retrieves the executor from the request context.
// Returns nil if the executor was not set (middleware not applied).
func GetExecutor(r *http.Request) *executor.Executor {
	exec, ok := r.Context().Value(executorKey).(*executor.Executor)
	if !ok {
		return nil
	}
	return exec
}

// RequireExecutor returns middleware that ensures an executor is present
// in the request context. If not found, it answers 503 Service Unavailable.
func RequireExecutor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetExecutor(r) == nil {
			writeError(w, http.StatusServiceUnavailable, "database not initialized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger returns middleware that logs one line per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
