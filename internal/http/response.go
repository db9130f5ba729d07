package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	applog "kpiboard/internal/log"
	"kpiboard/internal/validation"
)

type errorBody struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", applog.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// recoverer turns a handler panic into a 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Panic recovered",
				applog.FieldPath, r.URL.Path,
				applog.FieldErrorType, applog.ErrorTypeInternal,
				"panic", rec,
				"stack", string(debug.Stack()))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
