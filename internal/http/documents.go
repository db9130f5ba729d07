package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	applog "kpiboard/internal/log"
	"kpiboard/internal/services"
	"kpiboard/internal/store"
	"kpiboard/internal/validation"
)

const notPersistedWarning = "Changes not persisted - database not connected"

// writeResult is the body of a successful PATCH or PUT.
type writeResult[T any] struct {
	OK        bool   `json:"ok"`
	Data      T      `json:"data"`
	Persisted bool   `json:"persisted"`
	Warning   string `json:"warning,omitempty"`
}

// documentHandler serves GET, PATCH and PUT for one singleton document.
type documentHandler[T any] struct {
	svc      *services.DocumentService[T]
	fallback func() T
	metrics  *appMetrics
}

// get never fails: when the store cannot produce the document the built-in
// default is served instead.
func (h *documentHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.svc.Read(ctx)
	if err != nil {
		h.metrics.fallbackRead(h.svc.Kind())
		applog.FromContext(ctx).ErrorContext(ctx, "Document read failed, serving default",
			applog.FieldKind, h.svc.Kind(),
			applog.FieldOperation, applog.OpRead,
			applog.FieldError, err)
		writeJSON(w, http.StatusOK, h.fallback())
		return
	}
	writeJSON(w, http.StatusOK, snap.Doc)
}

func (h *documentHandler[T]) patch(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, applog.OpPatch, h.svc.Patch)
}

func (h *documentHandler[T]) put(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, applog.OpReplace, h.svc.Replace)
}

func (h *documentHandler[T]) write(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, []byte) (store.Snapshot[T], error)) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	kind := h.svc.Kind()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	snap, err := apply(ctx, body)
	if err != nil {
		var failure *validation.Failure
		if errors.As(err, &failure) {
			h.metrics.rejected(kind)
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:   "Invalid " + kind + " payload",
				Details: failure.Violations,
			})
			return
		}
		logger.ErrorContext(ctx, "Document write failed",
			applog.FieldKind, kind,
			applog.FieldOperation, op,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Failed to update data")
		return
	}

	h.metrics.written(kind)
	res := writeResult[T]{OK: true, Data: snap.Doc, Persisted: snap.Durable}
	if !snap.Durable {
		res.Warning = notPersistedWarning
	}
	writeJSON(w, http.StatusOK, res)
}
