package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/organizer/sanctuary/internal/apierr"
	"github.com/organizer/sanctuary/internal/metrics"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps a typed apierr.Error (or an untyped error,
// defaulted to Internal) to its HTTP status code.
func writeDomainError(w http.ResponseWriter, logger errLogger, err error) {
	kind := apierr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apierr.KindInvalidInput:
		status = http.StatusBadRequest
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindConflict:
		status = http.StatusConflict
	case apierr.KindDependency:
		status = http.StatusBadGateway
	case apierr.KindInternal:
		status = http.StatusInternalServerError
	}

	metrics.IncAPIErrors(string(kind))

	var domainErr *apierr.Error
	if errors.As(err, &domainErr) {
		logger.Warn("request failed", "kind", kind, "error", domainErr.Error())
		writeJSONError(w, status, domainErr.Message)
		return
	}

	logger.Error("request failed", "error", err)
	writeJSONError(w, status, "internal error")
}

// errLogger is the subset of *slog.Logger writeDomainError needs.
type errLogger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
