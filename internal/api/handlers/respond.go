package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hireloop/hireloop/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses with actionable
// messages for synchronous boundaries. Background-pipeline errors never pass
// through here; they live on the Document/Application rows.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrMaliciousInput):
		http.Error(w, "request rejected", http.StatusBadRequest)
	case errors.Is(err, core.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrExternalUnavailable):
		http.Error(w, "upstream service unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
