package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"

	"geobridge/internal/engine"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: message, Details: details}, statusCode)
}

// writeEngineError maps an engine failure onto a status code
func writeEngineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrNodeNotFound), errors.Is(err, engine.ErrPartNotFound):
		writeError(w, "Not found", err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrInvalidArgument):
		writeError(w, message, err.Error(), http.StatusBadRequest)
	default:
		logging.GetFromContext(r.Context()).Error(message, "err", err.Error())
		writeError(w, message, err.Error(), http.StatusInternalServerError)
	}
}
