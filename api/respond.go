package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/recovery"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, health.ErrUnknownService):
		return http.StatusNotFound
	case errors.Is(err, health.ErrDuplicateService):
		return http.StatusConflict
	case errors.Is(err, health.ErrInvalidService), errors.Is(err, recovery.ErrUnknownStrategy), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("api: bad request")
