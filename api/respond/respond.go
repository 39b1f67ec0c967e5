// Package respond holds the JSON and error conventions shared by all API
// handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/carelink/dispatchd/core/faults"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error maps domain faults onto HTTP status codes: validation to 400,
// conflicts and state violations to 409, missing entities to 404 and
// everything else to 500.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case faults.IsValidation(err):
		status = http.StatusBadRequest
	case faults.IsInvalidState(err), faults.IsConflict(err):
		status = http.StatusConflict
	case faults.IsNotFound(err):
		status = http.StatusNotFound
	}
	JSON(w, status, errorBody{Error: err.Error()})
}

// Decode parses the request body into v, returning a ValidationError on
// malformed JSON.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return faults.Validation("invalid request body: %v", err)
	}
	return nil
}

// Auth wraps h with a static bearer-token check. An empty token disables
// the check.
func Auth(token string, h http.Handler) http.Handler {
	if token == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
