package web

import (
	"encoding/json"
	"net/http"

	"github.com/example/waitlist-service/internal/models"
)

// envelope is the JSON wrapper for every API response: exactly one of Data
// or Error is set.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Fields  []models.ValidationError `json:"fields,omitempty"`
}

func respondData(w http.ResponseWriter, status int, data any) {
	respond(w, status, envelope{Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string, fields ...models.ValidationError) {
	respond(w, status, envelope{Error: &apiError{Code: code, Message: message, Fields: fields}})
}

func respond(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
