package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape for the /api/eld surface. Every
// endpoint returns it, success or failure.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes a success envelope wrapping data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, errMsg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: false, Error: errMsg, Details: details})
}

func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, msg, "")
}

func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusNotFound, msg, "")
}

func WriteUnauthorized(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusUnauthorized, msg, "")
}

func WriteRateLimited(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusTooManyRequests, msg, "")
}

func WriteInternalError(w http.ResponseWriter, msg, details string) {
	WriteError(w, http.StatusInternalServerError, msg, details)
}

func WriteServiceUnavailable(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusServiceUnavailable, msg, "")
}
