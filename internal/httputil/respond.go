package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cardwise/commerce_layer/internal/serviceauth"
)

// errorBody is the JSON shape for all error responses.
type errorBody struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing more we can do here.
		return
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteErrorWithAction writes a JSON error response carrying an action hint
// the client should surface to the user (e.g. "add_card").
func WriteErrorWithAction(w http.ResponseWriter, status int, msg, action string) {
	WriteJSON(w, status, errorBody{Error: msg, Action: action})
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusNotFound, msg)
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusConflict, msg)
}

// InternalError writes a 500 error response.
func InternalError(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusInternalServerError, msg)
}

// DecodeJSON decodes the request body into target, writing a 400 response and
// returning false on failure. Request bodies are capped at 1MB.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	body, err := ReadAllStrict(io.LimitReader(r.Body, 1<<20+1), 1<<20)
	if err != nil {
		BadRequest(w, "request body too large or unreadable")
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// RequireUserID extracts the X-User-ID header, writing a 401 response and
// returning ok=false when it is missing.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(serviceauth.UserIDHeader)
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "X-User-ID header required")
		return "", false
	}
	return userID, true
}
