package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error      string `json:"error"`
	Reason     string `json:"reason"`
	RetryAfter string `json:"retryAfter,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorBody with the given status code.
func Error(w http.ResponseWriter, status int, reason, message string) {
	JSON(w, status, ErrorBody{Error: message, Reason: reason})
}
