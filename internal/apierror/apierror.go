// Package apierror writes the service's stable JSON error body.
package apierror

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	Unauthorized = "Unauthorized"
	Forbidden    = "Forbidden"
	BadRequest   = "Bad Request"
	NotFound     = "Not Found"
	NotAllowed   = "Method Not Allowed"
	Internal     = "Internal Server Error"

	// AuthenticationRequired is the message of every 401 produced for a
	// request that carried no usable credentials.
	AuthenticationRequired = "Authentication required to access this resource"
)

// Body is {"error","message","path","timestamp"}. Timestamp is epoch millis.
type Body struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// New builds a body for r at the current time.
func New(r *http.Request, errorName, message string) Body {
	return Body{
		Error:     errorName,
		Message:   message,
		Path:      r.URL.Path,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Write sends status with a Body derived from r.
func Write(w http.ResponseWriter, r *http.Request, status int, errorName, message string) {
	WriteJSON(w, status, New(r, errorName, message))
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
