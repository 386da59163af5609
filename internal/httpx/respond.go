package httpx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Items is the envelope for unpaged collections such as rankings.
type Items[T any] struct {
	Items []T `json:"items"`
}

// WriteJSON writes v as JSON with the given status code. The body is encoded
// before any header is sent, so an unencodable value yields a 500 instead of
// a truncated success.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err, "status", status)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"internal_error","message":"failed to encode response"}` + "\n")
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)

	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("failed to write JSON response", "error", err)
	}
}

// WriteItems writes items wrapped in an Items envelope. A nil slice is sent
// as an empty array.
func WriteItems[T any](w http.ResponseWriter, status int, items []T) {
	if items == nil {
		items = []T{}
	}
	WriteJSON(w, status, Items[T]{Items: items})
}

// WriteNoContent writes a bodiless 204.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}
