package httpx

import (
	"net/http"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

type kindResponse struct {
	status int
	code   string
}

var kindResponses = map[errx.Kind]kindResponse{
	errx.NotFound:     {http.StatusNotFound, "not_found"},
	errx.Conflict:     {http.StatusConflict, "conflict"},
	errx.Invalid:      {http.StatusBadRequest, "invalid_input"},
	errx.Unauthorized: {http.StatusUnauthorized, "unauthorized"},
	errx.Forbidden:    {http.StatusForbidden, "forbidden"},
	errx.Unavailable:  {http.StatusServiceUnavailable, "unavailable"},
}

var internalResponse = kindResponse{http.StatusInternalServerError, "internal_error"}

func responseFor(kind errx.Kind) kindResponse {
	if r, ok := kindResponses[kind]; ok {
		return r
	}
	return internalResponse
}

// ErrorKindToStatus maps errx.Kind to HTTP status codes. Unknown and
// Internal both map to 500.
func ErrorKindToStatus(kind errx.Kind) int {
	return responseFor(kind).status
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	return responseFor(kind).code
}

// WriteKindError writes an error response whose status and code follow the
// kind carried by err. Server-side kinds never echo err to the client.
func WriteKindError(w http.ResponseWriter, err error, message string) {
	r := responseFor(errx.KindOf(err))
	if message == "" && r.status < http.StatusInternalServerError {
		message = err.Error()
	}
	WriteError(w, r.status, r.code, message, nil)
}
