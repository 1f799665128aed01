package response

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

// ErrorResponse represents a plain error response for failures that
// happen before the error engine is involved (e.g. unreadable form).
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Can't change response at this point, just log
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Error writes an error response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// Success writes a success response
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// ErrorPage writes a minimal HTML page for blocking errors on
// browser-shaped requests.
func ErrorPage(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPageTemplate, status, html.EscapeString(code), html.EscapeString(message))
}

const errorPageTemplate = `<!DOCTYPE html>
<html>
<head><title>Error %d</title></head>
<body><h1>%s</h1><p>%s</p></body>
</html>
`

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
