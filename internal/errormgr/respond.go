package errormgr

import (
	"fmt"
	"net/http"
	"strings"
)

// JSONBody is the sanitized wire shape of a handled error. It never
// carries the raw context map or a stack trace.
type JSONBody struct {
	ErrorCode   string        `json:"error_code"`
	UserMessage string        `json:"user_message"`
	Blocking    BlockingLevel `json:"blocking"`
	DisplayMode DisplayMode   `json:"display_mode"`
}

// BlockingError carries a blocking error across the HTML boundary so
// the outer adapter can render the standard error page. The core
// engine itself never panics or throws.
type BlockingError struct {
	Code    string
	Status  int
	Message string
	Context map[string]any
}

func (e *BlockingError) Error() string {
	return fmt.Sprintf("blocking error %s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Outcome is the HTTP-shaped result of building a response for one
// handled error. Exactly one of the three cases applies:
//   - Body set: write it as JSON with Status.
//   - Err set: surface the typed blocking error at the boundary.
//   - Neither: no response body; the error was queued for flash
//     display and rendering continues normally.
type Outcome struct {
	Status int
	Body   *JSONBody
	Err    *BlockingError
}

// WantsJSON reports whether the request expects a JSON response: an
// Accept header naming application/json, an XHR marker, or an API path.
func WantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// Build converts resolved error info into its HTTP-shaped outcome.
func Build(info *ErrorInfo, wantsJSON bool) Outcome {
	if wantsJSON {
		return Outcome{
			Status: info.HTTPStatus,
			Body: &JSONBody{
				ErrorCode:   info.ResolvedCode,
				UserMessage: info.UserMessage,
				Blocking:    info.Blocking,
				DisplayMode: info.DisplayMode,
			},
		}
	}

	if info.Blocking == BlockingFull {
		return Outcome{
			Status: info.HTTPStatus,
			Err: &BlockingError{
				Code:    info.ResolvedCode,
				Status:  info.HTTPStatus,
				Message: info.UserMessage,
				Context: info.Context,
			},
		}
	}

	return Outcome{}
}
