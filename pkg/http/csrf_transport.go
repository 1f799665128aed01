package http

import "net/http"

type csrfTransport struct {
	token     string
	transport http.RoundTripper
}

func (t *csrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())

	if t.token != "" {
		reqCopy.Header.Set("X-CSRF-TOKEN", t.token)
	}

	return t.transport.RoundTrip(reqCopy)
}

// WithCSRFToken attaches the session CSRF token to every outbound
// request. The upload form additionally carries it as the _token field.
func WithCSRFToken(token string) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &csrfTransport{
			token:     token,
			transport: rt,
		}
	})
}
