// Package errormgr is the server-side error-resolution engine: it maps
// opaque error codes to typed, localized, multi-channel responses
// through a three-level configuration fallback chain.
package errormgr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
)

// ErrorType classifies the severity of an error code.
type ErrorType string

const (
	TypeCritical ErrorType = "critical"
	TypeError    ErrorType = "error"
	TypeWarning  ErrorType = "warning"
	TypeNotice   ErrorType = "notice"
)

// BlockingLevel classifies whether the current operation must halt.
type BlockingLevel string

const (
	BlockingFull BlockingLevel = "blocking"
	BlockingSemi BlockingLevel = "semi-blocking"
	BlockingNot  BlockingLevel = "not"
)

// DisplayMode is the UI channel hint for the user-facing message.
type DisplayMode string

const (
	DisplayDiv   DisplayMode = "div"
	DisplayModal DisplayMode = "modal"
	DisplayToast DisplayMode = "toast"
)

// Sentinel codes of the fallback chain.
const (
	CodeUndefined     = "UNDEFINED_ERROR_CODE"
	CodeFallback      = "FALLBACK_ERROR"
	CodeFatalFallback = "FATAL_FALLBACK_FAILURE"
)

// ErrorConfig is the descriptor for one error code. Static configs are
// loaded at boot; runtime definitions override them per code.
type ErrorConfig struct {
	Type           ErrorType     `json:"type"`
	Blocking       BlockingLevel `json:"blocking"`
	DevMessageKey  string        `json:"dev_message_key"`
	UserMessageKey string        `json:"user_message_key"`
	HTTPStatus     int           `json:"http_status"`
	DisplayMode    DisplayMode   `json:"display_mode"`
	NotifyTeam     bool          `json:"notify_team"`
}

// Registry holds the error configurations: read-mostly after boot,
// runtime Define calls override static entries for the same code.
type Registry struct {
	mu       sync.RWMutex
	static   map[string]ErrorConfig
	runtime  map[string]ErrorConfig
	fallback *ErrorConfig
}

// NewRegistry returns a registry seeded with the built-in definitions,
// including the UNDEFINED_ERROR_CODE sentinel and the last-resort
// fallback configuration.
func NewRegistry() *Registry {
	static := make(map[string]ErrorConfig, len(defaultDefinitions))
	for code, cfg := range defaultDefinitions {
		static[code] = cfg
	}

	fallback := defaultFallback
	return &Registry{
		static:   static,
		runtime:  make(map[string]ErrorConfig),
		fallback: &fallback,
	}
}

// NewEmptyRegistry returns a registry with no configurations at all,
// not even the fallback. Tests use it to exercise the fatal path.
func NewEmptyRegistry() *Registry {
	return &Registry{
		static:  make(map[string]ErrorConfig),
		runtime: make(map[string]ErrorConfig),
	}
}

// Define registers or overrides the configuration for a code at
// runtime. Visible to subsequent Resolve calls in the same process.
func (r *Registry) Define(code string, cfg ErrorConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime[code] = cfg
}

// Get returns the configuration for code, runtime definitions first.
func (r *Registry) Get(code string) (ErrorConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.runtime[code]; ok {
		return cfg, true
	}
	cfg, ok := r.static[code]
	return cfg, ok
}

// Fallback returns the last-resort configuration, if any.
func (r *Registry) Fallback() (ErrorConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.fallback == nil {
		return ErrorConfig{}, false
	}
	return *r.fallback, true
}

// Codes lists every known code in sorted order, runtime and static.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.static)+len(r.runtime))
	for code := range r.static {
		seen[code] = true
	}
	for code := range r.runtime {
		seen[code] = true
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LoadFile merges static definitions from a JSON file shaped as
// {"<CODE>": {<ErrorConfig>}}. A "fallback_error" key replaces the
// last-resort fallback configuration.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read error definitions file: %w", err)
	}

	var loaded map[string]ErrorConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse error definitions JSON: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for code, cfg := range loaded {
		if code == "fallback_error" {
			fallback := cfg
			r.fallback = &fallback
			continue
		}
		r.static[code] = cfg
	}

	return nil
}

// Built-in definitions for the codes the upload pipeline raises.
var defaultDefinitions = map[string]ErrorConfig{
	CodeUndefined: {
		Type:           TypeCritical,
		Blocking:       BlockingFull,
		DevMessageKey:  "errors.dev.undefined_error",
		UserMessageKey: "errors.user.undefined_error",
		HTTPStatus:     http.StatusInternalServerError,
		DisplayMode:    DisplayModal,
		NotifyTeam:     true,
	},
	"INVALID_FILE_EXTENSION": {
		Type:           TypeError,
		Blocking:       BlockingNot,
		DevMessageKey:  "errors.dev.invalid_file",
		UserMessageKey: "validation.invalid_extension",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayDiv,
	},
	"MIME_TYPE_NOT_ALLOWED": {
		Type:           TypeError,
		Blocking:       BlockingNot,
		DevMessageKey:  "errors.dev.invalid_file",
		UserMessageKey: "validation.invalid_mime_type",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayDiv,
	},
	"MAX_FILE_SIZE": {
		Type:           TypeError,
		Blocking:       BlockingNot,
		DevMessageKey:  "errors.dev.invalid_file",
		UserMessageKey: "validation.file_too_large",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayDiv,
	},
	"INVALID_FILE_NAME": {
		Type:           TypeError,
		Blocking:       BlockingNot,
		DevMessageKey:  "errors.dev.invalid_file",
		UserMessageKey: "validation.invalid_filename",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayDiv,
	},
	"TOO_MANY_FILES": {
		Type:           TypeError,
		Blocking:       BlockingSemi,
		DevMessageKey:  "errors.dev.too_many_files",
		UserMessageKey: "errors.user.too_many_files",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayDiv,
	},
	"MAX_TOTAL_SIZE": {
		Type:           TypeError,
		Blocking:       BlockingSemi,
		DevMessageKey:  "errors.dev.max_total_size",
		UserMessageKey: "errors.user.max_total_size",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayDiv,
	},
	"INVALID_TOKEN": {
		Type:           TypeError,
		Blocking:       BlockingFull,
		DevMessageKey:  "errors.dev.invalid_token",
		UserMessageKey: "errors.user.invalid_token",
		HTTPStatus:     419, // the convention for expired CSRF tokens
		DisplayMode:    DisplayModal,
	},
	"VIRUS_FOUND": {
		Type:           TypeCritical,
		Blocking:       BlockingFull,
		DevMessageKey:  "errors.dev.virus_found",
		UserMessageKey: "errors.user.virus_found",
		HTTPStatus:     http.StatusUnprocessableEntity,
		DisplayMode:    DisplayModal,
		NotifyTeam:     true,
	},
	"SCAN_FAILED": {
		Type:           TypeWarning,
		Blocking:       BlockingSemi,
		DevMessageKey:  "errors.dev.scan_failed",
		UserMessageKey: "errors.user.scan_failed",
		HTTPStatus:     http.StatusInternalServerError,
		DisplayMode:    DisplayToast,
	},
	"UPLOAD_FAILED": {
		Type:           TypeError,
		Blocking:       BlockingSemi,
		DevMessageKey:  "errors.dev.upload_failed",
		UserMessageKey: "errors.user.upload_failed",
		HTTPStatus:     http.StatusInternalServerError,
		DisplayMode:    DisplayDiv,
	},
	"UNEXPECTED_RESPONSE": {
		Type:           TypeError,
		Blocking:       BlockingFull,
		DevMessageKey:  "errors.dev.unexpected_response",
		UserMessageKey: "errors.user.unexpected_response",
		HTTPStatus:     http.StatusBadGateway,
		DisplayMode:    DisplayModal,
	},
}

// defaultFallback is the single last-resort configuration used when a
// code resolves neither directly nor through UNDEFINED_ERROR_CODE.
var defaultFallback = ErrorConfig{
	Type:           TypeCritical,
	Blocking:       BlockingFull,
	DevMessageKey:  "errors.dev.fallback_error",
	UserMessageKey: "errors.user.fallback_error",
	HTTPStatus:     http.StatusInternalServerError,
	DisplayMode:    DisplayModal,
	NotifyTeam:     true,
}
