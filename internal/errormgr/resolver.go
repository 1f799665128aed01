package errormgr

import "fmt"

// contextKeyOriginalCode records the originally requested code in the
// error context when resolution falls back.
const contextKeyOriginalCode = "_original_code"

// FatalFallbackError signals that an error code resolved through none
// of the three fallback levels. This is unrecoverable: downstream
// handlers assume a well-formed config, so processing must halt. It is
// constructed directly and never routed back through Resolve.
type FatalFallbackError struct {
	RequestedCode string
}

func (e *FatalFallbackError) Error() string {
	return fmt.Sprintf("%s: no error configuration found for %q and no fallback configured", CodeFatalFallback, e.RequestedCode)
}

// Resolver maps an error code to its configuration using the
// three-level fallback chain.
type Resolver struct {
	registry *Registry
}

func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the configuration for code, trying in order:
//  1. a runtime or static definition for the code itself,
//  2. the UNDEFINED_ERROR_CODE sentinel, recording the original code
//     in errCtx,
//  3. the global last-resort fallback configuration.
//
// If none of the three resolves, a *FatalFallbackError is returned.
func (r *Resolver) Resolve(code string, errCtx map[string]any) (string, ErrorConfig, error) {
	if cfg, ok := r.registry.Get(code); ok {
		return code, cfg, nil
	}

	if errCtx != nil {
		errCtx[contextKeyOriginalCode] = code
	}

	if cfg, ok := r.registry.Get(CodeUndefined); ok {
		return CodeUndefined, cfg, nil
	}

	if cfg, ok := r.registry.Fallback(); ok {
		return CodeFallback, cfg, nil
	}

	return "", ErrorConfig{}, &FatalFallbackError{RequestedCode: code}
}
