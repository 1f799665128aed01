package errormgr

import (
	"context"
	"fmt"
	"time"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ErrorInfo is the fully resolved, localized result of handling one
// error occurrence. Built once per Handle call and passed by value.
type ErrorInfo struct {
	ResolvedCode string
	DevMessage   string
	UserMessage  string
	HTTPStatus   int
	Blocking     BlockingLevel
	DisplayMode  DisplayMode
	Context      map[string]any
	Timestamp    time.Time
	CauseSummary string
}

// Manager ties resolution, localization and dispatch together. It is
// safe to invoke reentrantly: the fatal fallback path never goes back
// through Resolve.
type Manager struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	translator *i18n.Translator
	locale     string
	logger     *zap.Logger
}

func NewManager(
	registry *Registry,
	dispatcher *Dispatcher,
	translator *i18n.Translator,
	locale string,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		resolver:   NewResolver(registry),
		dispatcher: dispatcher,
		translator: translator,
		locale:     locale,
		logger:     logger,
	}
}

// Handle resolves code, builds the localized ErrorInfo, and runs the
// handler chain. The only error it can return is *FatalFallbackError,
// in which case processing must halt.
func (m *Manager) Handle(ctx context.Context, code string, errCtx map[string]any, cause error) (*ErrorInfo, error) {
	if errCtx == nil {
		errCtx = make(map[string]any)
	}

	resolvedCode, cfg, err := m.resolver.Resolve(code, errCtx)
	if err != nil {
		// The one truly fatal path: no configuration anywhere.
		// Logged loudly here, never re-handled through this engine.
		m.logger.Error("error configuration resolution failed fatally",
			zap.String("requested_code", code),
			zap.Error(err),
		)
		return nil, err
	}

	info := &ErrorInfo{
		ResolvedCode: resolvedCode,
		DevMessage:   m.translator.T(m.translator.DefaultLocale(), cfg.DevMessageKey, stringifyContext(errCtx)),
		UserMessage:  m.translator.T(m.locale, cfg.UserMessageKey, stringifyContext(errCtx)),
		HTTPStatus:   cfg.HTTPStatus,
		Blocking:     cfg.Blocking,
		DisplayMode:  cfg.DisplayMode,
		Context:      errCtx,
		Timestamp:    time.Now().UTC(),
	}
	if cause != nil {
		info.CauseSummary = cause.Error()
	}

	ctxzap.Debug(ctx, "handling error",
		zap.String("requested_code", code),
		zap.String("resolved_code", resolvedCode),
		zap.String("type", string(cfg.Type)),
	)

	m.dispatcher.Dispatch(ctx, resolvedCode, cfg, errCtx, cause)

	return info, nil
}

// Define registers a runtime error configuration, taking precedence
// over the static one for the same code.
func (m *Manager) Define(code string, cfg ErrorConfig) {
	m.resolver.registry.Define(code, cfg)
}

// stringifyContext renders the context values as placeholder
// replacements for message templates.
func stringifyContext(errCtx map[string]any) map[string]string {
	if len(errCtx) == 0 {
		return nil
	}
	repl := make(map[string]string, len(errCtx))
	for key, value := range errCtx {
		repl[key] = fmt.Sprintf("%v", value)
	}
	return repl
}
