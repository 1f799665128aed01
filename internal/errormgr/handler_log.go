package errormgr

import (
	"context"

	"go.uber.org/zap"
)

// LogHandler writes every handled error to the structured log at a
// level derived from the error type.
type LogHandler struct {
	logger *zap.Logger
}

func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) ShouldHandle(ErrorConfig) bool {
	return true
}

func (h *LogHandler) Handle(_ context.Context, code string, cfg ErrorConfig, errCtx map[string]any, cause error) {
	fields := []zap.Field{
		zap.String("error_code", code),
		zap.String("blocking", string(cfg.Blocking)),
		zap.Int("http_status", cfg.HTTPStatus),
		zap.Any("context", errCtx),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}

	switch cfg.Type {
	case TypeCritical, TypeError:
		h.logger.Error("handled error", fields...)
	case TypeWarning:
		h.logger.Warn("handled error", fields...)
	default:
		h.logger.Info("handled error", fields...)
	}
}
