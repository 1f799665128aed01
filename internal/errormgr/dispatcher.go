package errormgr

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Handler is one delivery channel for a handled error (logging,
// persistence, team notification). Handlers opt in per configuration.
type Handler interface {
	ShouldHandle(cfg ErrorConfig) bool
	Handle(ctx context.Context, code string, cfg ErrorConfig, errCtx map[string]any, cause error)
}

// Dispatcher invokes every registered handler that opts in for an
// error configuration, in registration order. A failing handler never
// prevents the remaining handlers from running.
type Dispatcher struct {
	handlers []Handler
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Register appends a handler. Registration happens at startup; the
// dispatcher is not safe for concurrent Register calls.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch runs the handler chain for one error occurrence.
func (d *Dispatcher) Dispatch(ctx context.Context, code string, cfg ErrorConfig, errCtx map[string]any, cause error) {
	for _, h := range d.handlers {
		if !h.ShouldHandle(cfg) {
			continue
		}
		d.invoke(ctx, h, code, cfg, errCtx, cause)
	}
}

// invoke isolates one handler call: a panic is recovered and logged
// with the handler's identity.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, code string, cfg ErrorConfig, errCtx map[string]any, cause error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("error handler panicked",
				zap.String("handler", fmt.Sprintf("%T", h)),
				zap.String("error_code", code),
				zap.Any("panic", r),
			)
		}
	}()

	h.Handle(ctx, code, cfg, errCtx, cause)
}
