package errormgr

import (
	"context"
	"time"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OccurrenceStore persists handled errors for operators. Implemented
// by the postgres error-log repository.
type OccurrenceStore interface {
	Insert(ctx context.Context, occ entity.ErrorOccurrence) error
}

// DatabaseHandler records every non-notice error occurrence.
type DatabaseHandler struct {
	store      OccurrenceStore
	translator *i18n.Translator
	logger     *zap.Logger
}

func NewDatabaseHandler(store OccurrenceStore, translator *i18n.Translator, logger *zap.Logger) *DatabaseHandler {
	return &DatabaseHandler{
		store:      store,
		translator: translator,
		logger:     logger,
	}
}

func (h *DatabaseHandler) ShouldHandle(cfg ErrorConfig) bool {
	return cfg.Type != TypeNotice
}

func (h *DatabaseHandler) Handle(ctx context.Context, code string, cfg ErrorConfig, errCtx map[string]any, _ error) {
	requested := code
	if original, ok := errCtx[contextKeyOriginalCode].(string); ok {
		requested = original
	}

	occ := entity.ErrorOccurrence{
		ID:           uuid.New().String(),
		Code:         requested,
		ResolvedCode: code,
		HTTPStatus:   cfg.HTTPStatus,
		DevMessage:   h.translator.T(h.translator.DefaultLocale(), cfg.DevMessageKey, stringifyContext(errCtx)),
		Context:      errCtx,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.store.Insert(ctx, occ); err != nil {
		h.logger.Error("failed to persist error occurrence",
			zap.String("error_code", code),
			zap.Error(err),
		)
	}
}
