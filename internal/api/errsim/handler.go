package errsim

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/logger"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/report"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/response"
)

// CodeRegistry exposes the known error codes and their configurations.
type CodeRegistry interface {
	Codes() []string
	Get(code string) (errormgr.ErrorConfig, bool)
}

// OccurrenceLister reads back the persisted error occurrences.
type OccurrenceLister interface {
	ListRecent(ctx context.Context, limit int) ([]*entity.ErrorOccurrence, error)
}

type Handler struct {
	store       *Store
	registry    CodeRegistry
	occurrences OccurrenceLister
}

func NewHandler(store *Store, registry CodeRegistry, occurrences OccurrenceLister) *Handler {
	return &Handler{
		store:       store,
		registry:    registry,
		occurrences: occurrences,
	}
}

// codeSummary is one row of the JSON codes listing.
type codeSummary struct {
	Code       string `json:"code"`
	Type       string `json:"type"`
	Blocking   string `json:"blocking"`
	HTTPStatus int    `json:"http_status"`
	Simulated  bool   `json:"simulated"`
}

// Simulate handles POST /api/errors/simulate/{errorCode}
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "SimulateError")

	code := chi.URLParam(r, "errorCode")
	if _, known := h.registry.Get(code); !known {
		response.Error(w, http.StatusNotFound, fmt.Sprintf("unknown error code %q", code))
		return
	}

	h.store.Activate(code)
	ctxzap.Info(ctx, "error simulation activated", zap.String("code", code))
	response.Success(w, map[string]string{
		"message": fmt.Sprintf("simulation of %s activated", code),
		"code":    code,
	})
}

// Unsimulate handles DELETE /api/errors/simulate/{errorCode}
func (h *Handler) Unsimulate(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UnsimulateError")

	code := chi.URLParam(r, "errorCode")
	h.store.Deactivate(code)
	ctxzap.Info(ctx, "error simulation deactivated", zap.String("code", code))
	response.NoContent(w)
}

// occurrenceRow is one row of the occurrences listing. The sanitized
// context map stays out of the response.
type occurrenceRow struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	ResolvedCode string    `json:"resolved_code"`
	HTTPStatus   int       `json:"http_status"`
	DevMessage   string    `json:"dev_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListOccurrences handles GET /api/errors/occurrences
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			response.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	occurrences, err := h.occurrences.ListRecent(r.Context(), limit)
	if err != nil {
		ctxzap.Error(r.Context(), "failed to list error occurrences", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	rows := make([]occurrenceRow, 0, len(occurrences))
	for _, occ := range occurrences {
		rows = append(rows, occurrenceRow{
			ID:           occ.ID,
			Code:         occ.Code,
			ResolvedCode: occ.ResolvedCode,
			HTTPStatus:   occ.HTTPStatus,
			DevMessage:   occ.DevMessage,
			CreatedAt:    occ.CreatedAt,
		})
	}
	response.Success(w, rows)
}

// ListSimulations handles GET /api/errors/simulations
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string][]string{"active": h.store.List()})
}

// ListCodes handles GET /api/errors/codes. The PDF format renders the
// operator reference sheet.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes := h.registry.Codes()

	if r.URL.Query().Get("format") == "pdf" {
		entries := make([]report.CodeEntry, 0, len(codes))
		for _, code := range codes {
			cfg, ok := h.registry.Get(code)
			if !ok {
				continue
			}
			entries = append(entries, report.CodeEntry{
				Code:       code,
				Type:       string(cfg.Type),
				Blocking:   string(cfg.Blocking),
				HTTPStatus: cfg.HTTPStatus,
			})
		}

		rendered, err := report.ErrorCodesPDF(entries)
		if err != nil {
			ctxzap.Error(r.Context(), "failed to render error codes PDF", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "failed to render PDF")
			return
		}
		w.Header().Set("Content-Type", report.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="error-codes.pdf"`)
		w.WriteHeader(http.StatusOK)
		w.Write(rendered)
		return
	}

	summaries := make([]codeSummary, 0, len(codes))
	for _, code := range codes {
		cfg, ok := h.registry.Get(code)
		if !ok {
			continue
		}
		summaries = append(summaries, codeSummary{
			Code:       code,
			Type:       string(cfg.Type),
			Blocking:   string(cfg.Blocking),
			HTTPStatus: cfg.HTTPStatus,
			Simulated:  h.store.Active(code),
		})
	}
	response.Success(w, summaries)
}
