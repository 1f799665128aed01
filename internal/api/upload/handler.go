package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/config"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/limits"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/logger"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/response"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/validator"
)

var uploadTypes = map[entity.UploadType]bool{
	entity.UploadTypeEGI:     true,
	entity.UploadTypeEPP:     true,
	entity.UploadTypeUtility: true,
}

type Handler struct {
	files       FileStore
	scans       ScanQueue
	errors      ErrorManager
	sims        SimulationChecker
	validator   *validator.Validator
	translator  *i18n.Translator
	limits      *limits.Effective
	uploadCfg   config.UploadConfig
	locale      string
	locales     []string
	storageDir  string
	scanEnabled bool
}

func NewHandler(
	files FileStore,
	scans ScanQueue,
	errors ErrorManager,
	sims SimulationChecker,
	v *validator.Validator,
	translator *i18n.Translator,
	eff *limits.Effective,
	cfg *config.Config,
) *Handler {
	return &Handler{
		files:       files,
		scans:       scans,
		errors:      errors,
		sims:        sims,
		validator:   v,
		translator:  translator,
		limits:      eff,
		uploadCfg:   cfg.UploadCfg,
		locale:      cfg.Locale,
		locales:     cfg.AvailableLocales,
		storageDir:  cfg.StorageDir,
		scanEnabled: cfg.ScanCfg.Enabled,
	}
}

// Upload handles POST /api/uploads/{uploadType}
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Upload")

	uploadType := entity.UploadType(chi.URLParam(r, "uploadType"))
	if !uploadTypes[uploadType] {
		response.Error(w, http.StatusNotFound, fmt.Sprintf("unknown upload type %q", uploadType))
		return
	}

	if err := r.ParseMultipartForm(h.limits.MaxTotalSize); err != nil {
		ctxzap.Warn(ctx, "failed to parse multipart form", zap.Error(err))
		h.respondError(ctx, w, r, "UPLOAD_FAILED", "upload", map[string]any{"filename": "unknown"}, err)
		return
	}

	if r.FormValue("_token") == "" {
		h.respondError(ctx, w, r, "INVALID_TOKEN", "validation", nil, nil)
		return
	}

	if code, active := h.sims.ActiveCode(); active {
		ctxzap.Info(ctx, "returning simulated error", zap.String("code", code))
		h.respondError(ctx, w, r, code, "simulation", map[string]any{"simulated": true}, nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(ctx, w, r, "UPLOAD_FAILED", "validation", map[string]any{"filename": "missing"}, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.limits.MaxFileSize+1))
	if err != nil {
		h.respondError(ctx, w, r, "UPLOAD_FAILED", "upload", map[string]any{"filename": header.Filename}, err)
		return
	}

	// EPP payloads travel base64-encoded and are stored decoded.
	if uploadType == entity.UploadTypeEPP {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
		n, err := base64.StdEncoding.Decode(decoded, data)
		if err != nil {
			h.respondError(ctx, w, r, "UPLOAD_FAILED", "transform", map[string]any{"filename": header.Filename}, err)
			return
		}
		data = decoded[:n]
	}

	if res := h.validator.Validate(validator.FileMeta{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     int64(len(data)),
	}); !res.OK {
		h.respondError(ctx, w, r, res.Code, "validation", map[string]any{
			"filename": header.Filename,
			"size":     len(data),
		}, nil)
		return
	}

	fileID := uuid.NewString()
	storagePath := filepath.Join(h.storageDir, fileID+filepath.Ext(header.Filename))
	if err := os.WriteFile(storagePath, data, 0o640); err != nil {
		ctxzap.Error(ctx, "failed to write file to storage", zap.Error(err))
		h.respondError(ctx, w, r, "UPLOAD_FAILED", "storage", map[string]any{"filename": header.Filename}, err)
		return
	}

	scanStatus := entity.ScanStatusPending
	if !h.scanEnabled {
		scanStatus = entity.ScanStatusSkipped
	}

	stored, err := h.files.Create(ctx, entity.StoredFile{
		ID:          fileID,
		Filename:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		UploadType:  uploadType,
		ScanStatus:  scanStatus,
		StoragePath: storagePath,
	})
	if err != nil {
		ctxzap.Error(ctx, "failed to persist file metadata", zap.Error(err))
		os.Remove(storagePath)
		h.respondError(ctx, w, r, "UPLOAD_FAILED", "storage", map[string]any{"filename": header.Filename}, err)
		return
	}

	if h.scanEnabled {
		h.scans.Enqueue(*stored)
	}

	ctxzap.Info(ctx, "file accepted",
		zap.String("file_id", stored.ID),
		zap.String("filename", stored.Filename),
		zap.Int64("size", stored.Size),
		zap.String("upload_type", string(uploadType)),
	)

	resp := entity.UploadResponse{
		Message: "file uploaded successfully",
		FileID:  stored.ID,
	}
	if uploadType == entity.UploadTypeEPP {
		resp.VerificationToken = "VALID"
	}
	response.JSON(w, http.StatusCreated, resp)
}

// Config handles GET /api/uploads/config
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	endpoints := make(map[string]string, len(uploadTypes))
	for typ := range uploadTypes {
		endpoints[string(typ)] = fmt.Sprintf("/api/uploads/%s", typ)
	}

	response.Success(w, entity.ConfigDocument{
		Locale:            h.locale,
		AvailableLocales:  h.locales,
		Translations:      h.translator.Bundles(),
		AllowedExtensions: h.uploadCfg.AllowedExtensions,
		AllowedMimeTypes:  h.uploadCfg.AllowedMimeTypes,
		MaxSize:           h.limits.MaxFileSize,
		Endpoints:         endpoints,
		DefaultUploadType: h.uploadCfg.DefaultUploadType,
		ScanEnabled:       h.scanEnabled,
	})
}

// Limits handles GET /api/uploads/limits
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.limits.Document())
}

// Status handles GET /api/uploads/status/{fileId}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadStatus")

	fileID := chi.URLParam(r, "fileId")
	stored, err := h.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, entity.ErrFileNotFound) {
			response.Error(w, http.StatusNotFound, fmt.Sprintf("unknown file %q", fileID))
			return
		}
		ctxzap.Error(ctx, "failed to load file metadata", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	response.Success(w, entity.FileStatusDocument{
		FileID:     stored.ID,
		Filename:   stored.Filename,
		UploadType: string(stored.UploadType),
		ScanStatus: string(stored.ScanStatus),
	})
}

// respondError routes the condition through the error engine and
// answers in the shape the request asked for: the structured JSON
// payload the client transport parses, or the error page for blocking
// browser-facing failures.
func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, r *http.Request, code, state string, errCtx map[string]any, cause error) {
	info, err := h.errors.Handle(ctx, code, errCtx, cause)
	if err != nil {
		// Fatal fallback failure: the engine itself has no usable
		// configuration left. Answer with a bare 500.
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	outcome := errormgr.Build(info, errormgr.WantsJSON(r))
	switch {
	case outcome.Body != nil:
		response.JSON(w, outcome.Status, entity.ErrorPayload{
			Message:   outcome.Body.UserMessage,
			State:     state,
			ErrorCode: outcome.Body.ErrorCode,
			Blocking:  string(outcome.Body.Blocking),
		})
	case outcome.Err != nil:
		response.ErrorPage(w, outcome.Err.Status, outcome.Err.Code, outcome.Err.Message)
	default:
		// Non-blocking browser error: the message travels out of band,
		// the response carries the status alone.
		w.WriteHeader(info.HTTPStatus)
	}
}
