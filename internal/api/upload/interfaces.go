package upload

import (
	"context"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
)

// FileStore persists accepted upload metadata.
type FileStore interface {
	Create(ctx context.Context, file entity.StoredFile) (*entity.StoredFile, error)
	GetByID(ctx context.Context, fileID string) (*entity.StoredFile, error)
}

// ScanQueue schedules an accepted file for the asynchronous virus scan.
type ScanQueue interface {
	Enqueue(file entity.StoredFile) bool
}

// ErrorManager resolves and handles a named error condition.
type ErrorManager interface {
	Handle(ctx context.Context, code string, errCtx map[string]any, cause error) (*errormgr.ErrorInfo, error)
}

// SimulationChecker reports an actively simulated error code, if any.
type SimulationChecker interface {
	ActiveCode() (string, bool)
}
