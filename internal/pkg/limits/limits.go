// Package limits negotiates the effective upload ceilings from the
// platform-imposed runtime limits and the application configuration.
package limits

import (
	"fmt"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/sizeparse"
	"go.uber.org/zap"
)

// Source identifies which side supplied the binding (more restrictive)
// value for a dimension.
type Source string

const (
	SourcePlatform    Source = "platform"
	SourceApplication Source = "application"
)

// PlatformLimits are the runtime-imposed ceilings, expressed the way
// the platform declares them (size strings, raw count).
type PlatformLimits struct {
	PostMaxSize       string
	UploadMaxFilesize string
	MaxFileUploads    int
}

// AppLimits are the application-declared ceilings in bytes/count.
type AppLimits struct {
	MaxTotalSize int64
	MaxFileSize  int64
	MaxFiles     int
}

// Effective holds the negotiated values and which source was binding
// per dimension.
type Effective struct {
	MaxTotalSize int64
	MaxFileSize  int64
	MaxFiles     int

	TotalSizeSource Source
	FileSizeSource  Source
	FileCountSource Source
}

// Negotiator computes the most restrictive union of the two sources.
type Negotiator struct {
	platform PlatformLimits
	app      AppLimits
	logger   *zap.Logger
}

func NewNegotiator(platform PlatformLimits, app AppLimits, logger *zap.Logger) *Negotiator {
	return &Negotiator{
		platform: platform,
		app:      app,
		logger:   logger,
	}
}

// Effective returns min(platform, application) for every dimension.
// A platform value being the binding one is logged at warning level:
// it usually means the runtime is configured tighter than the
// application expects.
func (n *Negotiator) Effective() (*Effective, error) {
	platformTotal, err := sizeparse.Parse(n.platform.PostMaxSize)
	if err != nil {
		return nil, fmt.Errorf("parse post_max_size: %w", err)
	}

	platformFile, err := sizeparse.Parse(n.platform.UploadMaxFilesize)
	if err != nil {
		return nil, fmt.Errorf("parse upload_max_filesize: %w", err)
	}

	eff := &Effective{}
	eff.MaxTotalSize, eff.TotalSizeSource = minSize(platformTotal, n.app.MaxTotalSize)
	eff.MaxFileSize, eff.FileSizeSource = minSize(platformFile, n.app.MaxFileSize)
	eff.MaxFiles, eff.FileCountSource = minCount(n.platform.MaxFileUploads, n.app.MaxFiles)

	n.warnIfPlatformBinding("max_total_size", eff.TotalSizeSource, eff.MaxTotalSize, n.app.MaxTotalSize)
	n.warnIfPlatformBinding("max_file_size", eff.FileSizeSource, eff.MaxFileSize, n.app.MaxFileSize)
	n.warnIfPlatformBinding("max_files", eff.FileCountSource, int64(eff.MaxFiles), int64(n.app.MaxFiles))

	return eff, nil
}

// Document renders the negotiated limits in the wire shape of the
// limits endpoint.
func (e *Effective) Document() entity.LimitsDocument {
	return entity.LimitsDocument{
		MaxTotalSize:          e.MaxTotalSize,
		MaxFileSize:           e.MaxFileSize,
		MaxFiles:              e.MaxFiles,
		MaxTotalSizeFormatted: sizeparse.Format(e.MaxTotalSize),
		MaxFileSizeFormatted:  sizeparse.Format(e.MaxFileSize),
	}
}

func (n *Negotiator) warnIfPlatformBinding(dimension string, src Source, effective, application int64) {
	if src != SourcePlatform || n.logger == nil {
		return
	}
	n.logger.Warn("platform limit is more restrictive than application limit",
		zap.String("dimension", dimension),
		zap.Int64("effective", effective),
		zap.Int64("application", application),
	)
}

func minSize(platform, app int64) (int64, Source) {
	if platform < app {
		return platform, SourcePlatform
	}
	return app, SourceApplication
}

func minCount(platform, app int) (int, Source) {
	if platform < app {
		return platform, SourcePlatform
	}
	return app, SourceApplication
}
