// Package scanner runs the asynchronous virus scan over accepted
// uploads and pushes verdicts onto the upload channel.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/realtime"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/repository"
)

// eicarSignature is the standard antivirus test string. The stub
// engine flags any file containing it, which is enough to exercise the
// full infected-file path end to end.
var eicarSignature = []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)

// Engine checks file contents for threats.
type Engine interface {
	// Scan returns the name of the matched threat, or "" when clean.
	Scan(ctx context.Context, path string) (string, error)
}

// StubEngine is the built-in engine used until a real scanner daemon
// is wired in. It matches the EICAR test signature only.
type StubEngine struct{}

func (StubEngine) Scan(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file for scan: %w", err)
	}
	if bytes.Contains(data, eicarSignature) {
		return "EICAR-Test-File", nil
	}
	return "", nil
}

// Config tunes the scan worker.
type Config struct {
	// Workers is the number of concurrent scan goroutines.
	Workers int
	// QueueSize bounds the pending-scan queue.
	QueueSize int
	// ContinueOnError treats a failed scan as accepted (status skipped)
	// instead of failing the file. Off by default: an unscannable file
	// is an unverified file.
	ContinueOnError bool
}

// Scanner consumes accepted uploads, scans them and publishes the
// verdict both to the metadata store and the realtime channel.
type Scanner struct {
	engine Engine
	files  repository.FileRepository
	broker *realtime.Broker
	cfg    Config
	logger *zap.Logger

	queue chan entity.StoredFile
	wg    sync.WaitGroup
}

func New(engine Engine, files repository.FileRepository, broker *realtime.Broker, cfg Config, logger *zap.Logger) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	return &Scanner{
		engine: engine,
		files:  files,
		broker: broker,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan entity.StoredFile, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case file := <-s.queue:
					s.scan(ctx, file)
				}
			}
		}()
	}
}

// Stop waits for in-flight scans to finish. Call after cancelling the
// context passed to Start.
func (s *Scanner) Stop() {
	s.wg.Wait()
}

// ResumePending re-enqueues files left in pending status by a previous
// run, either after a restart or because the queue was full.
func (s *Scanner) ResumePending(ctx context.Context) error {
	files, err := s.files.ListByScanStatus(ctx, entity.ScanStatusPending)
	if err != nil {
		return fmt.Errorf("list pending files: %w", err)
	}
	for _, file := range files {
		if !s.Enqueue(*file) {
			break
		}
	}
	if len(files) > 0 {
		s.logger.Info("resumed pending scans", zap.Int("count", len(files)))
	}
	return nil
}

// Enqueue schedules a stored file for scanning. Returns false when the
// queue is full; the file stays in pending status and ResumePending
// picks it up on the next start.
func (s *Scanner) Enqueue(file entity.StoredFile) bool {
	select {
	case s.queue <- file:
		return true
	default:
		s.logger.Warn("scan queue full, leaving file pending",
			zap.String("file_id", file.ID),
			zap.String("filename", file.Filename))
		return false
	}
}

func (s *Scanner) scan(ctx context.Context, file entity.StoredFile) {
	started := time.Now()
	s.setStatus(ctx, file.ID, entity.ScanStatusScanning)
	s.broker.Publish(entity.UploadEvent{
		State:   entity.EventStateVirusScan,
		Message: fmt.Sprintf("Scanning %s", file.Filename),
		FileID:  file.ID,
	})

	threat, err := s.engine.Scan(ctx, file.StoragePath)
	switch {
	case err != nil:
		s.logger.Error("virus scan failed",
			zap.String("file_id", file.ID),
			zap.String("filename", file.Filename),
			zap.Error(err))
		if s.cfg.ContinueOnError {
			s.setStatus(ctx, file.ID, entity.ScanStatusSkipped)
			s.broker.Publish(entity.UploadEvent{
				State:   entity.EventStateAllClean,
				Message: fmt.Sprintf("%s accepted without scan verdict", file.Filename),
				FileID:  file.ID,
			})
			return
		}
		s.setStatus(ctx, file.ID, entity.ScanStatusFailed)
		s.broker.Publish(entity.UploadEvent{
			State:     entity.EventStateUploadFailed,
			Message:   fmt.Sprintf("Virus scan of %s could not be completed", file.Filename),
			FileID:    file.ID,
			ErrorCode: "SCAN_FAILED",
		})

	case threat != "":
		s.logger.Warn("infected file rejected",
			zap.String("file_id", file.ID),
			zap.String("filename", file.Filename),
			zap.String("threat", threat))
		s.setStatus(ctx, file.ID, entity.ScanStatusInfected)
		s.removeFile(file)
		s.broker.Publish(entity.UploadEvent{
			State:     entity.EventStateUploadFailed,
			Message:   fmt.Sprintf("%s is infected and was rejected", file.Filename),
			FileID:    file.ID,
			ErrorCode: "VIRUS_FOUND",
		})

	default:
		s.logger.Info("file scanned clean",
			zap.String("file_id", file.ID),
			zap.String("filename", file.Filename),
			zap.Duration("took", time.Since(started)))
		s.setStatus(ctx, file.ID, entity.ScanStatusClean)
		s.broker.Publish(entity.UploadEvent{
			State:   entity.EventStateAllClean,
			Message: fmt.Sprintf("%s scanned, no threats found", file.Filename),
			FileID:  file.ID,
		})
	}
}

func (s *Scanner) setStatus(ctx context.Context, fileID string, status entity.ScanStatus) {
	if err := s.files.UpdateScanStatus(ctx, fileID, status); err != nil {
		s.logger.Error("update scan status",
			zap.String("file_id", fileID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// removeFile deletes the infected payload from storage. Metadata stays
// so operators can audit the rejection.
func (s *Scanner) removeFile(file entity.StoredFile) {
	if err := os.Remove(file.StoragePath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("remove infected file",
			zap.String("file_id", file.ID),
			zap.String("path", file.StoragePath),
			zap.Error(err))
	}
}
