package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/validator"
)

// StatusFunc receives human-readable progress updates per task. Nil
// disables reporting.
type StatusFunc func(task *entity.UploadTask, message string)

// OrchestratorConfig tunes batch processing.
type OrchestratorConfig struct {
	// Concurrency bounds the number of files in flight at once.
	Concurrency int
	// ScanEnabled gates the wait for a virus-scan verdict after the
	// transport completes. The caller disables it when the event
	// subscription could not be established.
	ScanEnabled bool
	// ScanTimeout bounds how long a task waits for its scan verdict.
	ScanTimeout time.Duration
	// MaxFiles and MaxTotalSize are the negotiated batch ceilings from
	// the limits endpoint. Zero means unlimited.
	MaxFiles     int
	MaxTotalSize int64
}

// Orchestrator runs a batch of upload tasks through the full pipeline:
// validate, transform, transmit, await scan verdict, finalize. One
// failing file never halts the rest of the batch.
type Orchestrator struct {
	transport *Transport
	validator *validator.Validator
	cfg       OrchestratorConfig
	status    StatusFunc
	logger    *zap.Logger

	mu      sync.Mutex
	tasks   []*entity.UploadTask
	waiters map[string]*scanWaiter
	early   map[string]entity.UploadEvent
	cancel  context.CancelFunc
}

// scanWaiter is one task blocked on its scan verdict. Keyed by task ID
// because the server-assigned file ID may be absent.
type scanWaiter struct {
	fileID string
	ch     chan entity.UploadEvent
}

func NewOrchestrator(transport *Transport, v *validator.Validator, cfg OrchestratorConfig, status StatusFunc, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		transport: transport,
		validator: v,
		cfg:       cfg,
		status:    status,
		logger:    logger,
		waiters:   make(map[string]*scanWaiter),
		early:     make(map[string]entity.UploadEvent),
	}
}

// Add queues a file for the next Run. Returns the task so the caller
// can observe its state afterwards.
func (o *Orchestrator) Add(filename, mimeType string, data []byte, typ entity.UploadType) *entity.UploadTask {
	task := &entity.UploadTask{
		ID:       uuid.NewString(),
		Filename: filename,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
		Type:     typ,
		State:    entity.TaskStateQueued,
	}
	o.mu.Lock()
	o.tasks = append(o.tasks, task)
	o.mu.Unlock()
	return task
}

// Tasks returns a snapshot of the queued tasks.
func (o *Orchestrator) Tasks() []*entity.UploadTask {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*entity.UploadTask, len(o.tasks))
	copy(out, o.tasks)
	return out
}

// DisableScanWait turns off waiting for scan verdicts. Called before
// Run when the event subscription could not be established, so uploads
// still complete with graceful degradation.
func (o *Orchestrator) DisableScanWait() {
	o.mu.Lock()
	o.cfg.ScanEnabled = false
	o.mu.Unlock()
}

// Cancel stops the batch cooperatively. Tasks already finalized keep
// their state; in-flight and queued tasks move to cancelled.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run processes every queued task, at most Concurrency at a time, and
// returns once all tasks reached a terminal state. The returned error
// is non-nil when the batch exceeded a negotiated ceiling or was
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	tasks := make([]*entity.UploadTask, len(o.tasks))
	copy(tasks, o.tasks)
	o.mu.Unlock()

	if err := o.checkBatch(tasks); err != nil {
		code := "MAX_TOTAL_SIZE"
		if errors.Is(err, entity.ErrTooManyFiles) {
			code = "TOO_MANY_FILES"
		}
		for _, task := range tasks {
			task.LastErr = &entity.ErrorPayload{
				Message:   err.Error(),
				State:     "validation",
				ErrorCode: code,
				Blocking:  "semi-blocking",
			}
			o.fail(task, err.Error())
		}
		return err
	}

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			o.markCancelled(task)
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(task *entity.UploadTask) {
			defer wg.Done()
			defer func() { <-sem }()
			o.process(ctx, task)
		}(task)
	}
	wg.Wait()
	return ctx.Err()
}

// checkBatch enforces the negotiated batch ceilings before any file is
// transmitted. A violation fails the whole batch.
func (o *Orchestrator) checkBatch(tasks []*entity.UploadTask) error {
	if o.cfg.MaxFiles > 0 && len(tasks) > o.cfg.MaxFiles {
		return fmt.Errorf("%w: %d files queued, limit is %d",
			entity.ErrTooManyFiles, len(tasks), o.cfg.MaxFiles)
	}
	if o.cfg.MaxTotalSize > 0 {
		var total int64
		for _, task := range tasks {
			total += task.Size
		}
		if total > o.cfg.MaxTotalSize {
			return fmt.Errorf("%w: %d bytes queued, limit is %d",
				entity.ErrTotalSizeTooLarge, total, o.cfg.MaxTotalSize)
		}
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, task *entity.UploadTask) {
	if ctx.Err() != nil {
		o.markCancelled(task)
		return
	}

	o.advance(task, entity.TaskStateValidating, "validating")
	if res := o.validator.Validate(validator.FileMeta{
		Name:     task.Filename,
		MimeType: task.MimeType,
		Size:     task.Size,
	}); !res.OK {
		task.LastErr = &entity.ErrorPayload{
			Message:   res.Message,
			State:     "validation",
			ErrorCode: res.Code,
			Blocking:  "not",
		}
		o.fail(task, res.Message)
		return
	}

	if o.transport.HasPreprocessor(task.Type) {
		o.advance(task, entity.TaskStateTransforming, "transforming payload")
		if err := o.transport.Prepare(task); err != nil {
			task.LastErr = &entity.ErrorPayload{
				Message:   err.Error(),
				State:     "transform",
				ErrorCode: codeUnexpectedResponse,
				Blocking:  "blocking",
			}
			o.fail(task, err.Error())
			return
		}
	}

	o.advance(task, entity.TaskStateUploading, "uploading")
	result := o.transport.Send(ctx, task)
	task.Attempts = result.Attempts
	if !result.Success {
		task.LastErr = result.Err
		if ctx.Err() != nil {
			o.markCancelled(task)
			return
		}
		msg := "upload failed"
		if result.Err != nil && result.Err.Message != "" {
			msg = result.Err.Message
		}
		o.fail(task, msg)
		return
	}

	if !o.cfg.ScanEnabled {
		o.advance(task, entity.TaskStateFinalized, "completed")
		return
	}

	o.advance(task, entity.TaskStateScanning, "awaiting virus scan")
	event, ok := o.awaitScan(ctx, task.ID, result.Response.FileID)
	if !ok {
		if ctx.Err() != nil {
			o.markCancelled(task)
			return
		}
		task.LastErr = &entity.ErrorPayload{
			Message:   "no scan verdict received in time",
			State:     "scan",
			ErrorCode: "SCAN_FAILED",
			Blocking:  "not",
		}
		o.fail(task, "scan verdict timed out")
		return
	}

	switch event.State {
	case entity.EventStateAllClean:
		o.advance(task, entity.TaskStateFinalized, "completed")
	default:
		// The verdict names its own code: an unscannable file is not
		// an infected one. VIRUS_FOUND only covers events from servers
		// that predate the errorCode field.
		code := event.ErrorCode
		if code == "" {
			code = "VIRUS_FOUND"
		}
		task.LastErr = &entity.ErrorPayload{
			Message:   event.Message,
			State:     "scan",
			ErrorCode: code,
			Blocking:  "semi-blocking",
		}
		o.fail(task, event.Message)
	}
}

// Callbacks wires the orchestrator into a Listener subscription.
func (o *Orchestrator) Callbacks() Callbacks {
	return Callbacks{
		OnScanProgress: o.notify,
		OnScanClean:    o.HandleEvent,
		OnUploadFailed: o.HandleEvent,
		OnInfo:         o.notify,
	}
}

// HandleEvent delivers a terminal scan event to the waiting task, or
// to every waiter when the event names no file. Verdicts arriving
// before a task started waiting are held until it does.
func (o *Orchestrator) HandleEvent(event entity.UploadEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if event.FileID == "" {
		for id, w := range o.waiters {
			select {
			case w.ch <- event:
			default:
			}
			delete(o.waiters, id)
		}
		return
	}

	for id, w := range o.waiters {
		if w.fileID == event.FileID {
			select {
			case w.ch <- event:
			default:
			}
			delete(o.waiters, id)
			return
		}
	}
	o.early[event.FileID] = event
}

func (o *Orchestrator) notify(event entity.UploadEvent) {
	o.logger.Debug("upload channel event",
		zap.String("state", event.State),
		zap.String("message", event.Message),
		zap.String("file_id", event.FileID))
}

// awaitScan blocks until a terminal scan event for fileID arrives, the
// scan timeout elapses, or ctx is cancelled. Events may land after the
// transport already finished, including between the HTTP response and
// this call, which the early map absorbs.
func (o *Orchestrator) awaitScan(ctx context.Context, taskID, fileID string) (entity.UploadEvent, bool) {
	o.mu.Lock()
	if fileID != "" {
		if event, ok := o.early[fileID]; ok {
			delete(o.early, fileID)
			o.mu.Unlock()
			return event, true
		}
	}
	ch := make(chan entity.UploadEvent, 1)
	o.waiters[taskID] = &scanWaiter{fileID: fileID, ch: ch}
	o.mu.Unlock()

	timer := time.NewTimer(o.cfg.ScanTimeout)
	defer timer.Stop()
	select {
	case event := <-ch:
		return event, true
	case <-timer.C:
	case <-ctx.Done():
	}

	o.mu.Lock()
	delete(o.waiters, taskID)
	o.mu.Unlock()
	return entity.UploadEvent{}, false
}

func (o *Orchestrator) advance(task *entity.UploadTask, to entity.TaskState, message string) {
	if err := task.Advance(to); err != nil {
		o.logger.Warn("rejected state transition",
			zap.String("task_id", task.ID),
			zap.String("filename", task.Filename),
			zap.Error(err))
		return
	}
	if o.status != nil {
		o.status(task, message)
	}
}

func (o *Orchestrator) fail(task *entity.UploadTask, message string) {
	o.advance(task, entity.TaskStateFailed, message)
	o.logger.Warn("upload task failed",
		zap.String("task_id", task.ID),
		zap.String("filename", task.Filename),
		zap.String("reason", message))
}

func (o *Orchestrator) markCancelled(task *entity.UploadTask) {
	if task.State.Terminal() {
		return
	}
	o.advance(task, entity.TaskStateCancelled, "cancelled")
}
