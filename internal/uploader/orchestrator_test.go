package uploader_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/validator"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/uploader"
)

func newTestValidator() *validator.Validator {
	return validator.New(validator.Policy{
		AllowedExtensions: []string{"png", "jpg"},
		AllowedMimeTypes:  []string{"image/png", "image/jpeg"},
		MaxFileSize:       10 << 20,
	}, i18n.New("en"), "en")
}

func newOrchestrator(t *testing.T, baseURL string, cfg uploader.OrchestratorConfig) *uploader.Orchestrator {
	t.Helper()
	return uploader.NewOrchestrator(
		newTestTransport(t, baseURL),
		newTestValidator(),
		cfg,
		nil,
		zap.NewNop(),
	)
}

func TestRun_ValidationFailureDoesNotHaltBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f1"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{Concurrency: 2})
	bad := o.Add("malware.exe", "application/octet-stream", []byte("x"), entity.UploadTypeEGI)
	good := o.Add("photo.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, entity.TaskStateFailed, bad.State)
	require.NotNil(t, bad.LastErr)
	assert.Equal(t, validator.CodeInvalidExtension, bad.LastErr.ErrorCode)
	assert.Equal(t, entity.TaskStateFinalized, good.State)
	assert.Equal(t, 1, good.Attempts)
}

func TestRun_CancelPreservesCompletedTasks(t *testing.T) {
	var slowCalls atomic.Int32
	firstFailure := make(chan struct{})
	var once atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)

		if strings.HasPrefix(header.Filename, "ok") {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f1"})
			return
		}
		slowCalls.Add(1)
		if once.CompareAndSwap(false, true) {
			close(firstFailure)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{Concurrency: 2})
	completed := o.Add("ok.png", "image/png", []byte("x"), entity.UploadTypeEGI)
	stuck := o.Add("stuck.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	<-firstFailure
	o.Cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, entity.TaskStateFinalized, completed.State)
	assert.Equal(t, entity.TaskStateCancelled, stuck.State)

	// no further attempts after cancellation
	calls := slowCalls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, slowCalls.Load())
}

func TestRun_ScanVerdictFinalizesTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f1"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency: 1,
		ScanEnabled: true,
		ScanTimeout: time.Second,
	})
	task := o.Add("photo.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	go func() {
		time.Sleep(10 * time.Millisecond)
		o.HandleEvent(entity.UploadEvent{State: entity.EventStateAllClean, FileID: "f1"})
	}()

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, entity.TaskStateFinalized, task.State)
}

func TestRun_VirusVerdictFailsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f2"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency: 1,
		ScanEnabled: true,
		ScanTimeout: time.Second,
	})
	task := o.Add("photo.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	// verdict lands before the task starts waiting; must still be delivered
	o.HandleEvent(entity.UploadEvent{
		State:   entity.EventStateUploadFailed,
		Message: "infected file detected",
		FileID:  "f2",
	})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, entity.TaskStateFailed, task.State)
	require.NotNil(t, task.LastErr)
	assert.Equal(t, "VIRUS_FOUND", task.LastErr.ErrorCode)
}

func TestRun_ScanFailureVerdictKeepsItsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f5"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency: 1,
		ScanEnabled: true,
		ScanTimeout: time.Second,
	})
	task := o.Add("photo.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	// A scan that could not complete must not be reported as a virus.
	o.HandleEvent(entity.UploadEvent{
		State:     entity.EventStateUploadFailed,
		Message:   "Virus scan of photo.png could not be completed",
		FileID:    "f5",
		ErrorCode: "SCAN_FAILED",
	})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, entity.TaskStateFailed, task.State)
	require.NotNil(t, task.LastErr)
	assert.Equal(t, "SCAN_FAILED", task.LastErr.ErrorCode)
}

func TestRun_TooManyFilesFailsWholeBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f1"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency: 2,
		MaxFiles:    1,
	})
	t1 := o.Add("a.png", "image/png", []byte("x"), entity.UploadTypeEGI)
	t2 := o.Add("b.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	err := o.Run(context.Background())
	require.ErrorIs(t, err, entity.ErrTooManyFiles)

	for _, task := range []*entity.UploadTask{t1, t2} {
		assert.Equal(t, entity.TaskStateFailed, task.State)
		require.NotNil(t, task.LastErr)
		assert.Equal(t, "TOO_MANY_FILES", task.LastErr.ErrorCode)
	}
	assert.Zero(t, calls.Load(), "nothing may be transmitted for a rejected batch")
}

func TestRun_TotalSizeOverLimitFailsWholeBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f1"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency:  2,
		MaxTotalSize: 5,
	})
	t1 := o.Add("a.png", "image/png", []byte("abc"), entity.UploadTypeEGI)
	t2 := o.Add("b.png", "image/png", []byte("defg"), entity.UploadTypeEGI)

	err := o.Run(context.Background())
	require.ErrorIs(t, err, entity.ErrTotalSizeTooLarge)

	for _, task := range []*entity.UploadTask{t1, t2} {
		assert.Equal(t, entity.TaskStateFailed, task.State)
		require.NotNil(t, task.LastErr)
		assert.Equal(t, "MAX_TOTAL_SIZE", task.LastErr.ErrorCode)
	}
	assert.Zero(t, calls.Load())
}

func TestRun_BatchWithinLimitsProceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f1"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency:  2,
		MaxFiles:     2,
		MaxTotalSize: 100,
	})
	t1 := o.Add("a.png", "image/png", []byte("abc"), entity.UploadTypeEGI)
	t2 := o.Add("b.png", "image/png", []byte("defg"), entity.UploadTypeEGI)

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, entity.TaskStateFinalized, t1.State)
	assert.Equal(t, entity.TaskStateFinalized, t2.State)
}

func TestRun_ScanTimeoutFailsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f3"})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency: 1,
		ScanEnabled: true,
		ScanTimeout: 20 * time.Millisecond,
	})
	task := o.Add("photo.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, entity.TaskStateFailed, task.State)
	assert.Equal(t, "SCAN_FAILED", task.LastErr.ErrorCode)
}

func TestRun_BroadcastVerdictReachesAllWaiters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{})
	}))
	defer srv.Close()

	o := newOrchestrator(t, srv.URL, uploader.OrchestratorConfig{
		Concurrency: 2,
		ScanEnabled: true,
		ScanTimeout: time.Second,
	})
	t1 := o.Add("a.png", "image/png", []byte("x"), entity.UploadTypeEGI)
	t2 := o.Add("b.png", "image/png", []byte("x"), entity.UploadTypeEGI)

	go func() {
		time.Sleep(30 * time.Millisecond)
		o.HandleEvent(entity.UploadEvent{State: entity.EventStateAllClean})
	}()

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, entity.TaskStateFinalized, t1.State)
	assert.Equal(t, entity.TaskStateFinalized, t2.State)
}
