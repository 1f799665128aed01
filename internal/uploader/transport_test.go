package uploader_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	retrypkg "github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/retry"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/uploader"
	pkghttp "github.com/AutobookNft/UltraUploadManager-sub004/pkg/http"
)

func fastRetryConfig() *retrypkg.Config {
	return &retrypkg.Config{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}
}

func newTestTransport(t *testing.T, baseURL string) *uploader.Transport {
	t.Helper()
	conn := pkghttp.NewConnector(&pkghttp.ConnectorConfig{
		BaseURL: baseURL,
		Logger:  zap.NewNop(),
	})
	return uploader.NewTransport(conn, fastRetryConfig(), "test-csrf-token", zap.NewNop())
}

func newTask(typ entity.UploadType) *entity.UploadTask {
	data := []byte("fake png bytes")
	return &entity.UploadTask{
		ID:       "task-1",
		Filename: "photo.png",
		MimeType: "image/png",
		Size:     int64(len(data)),
		Data:     data,
		Type:     typ,
		State:    entity.TaskStateUploading,
	}
}

func TestSend_RecoversFromTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{Message: "ok", FileID: "f1"})
	}))
	defer srv.Close()

	result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))

	require.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Nil(t, result.Err)
	assert.Equal(t, "f1", result.Response.FileID)
}

func TestSend_StopsAtAttemptCeiling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(entity.ErrorPayload{
			Message:   "service down",
			State:     "upload",
			ErrorCode: "SERVER_ERROR",
			Blocking:  "not",
		})
	}))
	defer srv.Close()

	result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))

	require.False(t, result.Success)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, result.Attempts)
	require.NotNil(t, result.Err)
	assert.Equal(t, "SERVER_ERROR", result.Err.ErrorCode)
}

func TestSend_TerminalStatusConsumesSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(entity.ErrorPayload{
			Message:   "extension not allowed",
			State:     "validation",
			ErrorCode: "INVALID_FILE_EXTENSION",
			Blocking:  "not",
		})
	}))
	defer srv.Close()

	result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))

	require.False(t, result.Success)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "INVALID_FILE_EXTENSION", result.Err.ErrorCode)
}

func TestSend_RetryableStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"too many requests", http.StatusTooManyRequests, 3},
		{"request timeout", http.StatusRequestTimeout, 3},
		{"bad gateway", http.StatusBadGateway, 3},
		{"forbidden is terminal", http.StatusForbidden, 1},
		{"not found is terminal", http.StatusNotFound, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))

			assert.False(t, result.Success)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestSend_SynthesizesPayloadForNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("<html>Bad Request</html>"))
	}))
	defer srv.Close()

	result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, "UNEXPECTED_RESPONSE", result.Err.ErrorCode)
	assert.Equal(t, "blocking", result.Err.Blocking)
}

func TestSend_NetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))

	require.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "network", result.Err.State)
}

func TestSend_MultipartFormFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "test-csrf-token", r.FormValue("_token"))
		assert.Equal(t, "egi", r.FormValue("uploadType"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "photo.png", header.Filename)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	result := newTestTransport(t, srv.URL).Send(context.Background(), newTask(entity.UploadTypeEGI))
	assert.True(t, result.Success)
}

func TestEPP_PayloadEncodedAndVerified(t *testing.T) {
	original := []byte("fake png bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		decoded, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, file))
		require.NoError(t, err)
		assert.Equal(t, original, decoded)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f9", VerificationToken: "VALID"})
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	task := newTask(entity.UploadTypeEPP)
	require.NoError(t, tr.Prepare(task))

	result := tr.Send(context.Background(), task)
	require.True(t, result.Success)
	assert.Equal(t, "VALID", result.Response.VerificationToken)
}

func TestEPP_VerificationTokenMismatchFailsUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.UploadResponse{FileID: "f9", VerificationToken: "TAMPERED"})
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	task := newTask(entity.UploadTypeEPP)
	require.NoError(t, tr.Prepare(task))

	result := tr.Send(context.Background(), task)
	require.False(t, result.Success)
	assert.Equal(t, "UNEXPECTED_RESPONSE", result.Err.ErrorCode)
	assert.Equal(t, "verification", result.Err.State)
}
