package upload_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/api/errsim"
	uploadapi "github.com/AutobookNft/UltraUploadManager-sub004/internal/api/upload"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/config"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/limits"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/validator"
)

type memStore struct {
	mu    sync.Mutex
	files []entity.StoredFile
}

func (s *memStore) Create(_ context.Context, file entity.StoredFile) (*entity.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	s.files = append(s.files, file)
	return &file, nil
}

func (s *memStore) GetByID(_ context.Context, fileID string) (*entity.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.files {
		if s.files[i].ID == fileID {
			file := s.files[i]
			return &file, nil
		}
	}
	return nil, entity.ErrFileNotFound
}

func (s *memStore) last() (entity.StoredFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.files) == 0 {
		return entity.StoredFile{}, false
	}
	return s.files[len(s.files)-1], true
}

type memQueue struct {
	mu       sync.Mutex
	enqueued []entity.StoredFile
}

func (q *memQueue) Enqueue(file entity.StoredFile) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, file)
	return true
}

func (q *memQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}

type testEnv struct {
	server  *httptest.Server
	store   *memStore
	queue   *memQueue
	sims    *errsim.Store
	handler *uploadapi.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	translator := i18n.New("en")
	dispatcher := errormgr.NewDispatcher(zap.NewNop())
	dispatcher.Register(errormgr.NewLogHandler(zap.NewNop()))
	manager := errormgr.NewManager(errormgr.NewRegistry(), dispatcher, translator, "en", zap.NewNop())

	cfg := &config.Config{
		Locale:           "en",
		AvailableLocales: []string{"en", "it"},
		StorageDir:       t.TempDir(),
		UploadCfg: config.UploadConfig{
			AllowedExtensions: []string{"png", "jpg", "pdf"},
			AllowedMimeTypes:  []string{"image/png", "image/jpeg", "application/pdf"},
			MaxFileSize:       10 << 20,
			MaxTotalSize:      50 << 20,
			MaxFiles:          20,
			DefaultUploadType: "egi",
		},
		ScanCfg: config.ScanConfig{Enabled: true},
	}

	effective := &limits.Effective{
		MaxTotalSize: 50 << 20,
		MaxFileSize:  10 << 20,
		MaxFiles:     20,
	}

	v := validator.New(validator.Policy{
		AllowedExtensions: cfg.UploadCfg.AllowedExtensions,
		AllowedMimeTypes:  cfg.UploadCfg.AllowedMimeTypes,
		MaxFileSize:       effective.MaxFileSize,
	}, translator, "en")

	store := &memStore{}
	queue := &memQueue{}
	sims := errsim.NewStore(time.Minute)

	h := uploadapi.NewHandler(store, queue, manager, sims, v, translator, effective, cfg)
	r := chi.NewRouter()
	uploadapi.RegisterRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: store, queue: queue, sims: sims, handler: h}
}

func multipartBody(t *testing.T, filename, mimeType, token string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if token != "" {
		require.NoError(t, w.WriteField("_token", token))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", mimeType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postUpload(t *testing.T, env *testEnv, uploadType, filename, mimeType, token string, content []byte) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, filename, mimeType, token, content)
	resp, err := http.Post(env.server.URL+"/api/uploads/"+uploadType, contentType, body)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) entity.ErrorPayload {
	t.Helper()
	defer resp.Body.Close()
	var payload entity.ErrorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestUpload_AcceptsValidFile(t *testing.T) {
	env := newTestEnv(t)

	resp := postUpload(t, env, "egi", "photo.png", "image/png", "tok", []byte("png bytes"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body entity.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.FileID)
	assert.Empty(t, body.VerificationToken)

	stored, ok := env.store.last()
	require.True(t, ok)
	assert.Equal(t, "photo.png", stored.Filename)
	assert.Equal(t, entity.ScanStatusPending, stored.ScanStatus)
	assert.Equal(t, 1, env.queue.count())
}

func TestUpload_MissingTokenAnswers419(t *testing.T) {
	env := newTestEnv(t)

	resp := postUpload(t, env, "egi", "photo.png", "image/png", "", []byte("x"))
	assert.Equal(t, 419, resp.StatusCode)

	payload := decodeError(t, resp)
	assert.Equal(t, "INVALID_TOKEN", payload.ErrorCode)
	assert.Equal(t, "blocking", payload.Blocking)
}

func TestUpload_RejectsDisallowedExtension(t *testing.T) {
	env := newTestEnv(t)

	resp := postUpload(t, env, "egi", "virus.exe", "image/png", "tok", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	payload := decodeError(t, resp)
	assert.Equal(t, "INVALID_FILE_EXTENSION", payload.ErrorCode)
	assert.Equal(t, "validation", payload.State)
	assert.Contains(t, payload.Message, "exe")

	_, ok := env.store.last()
	assert.False(t, ok)
}

func TestUpload_SimulatedErrorShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.sims.Activate("VIRUS_FOUND")

	resp := postUpload(t, env, "egi", "photo.png", "image/png", "tok", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	payload := decodeError(t, resp)
	assert.Equal(t, "VIRUS_FOUND", payload.ErrorCode)
	assert.Equal(t, "simulation", payload.State)

	_, ok := env.store.last()
	assert.False(t, ok)
}

func TestUpload_EPPDecodesPayloadAndReturnsToken(t *testing.T) {
	env := newTestEnv(t)

	original := []byte("pdf payload")
	encoded := []byte(base64.StdEncoding.EncodeToString(original))

	resp := postUpload(t, env, "epp", "doc.pdf", "application/pdf", "tok", encoded)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body entity.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALID", body.VerificationToken)

	stored, ok := env.store.last()
	require.True(t, ok)
	assert.Equal(t, int64(len(original)), stored.Size)

	onDisk, err := os.ReadFile(stored.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, original, onDisk)
}

func TestUpload_UnknownTypeAnswers404(t *testing.T) {
	env := newTestEnv(t)

	resp := postUpload(t, env, "bogus", "photo.png", "image/png", "tok", []byte("x"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpload_BrowserRequestGetsErrorPage(t *testing.T) {
	env := newTestEnv(t)

	// Mounted off the API prefix and asking for HTML: the blocking
	// error renders as a page instead of the JSON payload.
	r := chi.NewRouter()
	r.Post("/uploads/{uploadType}", env.handler.Upload)
	srv := httptest.NewServer(r)
	defer srv.Close()

	body, contentType := multipartBody(t, "photo.png", "image/png", "", []byte("x"))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/uploads/egi", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/html")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 419, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "INVALID_TOKEN")
}

func TestStatus_ReportsScanStatus(t *testing.T) {
	env := newTestEnv(t)

	resp := postUpload(t, env, "egi", "photo.png", "image/png", "tok", []byte("png bytes"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created entity.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	statusResp, err := http.Get(env.server.URL + "/api/uploads/status/" + created.FileID)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var doc entity.FileStatusDocument
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&doc))
	assert.Equal(t, created.FileID, doc.FileID)
	assert.Equal(t, "photo.png", doc.Filename)
	assert.Equal(t, string(entity.ScanStatusPending), doc.ScanStatus)
}

func TestStatus_UnknownFileAnswers404(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/uploads/status/no-such-file")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfig_ServesClientPolicy(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/uploads/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc entity.ConfigDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "en", doc.Locale)
	assert.Contains(t, doc.AllowedExtensions, "png")
	assert.Equal(t, "/api/uploads/egi", doc.Endpoints["egi"])
	assert.Equal(t, "egi", doc.DefaultUploadType)
	assert.True(t, doc.ScanEnabled)
	assert.NotEmpty(t, doc.Translations["en"])
}

func TestLimits_ServesNegotiatedValues(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/uploads/limits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc entity.LimitsDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, int64(10<<20), doc.MaxFileSize)
	assert.Equal(t, 20, doc.MaxFiles)
	assert.Equal(t, "10 MB", doc.MaxFileSizeFormatted)
}
