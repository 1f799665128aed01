package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	nethttp "net/http"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	retrypkg "github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/retry"
	pkghttp "github.com/AutobookNft/UltraUploadManager-sub004/pkg/http"
)

// codeUnexpectedResponse is synthesized client-side when the server
// answers with something the pipeline cannot interpret.
const codeUnexpectedResponse = "UNEXPECTED_RESPONSE"

// Result is the outcome of one transmission, including retries. The
// transport never mutates the task: the caller applies the result.
type Result struct {
	Success  bool
	Attempts int
	Response *entity.UploadResponse
	Err      *entity.ErrorPayload
}

// Transport sends prepared upload tasks to the server, retrying
// transient failures with exponential backoff. Transient means a
// network-level error or a 429, 408 or 5xx status; every other non-2xx
// status is terminal and consumes no further attempts.
type Transport struct {
	conn          *pkghttp.Connector
	retryCfg      *retrypkg.Config
	csrfToken     string
	preprocessors map[entity.UploadType]Preprocessor
	logger        *zap.Logger
}

func NewTransport(conn *pkghttp.Connector, retryCfg *retrypkg.Config, csrfToken string, logger *zap.Logger) *Transport {
	return &Transport{
		conn:      conn,
		retryCfg:  retryCfg,
		csrfToken: csrfToken,
		preprocessors: map[entity.UploadType]Preprocessor{
			entity.UploadTypeEPP: NewEPPPreprocessor(),
		},
		logger: logger,
	}
}

// HasPreprocessor reports whether the upload type carries a
// pre-transmission transform step.
func (t *Transport) HasPreprocessor(typ entity.UploadType) bool {
	_, ok := t.preprocessors[typ]
	return ok
}

// Prepare applies the type-specific transform to the task payload, if
// the type has one. It must run once, before Send.
func (t *Transport) Prepare(task *entity.UploadTask) error {
	pre, ok := t.preprocessors[task.Type]
	if !ok {
		return nil
	}
	if err := pre.Transform(task); err != nil {
		return fmt.Errorf("transform %s payload: %w", task.Type, err)
	}
	return nil
}

// Send transmits the task and classifies the outcome. The attempt
// counter in the result covers every wire attempt actually made,
// including the final one.
func (t *Transport) Send(ctx context.Context, task *entity.UploadTask) *Result {
	result := &Result{}
	endpoint := fmt.Sprintf("/api/uploads/%s", task.Type)

	err := retry.Do(
		func() error {
			result.Attempts++
			raw, err := t.conn.DoMultipart(ctx, nethttp.MethodPost, endpoint, func(w *multipart.Writer) error {
				return writeUploadForm(w, task, t.csrfToken)
			})
			if err != nil {
				// Transport never reached a response: always retryable.
				result.Err = &entity.ErrorPayload{
					Message:   err.Error(),
					State:     "network",
					ErrorCode: "SERVER_ERROR",
					Blocking:  "not",
				}
				return err
			}
			if raw.IsSuccess() {
				result.Success = true
				result.Err = nil
				result.Response = parseUploadResponse(raw)
				return nil
			}

			result.Err = classifyFailure(raw)
			statusErr := fmt.Errorf("upload rejected with status %d: %s", raw.StatusCode, result.Err.ErrorCode)
			if retryableStatus(raw.StatusCode) {
				return statusErr
			}
			return retry.Unrecoverable(statusErr)
		},
		append(t.retryCfg.ToRetryOptions(),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				t.logger.Warn("retrying upload",
					zap.String("filename", task.Filename),
					zap.Uint("attempt", n+1),
					zap.Error(err))
			}),
		)...,
	)
	if err != nil {
		result.Success = false
		if result.Err == nil {
			result.Err = &entity.ErrorPayload{
				Message:   err.Error(),
				State:     "upload",
				ErrorCode: "SERVER_ERROR",
				Blocking:  "not",
			}
		}
		return result
	}

	if pre, ok := t.preprocessors[task.Type]; ok {
		if verr := pre.Verify(result.Response); verr != nil {
			result.Success = false
			result.Err = &entity.ErrorPayload{
				Message:   verr.Error(),
				State:     "verification",
				ErrorCode: codeUnexpectedResponse,
				Blocking:  "blocking",
			}
		}
	}
	return result
}

// retryableStatus reports whether the HTTP status marks a transient
// server condition. The set is exactly 429, 408 and the 5xx range.
func retryableStatus(code int) bool {
	return code == nethttp.StatusTooManyRequests ||
		code == nethttp.StatusRequestTimeout ||
		code >= 500
}

func writeUploadForm(w *multipart.Writer, task *entity.UploadTask, csrfToken string) error {
	part, err := w.CreateFormFile("file", task.Filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(task.Data); err != nil {
		return err
	}
	if err := w.WriteField("_token", csrfToken); err != nil {
		return err
	}
	if err := w.WriteField("uploadType", string(task.Type)); err != nil {
		return err
	}
	return nil
}

// parseUploadResponse decodes a successful body when it is JSON; any
// 2xx with a body the client cannot parse still counts as success.
func parseUploadResponse(raw *pkghttp.RawResponse) *entity.UploadResponse {
	resp := &entity.UploadResponse{}
	if raw.IsJSON() && len(raw.Body) > 0 {
		if err := json.Unmarshal(raw.Body, resp); err != nil {
			return &entity.UploadResponse{}
		}
	}
	return resp
}

// classifyFailure extracts the structured error payload from a non-2xx
// response, synthesizing an UNEXPECTED_RESPONSE payload when the body
// is not the expected JSON shape.
func classifyFailure(raw *pkghttp.RawResponse) *entity.ErrorPayload {
	if raw.IsJSON() {
		payload := &entity.ErrorPayload{}
		if err := json.Unmarshal(raw.Body, payload); err == nil && payload.ErrorCode != "" {
			return payload
		}
	}
	return &entity.ErrorPayload{
		Message:   fmt.Sprintf("unexpected response with status %d", raw.StatusCode),
		State:     "upload",
		ErrorCode: codeUnexpectedResponse,
		Blocking:  "blocking",
	}
}
