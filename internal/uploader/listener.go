package uploader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
)

// Callbacks route real-time upload events to the orchestrator. Any
// event with an unrecognized state goes to OnInfo.
type Callbacks struct {
	OnScanProgress func(entity.UploadEvent)
	OnScanClean    func(entity.UploadEvent)
	OnUploadFailed func(entity.UploadEvent)
	OnInfo         func(entity.UploadEvent)
}

// Listener consumes the server-sent event stream of the upload channel.
// Subscription failure is not fatal to the pipeline: the caller logs it
// and continues with scan notifications disabled.
type Listener struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewListener builds a listener for the upload channel at baseURL. The
// stream stays open for the lifetime of the subscription, so the
// listener uses its own client without a global timeout.
func NewListener(baseURL string, logger *zap.Logger) *Listener {
	return &Listener{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Subscribe opens the event stream and dispatches events to the
// callbacks until ctx is cancelled or the stream ends. The error covers
// connection setup only; a stream that later drops is logged, not
// returned, since events are a progress aid rather than a hard
// dependency of the upload itself.
func (l *Listener) Subscribe(ctx context.Context, callbacks Callbacks) error {
	url := fmt.Sprintf("%s/events/%s", l.baseURL, entity.ChannelUpload)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create subscribe request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe to %s channel: %w", entity.ChannelUpload, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("subscribe to %s channel: status %d", entity.ChannelUpload, resp.StatusCode)
	}

	go func() {
		defer resp.Body.Close()
		l.consume(resp.Body, callbacks)
		if ctx.Err() == nil {
			l.logger.Warn("upload event stream closed by server")
		}
	}()
	return nil
}

// consume parses the text/event-stream format: "data:" lines accumulate
// until a blank line terminates the event. Comment lines (heartbeats)
// are skipped.
func (l *Listener) consume(body io.Reader, callbacks Callbacks) {
	scanner := bufio.NewScanner(body)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				l.dispatch(data.String(), callbacks)
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if data.Len() > 0 {
		l.dispatch(data.String(), callbacks)
	}
}

func (l *Listener) dispatch(data string, callbacks Callbacks) {
	var event entity.UploadEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		l.logger.Warn("discarding malformed upload event", zap.String("data", data), zap.Error(err))
		return
	}

	switch event.State {
	case entity.EventStateVirusScan:
		if callbacks.OnScanProgress != nil {
			callbacks.OnScanProgress(event)
		}
	case entity.EventStateAllClean:
		if callbacks.OnScanClean != nil {
			callbacks.OnScanClean(event)
		}
	case entity.EventStateUploadFailed:
		if callbacks.OnUploadFailed != nil {
			callbacks.OnUploadFailed(event)
		}
	default:
		if callbacks.OnInfo != nil {
			callbacks.OnInfo(event)
		}
	}
}
