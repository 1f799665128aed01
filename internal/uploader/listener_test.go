package uploader_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/uploader"
)

func sseServer(t *testing.T, events []entity.UploadEvent) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events/upload", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": heartbeat\n\n")
		flusher.Flush()
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: {\"state\":%q,\"message\":%q,\"fileId\":%q}\n\n",
				ev.State, ev.State, ev.Message, ev.FileID)
			flusher.Flush()
		}
	}))
}

func TestSubscribe_DispatchesEventsByState(t *testing.T) {
	srv := sseServer(t, []entity.UploadEvent{
		{State: entity.EventStateVirusScan, Message: "scanning photo.png", FileID: "f1"},
		{State: entity.EventStateAllClean, Message: "all clean", FileID: "f1"},
		{State: "somethingElse", Message: "informational"},
	})
	defer srv.Close()

	got := make(chan string, 3)
	callbacks := uploader.Callbacks{
		OnScanProgress: func(ev entity.UploadEvent) { got <- "progress:" + ev.FileID },
		OnScanClean:    func(ev entity.UploadEvent) { got <- "clean:" + ev.FileID },
		OnUploadFailed: func(ev entity.UploadEvent) { got <- "failed:" + ev.FileID },
		OnInfo:         func(ev entity.UploadEvent) { got <- "info:" + ev.State },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := uploader.NewListener(srv.URL, zap.NewNop())
	require.NoError(t, l.Subscribe(ctx, callbacks))

	want := []string{"progress:f1", "clean:f1", "info:somethingElse"}
	for _, expected := range want {
		select {
		case actual := <-got:
			assert.Equal(t, expected, actual)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", expected)
		}
	}
}

func TestSubscribe_FailsOnNonStreamResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := uploader.NewListener(srv.URL, zap.NewNop())
	err := l.Subscribe(context.Background(), uploader.Callbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestSubscribe_FailsWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	l := uploader.NewListener(srv.URL, zap.NewNop())
	err := l.Subscribe(context.Background(), uploader.Callbacks{})
	require.Error(t, err)
}
