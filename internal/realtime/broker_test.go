package realtime_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroker_PublishFansOut(t *testing.T) {
	b := realtime.NewBroker(zap.NewNop())

	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	b.Publish(entity.UploadEvent{State: entity.EventStateVirusScan, Message: "scanning"})

	for _, ch := range []<-chan entity.UploadEvent{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, entity.EventStateVirusScan, ev.State)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBroker_CancelRemovesSubscriber(t *testing.T) {
	b := realtime.NewBroker(zap.NewNop())

	_, cancel := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	cancel()
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestServeHTTP_StreamsEvents(t *testing.T) {
	b := realtime.NewBroker(zap.NewNop())

	router := chi.NewRouter()
	router.Get("/events/{channel}", b.ServeHTTP)
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events/upload", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait until the broker sees the subscriber, then publish.
	for i := 0; i < 100 && b.SubscriberCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	b.Publish(entity.UploadEvent{State: entity.EventStateAllClean, Message: "done", FileID: "f1"})

	reader := bufio.NewReader(resp.Body)
	var sawEvent, sawData bool
	for !sawData {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			assert.Equal(t, "event: allFileScannedNotInfected", strings.TrimSpace(line))
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, `"fileId":"f1"`)
			sawData = true
		}
	}
	assert.True(t, sawEvent)
}

func TestServeHTTP_UnknownChannelIs404(t *testing.T) {
	b := realtime.NewBroker(zap.NewNop())

	router := chi.NewRouter()
	router.Get("/events/{channel}", b.ServeHTTP)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/events/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
