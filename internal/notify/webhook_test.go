package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alarmtrail/internal/models"
)

type capturedRequest struct {
	mu       sync.Mutex
	payloads []webhookPayload
}

func (c *capturedRequest) add(p webhookPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
}

func (c *capturedRequest) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newCaptureServer(t *testing.T, captured *capturedRequest, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var p webhookPayload
		require.NoError(t, json.Unmarshal(body, &p))
		captured.add(p)

		w.WriteHeader(status)
	}))
}

func TestSend_RaisedRecord(t *testing.T) {
	captured := &capturedRequest{}
	srv := newCaptureServer(t, captured, http.StatusOK)
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 2*time.Second, zap.NewNop())

	rec := &models.AlarmRecord{
		ID:        "rec-001",
		StartedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		DeviceMac: "AA:BB:CC:DD:EE:FF",
		DeviceIp:  "192.168.1.10",
		Code:      3,
		Active:    true,
	}
	n.send(rec)

	require.Equal(t, 1, captured.count())
	p := captured.payloads[0]
	assert.Equal(t, "alarm.raised", p.Event)
	assert.Equal(t, "rec-001", p.Record.ID)
	assert.Equal(t, 3, p.Record.Code)
}

func TestSend_ClearedRecord(t *testing.T) {
	captured := &capturedRequest{}
	srv := newCaptureServer(t, captured, http.StatusOK)
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 2*time.Second, zap.NewNop())

	stopped := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	rec := &models.AlarmRecord{
		ID:        "rec-002",
		StartedAt: stopped,
		StoppedAt: &stopped,
		DeviceMac: "AA:BB:CC:DD:EE:FF",
		DeviceIp:  "192.168.1.10",
		Code:      3,
		Active:    false,
	}
	n.send(rec)

	require.Equal(t, 1, captured.count())
	assert.Equal(t, "alarm.cleared", captured.payloads[0].Event)
}

func TestSend_ServerErrorLoggedNotFatal(t *testing.T) {
	captured := &capturedRequest{}
	srv := newCaptureServer(t, captured, http.StatusInternalServerError)
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 2*time.Second, zap.NewNop())
	// 5xx 会触发 resty 重试，最终只记录日志
	n.send(&models.AlarmRecord{ID: "rec-003", Active: true})

	assert.GreaterOrEqual(t, captured.count(), 1)
}

func TestNotifyRecord_Async(t *testing.T) {
	captured := &capturedRequest{}
	srv := newCaptureServer(t, captured, http.StatusOK)
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 2*time.Second, zap.NewNop())
	n.NotifyRecord(&models.AlarmRecord{ID: "rec-004", Active: true})

	assert.Eventually(t, func() bool { return captured.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
