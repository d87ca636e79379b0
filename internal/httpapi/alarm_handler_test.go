package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"alarmtrail/internal/models"
	"alarmtrail/internal/repository"
)

type fakeQuerier struct {
	records []*models.AlarmRecord
	total   int
	err     error

	gotFilters repository.AlarmRecordFilters
	gotPage    int
	gotSize    int
}

func (f *fakeQuerier) ListAll(_ context.Context, page, size int) ([]*models.AlarmRecord, int, error) {
	f.gotPage = page
	f.gotSize = size
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.records, f.total, nil
}

func (f *fakeQuerier) ListFiltered(_ context.Context, filters repository.AlarmRecordFilters, page, size int) ([]*models.AlarmRecord, int, error) {
	if filters.Empty() {
		return nil, 0, repository.ErrInvalidQuery
	}
	f.gotFilters = filters
	f.gotPage = page
	f.gotSize = size
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.records, f.total, nil
}

type envelope struct {
	Code    int            `json:"code"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Result  map[string]any `json:"result"`
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) envelope {
	t.Helper()
	var result envelope
	require.NoError(t, json.Unmarshal(body.Bytes(), &result))
	return result
}

func sampleRecords() []*models.AlarmRecord {
	stopped := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	serial := "SN-001"
	return []*models.AlarmRecord{
		{
			ID:        "rec-2",
			StartedAt: stopped,
			StoppedAt: &stopped,
			DeviceMac: "AA:BB:CC:DD:EE:FF",
			DeviceIp:  "192.168.1.10",
			Code:      3,
			Active:    false,
			Serial:    &serial,
		},
		{
			ID:        "rec-1",
			StartedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			DeviceMac: "AA:BB:CC:DD:EE:FF",
			DeviceIp:  "192.168.1.10",
			Code:      3,
			Active:    true,
		},
	}
}

func newAlarmHandler(q *fakeQuerier) *AlarmHandler {
	return NewAlarmHandler(q, models.NewStatusTable(models.DefaultStatusCodes()), zap.NewNop())
}

func TestListAlarms_Success(t *testing.T) {
	q := &fakeQuerier{records: sampleRecords(), total: 2}
	h := newAlarmHandler(q)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms?page=2&size=10", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeEnvelope(t, w.Body)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, float64(2), result.Result["total"])
	assert.Equal(t, 2, q.gotPage)
	assert.Equal(t, 10, q.gotSize)

	items := result.Result["items"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "rec-2", first["id"])
	assert.Equal(t, "high temperature", first["description"])
	assert.Equal(t, "CLOSED", first["state"])
	assert.Equal(t, "SN-001", first["serial"])

	second := items[1].(map[string]any)
	assert.Equal(t, "OPEN", second["state"])
	assert.NotContains(t, second, "stopped_at")
	assert.NotContains(t, second, "serial")
}

func TestSearchAlarms_FilterParsing(t *testing.T) {
	q := &fakeQuerier{records: nil, total: 0}
	h := newAlarmHandler(q)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms/search?mac=aa:bb&active=true", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeEnvelope(t, w.Body)
	assert.Equal(t, ResultSuccess, result.Code)

	require.NotNil(t, q.gotFilters.DeviceMac)
	assert.Equal(t, "aa:bb", *q.gotFilters.DeviceMac)
	assert.Nil(t, q.gotFilters.DeviceIp)
	require.NotNil(t, q.gotFilters.Active)
	assert.True(t, *q.gotFilters.Active)
}

func TestSearchAlarms_NoFiltersRejected(t *testing.T) {
	h := newAlarmHandler(&fakeQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms/search", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeEnvelope(t, w.Body)
	assert.Equal(t, ResultError, result.Code)
	assert.Contains(t, result.Message, "at least one filter")
}

func TestSearchAlarms_InvalidActiveParam(t *testing.T) {
	h := newAlarmHandler(&fakeQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms/search?active=banana", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeEnvelope(t, w.Body)
	assert.Equal(t, ResultError, result.Code)
	assert.Contains(t, result.Message, "invalid active parameter")
}

func TestExportAlarms_GeneratesWorkbook(t *testing.T) {
	q := &fakeQuerier{records: sampleRecords(), total: 2}
	h := newAlarmHandler(q)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms/export", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "alarm-records-export.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Alarm Records")
	require.NoError(t, err)
	require.Len(t, rows, 3) // 表头 + 2 条记录
	assert.Equal(t, "Record ID", rows[0][0])
	assert.Equal(t, "rec-2", rows[1][0])
	assert.Equal(t, "high temperature", rows[1][6])
}

func TestAlarmHandler_Routing(t *testing.T) {
	h := newAlarmHandler(&fakeQuerier{})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"GET /api/v1/alarms", http.MethodGet, "/api/v1/alarms", http.StatusOK},
		{"POST /api/v1/alarms (wrong method)", http.MethodPost, "/api/v1/alarms", http.StatusMethodNotAllowed},
		{"DELETE /api/v1/alarms/search (wrong method)", http.MethodDelete, "/api/v1/alarms/search", http.StatusMethodNotAllowed},
		{"Unknown path", http.MethodGet, "/api/v1/alarms/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
