package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"alarmtrail/internal/models"
	"alarmtrail/internal/repository"
)

// AlarmQuerier 告警日志查询接口
type AlarmQuerier interface {
	ListAll(ctx context.Context, page, size int) ([]*models.AlarmRecord, int, error)
	ListFiltered(ctx context.Context, filters repository.AlarmRecordFilters, page, size int) ([]*models.AlarmRecord, int, error)
}

// AlarmHandler 告警日志查询 Handler
// 注意：查询是只读的，直接依赖查询服务，不做任何写操作
type AlarmHandler struct {
	query  AlarmQuerier
	codes  *models.StatusTable
	logger *zap.Logger
}

// NewAlarmHandler 创建告警日志 Handler
func NewAlarmHandler(query AlarmQuerier, codes *models.StatusTable, logger *zap.Logger) *AlarmHandler {
	return &AlarmHandler{
		query:  query,
		codes:  codes,
		logger: logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AlarmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	switch {
	case r.URL.Path == "/api/v1/alarms" && r.Method == http.MethodGet:
		h.ListAlarms(w, r)
	case r.URL.Path == "/api/v1/alarms/search" && r.Method == http.MethodGet:
		h.SearchAlarms(w, r)
	case r.URL.Path == "/api/v1/alarms/export" && r.Method == http.MethodGet:
		h.ExportAlarms(w, r)
	case r.URL.Path == "/api/v1/alarms" || r.URL.Path == "/api/v1/alarms/search" || r.URL.Path == "/api/v1/alarms/export":
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListAlarms 全量告警历史，按发生时间倒序
func (h *AlarmHandler) ListAlarms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 100)

	items, total, err := h.query.ListAll(ctx, page, size)
	if err != nil {
		h.logger.Error("ListAlarms failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list alarms: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, rec := range items {
		out = append(out, h.recordView(rec))
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

// SearchAlarms 过滤查询，mac/ip/active 至少提供一个
func (h *AlarmHandler) SearchAlarms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseAlarmFilters(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 100)

	items, total, err := h.query.ListFiltered(ctx, filters, page, size)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidQuery) {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.logger.Error("SearchAlarms failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to search alarms: %v", err)))
		return
	}

	out := make([]any, 0, len(items))
	for _, rec := range items {
		out = append(out, h.recordView(rec))
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
	}))
}

// ExportAlarms 导出告警历史为 Excel
func (h *AlarmHandler) ExportAlarms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseAlarmFilters(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	// 无过滤条件时导出全量历史
	var items []*models.AlarmRecord
	if filters.Empty() {
		items, _, err = h.query.ListAll(ctx, 1, 10000)
	} else {
		items, _, err = h.query.ListFiltered(ctx, filters, 1, 10000)
	}
	if err != nil {
		h.logger.Error("ListAlarms failed for export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list alarms: %v", err)))
		return
	}

	data := make([]map[string]any, 0, len(items))
	for _, rec := range items {
		data = append(data, h.recordView(rec))
	}

	excelData, err := GenerateAlarmExport(data)
	if err != nil {
		h.logger.Error("GenerateAlarmExport failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=alarm-records-export.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}

// parseAlarmFilters 从查询参数解析过滤条件
func parseAlarmFilters(r *http.Request) (repository.AlarmRecordFilters, error) {
	var filters repository.AlarmRecordFilters

	if mac := r.URL.Query().Get("mac"); mac != "" {
		filters.DeviceMac = &mac
	}
	if ip := r.URL.Query().Get("ip"); ip != "" {
		filters.DeviceIp = &ip
	}
	if activeRaw := r.URL.Query().Get("active"); activeRaw != "" {
		active, err := strconv.ParseBool(activeRaw)
		if err != nil {
			return filters, fmt.Errorf("invalid active parameter: %s", activeRaw)
		}
		filters.Active = &active
	}

	return filters, nil
}

// recordView 构建告警记录的响应视图，状态码同时给出文本描述
func (h *AlarmHandler) recordView(rec *models.AlarmRecord) map[string]any {
	view := map[string]any{
		"id":          rec.ID,
		"started_at":  rec.StartedAt,
		"device_mac":  rec.DeviceMac,
		"device_ip":   rec.DeviceIp,
		"code":        rec.Code,
		"description": h.codes.Describe(rec.Code),
		"active":      rec.Active,
		"state":       string(rec.State()),
	}
	if rec.StoppedAt != nil {
		view["stopped_at"] = *rec.StoppedAt
	}
	if rec.Serial != nil {
		view["serial"] = *rec.Serial
	}
	return view
}
