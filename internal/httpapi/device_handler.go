package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// SerialRegistrar 设备序列号注册接口
type SerialRegistrar interface {
	RegisterSerial(ctx context.Context, deviceMac, serial string) (int64, error)
	GetSerial(ctx context.Context, deviceMac string) (string, error)
}

// DeviceHandler 设备序列号管理 Handler
type DeviceHandler struct {
	registry SerialRegistrar
	logger   *zap.Logger
}

// NewDeviceHandler 创建设备 Handler
func NewDeviceHandler(registry SerialRegistrar, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		registry: registry,
		logger:   logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
// 路由格式: /api/v1/devices/{mac}/serial
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "serial" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceMac := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.GetSerial(w, r, deviceMac)
	case http.MethodPut:
		h.UpdateSerial(w, r, deviceMac)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// GetSerial 查询设备序列号
func (h *DeviceHandler) GetSerial(w http.ResponseWriter, r *http.Request, deviceMac string) {
	serial, err := h.registry.GetSerial(r.Context(), deviceMac)
	if err != nil {
		h.logger.Error("GetSerial failed", zap.String("device_mac", deviceMac), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to get serial: %v", err)))
		return
	}
	if serial == "" {
		writeJSON(w, http.StatusOK, Fail("device not registered"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"device_mac": deviceMac,
		"serial":     serial,
	}))
}

// UpdateSerial 注册（或更新）设备序列号并回填历史记录
func (h *DeviceHandler) UpdateSerial(w http.ResponseWriter, r *http.Request, deviceMac string) {
	var payload struct {
		Serial string `json:"serial"`
	}
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if payload.Serial == "" {
		writeJSON(w, http.StatusOK, Fail("serial is required"))
		return
	}

	updated, err := h.registry.RegisterSerial(r.Context(), deviceMac, payload.Serial)
	if err != nil {
		h.logger.Error("RegisterSerial failed", zap.String("device_mac", deviceMac), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to register serial: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"device_mac":      deviceMac,
		"serial":          payload.Serial,
		"updated_records": updated,
	}))
}
