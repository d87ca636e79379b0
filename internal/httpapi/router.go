package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAlarmRoutes 注册告警日志查询路由
func (r *Router) RegisterAlarmRoutes(h *AlarmHandler) {
	r.Handle("/api/v1/alarms", h.ServeHTTP)
	r.Handle("/api/v1/alarms/", h.ServeHTTP)
}

// RegisterDeviceRoutes 注册设备序列号路由
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.Handle("/api/v1/devices/", h.ServeHTTP)
}
