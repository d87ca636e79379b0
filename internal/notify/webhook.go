package notify

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"alarmtrail/internal/models"
)

// webhookPayload 推送给下游的事件体
type webhookPayload struct {
	Event  string              `json:"event"`
	Record *models.AlarmRecord `json:"record"`
}

// WebhookNotifier 告警变迁的 webhook 推送。
// 推送是尽力而为：失败只记录日志，绝不回传到摄取链路。
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 webhook 推送器
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// NotifyRecord 异步推送一条告警记录
func (w *WebhookNotifier) NotifyRecord(rec *models.AlarmRecord) {
	go w.send(rec)
}

func (w *WebhookNotifier) send(rec *models.AlarmRecord) {
	event := "alarm.cleared"
	if rec.Active {
		event = "alarm.raised"
	}

	payload := webhookPayload{
		Event:  event,
		Record: rec,
	}

	resp, err := w.httpClient.R().
		SetBody(payload).
		Post(w.url)

	if err != nil {
		w.logger.Error("webhook delivery failed",
			zap.String("url", w.url),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return
	}

	if resp.IsError() {
		w.logger.Warn("webhook returned non-success status",
			zap.String("url", w.url),
			zap.String("record_id", rec.ID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return
	}

	w.logger.Debug("webhook delivered",
		zap.String("record_id", rec.ID),
		zap.String("event", event),
	)
}
