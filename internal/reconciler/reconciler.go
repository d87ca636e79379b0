package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alarmtrail/internal/models"
)

// AlarmLog 报警记录写入口（repository.AlarmRecordsRepository 实现）
type AlarmLog interface {
	LogTransition(ctx context.Context, rec *models.AlarmRecord, closedAt time.Time) (int64, error)
}

// SerialResolver mac → 序列号（registry.Resolver 实现）
type SerialResolver interface {
	Resolve(ctx context.Context, deviceMac string) string
}

// Notifier 记录落库后的外呼通知（notify.WebhookNotifier 实现，可为 nil）
type Notifier interface {
	NotifyRecord(rec *models.AlarmRecord)
}

// Reconciler 报警对账引擎：把单条 AlarmEvent 合入持久报警日志。
// 日志是事件史而不是去重后的状态表：重复 RAISE 每条产生一个新行，
// 旧的 active 行被同一事务关闭，同一设备（mac+ip）任一时刻至多一条 active。
type Reconciler struct {
	log      AlarmLog
	resolver SerialResolver
	notifier Notifier
	logger   *zap.Logger
}

// NewReconciler notifier 可传 nil（未配置外呼时）
func NewReconciler(log AlarmLog, resolver SerialResolver, notifier Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		log:      log,
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
	}
}

// Apply 处理一条事件，按事件类别落库：
//   - code=0（RAISE 或 CLEAR）：例行心跳，无信息量，不落库；
//   - CLEAR code>0：关闭该设备全部 active 记录，另插入一行清除记录
//     （startedAt = stoppedAt = 事件时间），没有可关记录时清除行照样插入；
//   - RAISE code>0：关闭遗留 active 记录并插入新的 active 行。
//
// 返回的错误由调用方记日志后丢弃该事件，绝不中断后续事件的处理。
func (r *Reconciler) Apply(ctx context.Context, evt *models.AlarmEvent) error {
	if evt.Code == 0 {
		r.logger.Debug("heartbeat event, nothing to record",
			zap.String("device_mac", evt.DeviceMac),
			zap.String("device_ip", evt.DeviceIp),
			zap.String("transition", evt.Transition.String()))
		return nil
	}

	rec := &models.AlarmRecord{
		ID:        uuid.New().String(),
		StartedAt: evt.OccurredAt,
		DeviceMac: evt.DeviceMac,
		DeviceIp:  evt.DeviceIp,
		Code:      evt.Code,
	}

	// 登记表缺失不算错误，serial 留空等回填
	if serial := r.resolver.Resolve(ctx, evt.DeviceMac); serial != "" {
		rec.Serial = &serial
	}

	switch evt.Transition {
	case models.TransitionRaise:
		rec.Active = true
	case models.TransitionClear:
		rec.Active = false
		stoppedAt := evt.OccurredAt
		rec.StoppedAt = &stoppedAt
	default:
		return fmt.Errorf("unknown transition %d", evt.Transition)
	}

	closed, err := r.log.LogTransition(ctx, rec, evt.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to log %s transition: %w", evt.Transition, err)
	}

	r.logger.Info("alarm transition recorded",
		zap.String("record_id", rec.ID),
		zap.String("device_mac", evt.DeviceMac),
		zap.String("device_ip", evt.DeviceIp),
		zap.String("transition", evt.Transition.String()),
		zap.Int("code", evt.Code),
		zap.Int64("closed_records", closed))

	if r.notifier != nil {
		r.notifier.NotifyRecord(rec)
	}

	return nil
}
