package retention

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredDeleter 按截止时间删除过期告警记录
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, notBefore time.Time) (int64, error)
}

// Sweeper 周期性清除超过保留窗口的告警记录。
// 查询侧同时带 started_at 截止条件，两道保障之下过期记录
// 即使尚未被清扫也不会出现在任何查询结果里。
type Sweeper struct {
	repo      ExpiredDeleter
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewSweeper 创建清扫器
func NewSweeper(repo ExpiredDeleter, retention, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Start 启动清扫循环，阻塞直到上下文取消
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval),
	)

	// 启动时先清一次，避免等满一个周期
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep 删除一轮过期记录，失败只记录日志
func (s *Sweeper) sweep(ctx context.Context) {
	notBefore := time.Now().Add(-s.retention)

	deleted, err := s.repo.DeleteExpired(ctx, notBefore)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}

	if deleted > 0 {
		s.logger.Info("expired alarm records deleted",
			zap.Int64("count", deleted),
			zap.Time("not_before", notBefore),
		)
	}
}
