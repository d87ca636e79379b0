package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"alarmtrail/internal/models"
	"alarmtrail/internal/repository"
)

// ErrInvalidQuery 过滤查询必须至少带一个过滤条件。
// 与 repository.ErrInvalidQuery 是同一个值，保留 service 侧引用名。
var ErrInvalidQuery = repository.ErrInvalidQuery

// AlarmRecordLister 告警记录读取接口
type AlarmRecordLister interface {
	ListRecords(ctx context.Context, filters repository.AlarmRecordFilters, notBefore time.Time, page, size int) ([]*models.AlarmRecord, int, error)
}

// AlarmQueryService 告警日志只读查询。
// 所有查询统一带保留窗口截止条件，过期记录对调用方不可见。
type AlarmQueryService struct {
	repo      AlarmRecordLister
	retention time.Duration
	logger    *zap.Logger
}

// NewAlarmQueryService 创建查询服务
func NewAlarmQueryService(repo AlarmRecordLister, retention time.Duration, logger *zap.Logger) *AlarmQueryService {
	return &AlarmQueryService{
		repo:      repo,
		retention: retention,
		logger:    logger,
	}
}

// ListAll 全量历史，按 started_at 倒序
func (s *AlarmQueryService) ListAll(ctx context.Context, page, size int) ([]*models.AlarmRecord, int, error) {
	return s.repo.ListRecords(ctx, repository.AlarmRecordFilters{}, s.notBefore(), page, size)
}

// ListFiltered 过滤查询，三个条件至少提供一个
func (s *AlarmQueryService) ListFiltered(ctx context.Context, filters repository.AlarmRecordFilters, page, size int) ([]*models.AlarmRecord, int, error) {
	if filters.Empty() {
		return nil, 0, ErrInvalidQuery
	}
	return s.repo.ListRecords(ctx, filters, s.notBefore(), page, size)
}

func (s *AlarmQueryService) notBefore() time.Time {
	return time.Now().Add(-s.retention)
}
