package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SerialRegistry 设备序列号注册表
type SerialRegistry interface {
	Upsert(ctx context.Context, deviceMac, serial string) error
	Lookup(ctx context.Context, deviceMac string) (string, error)
}

// RecordBackfiller 把序列号回填到既有告警记录
type RecordBackfiller interface {
	BackfillSerial(ctx context.Context, deviceMac, serial string) (int64, error)
}

// SerialCacheInvalidator 注册变更后失效序列号缓存
type SerialCacheInvalidator interface {
	Invalidate(ctx context.Context, deviceMac string)
}

// RegistryService 设备注册编排。
// 注册本身必须成功；历史记录回填是尽力而为，失败不影响注册结果。
type RegistryService struct {
	registry SerialRegistry
	records  RecordBackfiller
	cache    SerialCacheInvalidator
	logger   *zap.Logger
}

// NewRegistryService 创建注册服务，cache 可为 nil
func NewRegistryService(
	registry SerialRegistry,
	records RecordBackfiller,
	cache SerialCacheInvalidator,
	logger *zap.Logger,
) *RegistryService {
	return &RegistryService{
		registry: registry,
		records:  records,
		cache:    cache,
		logger:   logger,
	}
}

// RegisterSerial 注册（或更新）设备序列号，返回回填的记录数
func (s *RegistryService) RegisterSerial(ctx context.Context, deviceMac, serial string) (int64, error) {
	if err := s.registry.Upsert(ctx, deviceMac, serial); err != nil {
		return 0, fmt.Errorf("failed to register serial: %w", err)
	}

	// 旧缓存条目可能还指向之前的序列号
	if s.cache != nil {
		s.cache.Invalidate(ctx, deviceMac)
	}

	updated, err := s.records.BackfillSerial(ctx, deviceMac, serial)
	if err != nil {
		// 回填失败不影响注册本身
		s.logger.Warn("serial backfill failed",
			zap.String("device_mac", deviceMac),
			zap.Error(err),
		)
		return 0, nil
	}

	s.logger.Info("device serial registered",
		zap.String("device_mac", deviceMac),
		zap.String("serial", serial),
		zap.Int64("updated_records", updated),
	)

	return updated, nil
}

// GetSerial 查询设备序列号，未登记返回空串
func (s *RegistryService) GetSerial(ctx context.Context, deviceMac string) (string, error) {
	return s.registry.Lookup(ctx, deviceMac)
}
