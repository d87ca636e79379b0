package registry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SerialLookup 登记表查询（repository.DeviceRegistryRepository 实现）
type SerialLookup interface {
	Lookup(ctx context.Context, deviceMac string) (string, error)
}

// Resolver mac → 序列号解析器：Redis 读穿缓存 + Postgres 登记表。
// 入库热路径用，任何一层读失败都按"未登记"处理，事件入库不因此中断。
type Resolver struct {
	store  SerialLookup
	cache  KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewResolver 创建解析器
func NewResolver(store SerialLookup, cache KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cache,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Resolve 返回设备序列号；未登记（或读失败）返回空串
func (r *Resolver) Resolve(ctx context.Context, deviceMac string) string {
	key := r.prefix + deviceMac

	serial, err := r.cache.Get(ctx, key)
	if err == nil {
		return serial
	}
	if err != ErrCacheMiss {
		r.logger.Warn("serial cache read failed",
			zap.String("device_mac", deviceMac),
			zap.Error(err))
	}

	serial, err = r.store.Lookup(ctx, deviceMac)
	if err != nil {
		// 读失败按未登记处理，serial 留空
		r.logger.Warn("serial lookup failed, treating as unregistered",
			zap.String("device_mac", deviceMac),
			zap.Error(err))
		return ""
	}

	// 只缓存命中的序列号，未登记的设备下次再查
	if serial != "" {
		if err := r.cache.Set(ctx, key, serial, r.ttl); err != nil {
			r.logger.Warn("serial cache write failed",
				zap.String("device_mac", deviceMac),
				zap.Error(err))
		}
	}

	return serial
}

// Invalidate 登记变更后清掉该 mac 的缓存
func (r *Resolver) Invalidate(ctx context.Context, deviceMac string) {
	key := r.prefix + deviceMac
	if err := r.cache.Del(ctx, key); err != nil {
		r.logger.Warn("serial cache invalidate failed",
			zap.String("device_mac", deviceMac),
			zap.Error(err))
	}
}
