package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// DeviceRegistryRepository 设备登记仓库（mac → 序列号）
type DeviceRegistryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRegistryRepository 创建设备登记仓库
func NewDeviceRegistryRepository(db *sql.DB, logger *zap.Logger) *DeviceRegistryRepository {
	return &DeviceRegistryRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert 幂等登记，mac 为唯一键，重复登记只覆盖序列号
func (r *DeviceRegistryRepository) Upsert(ctx context.Context, deviceMac, serial string) error {
	if deviceMac == "" {
		return fmt.Errorf("device_mac is required")
	}
	if serial == "" {
		return fmt.Errorf("serial is required")
	}

	query := `
		INSERT INTO device_registry (device_mac, serial, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (device_mac)
		DO UPDATE SET serial = EXCLUDED.serial,
		              updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query, deviceMac, serial); err != nil {
		return fmt.Errorf("failed to upsert device registration: %w", err)
	}

	return nil
}

// Lookup 查序列号。未登记返回空串，不算错误（登记表里不存在空序列号）。
func (r *DeviceRegistryRepository) Lookup(ctx context.Context, deviceMac string) (string, error) {
	if deviceMac == "" {
		return "", fmt.Errorf("device_mac is required")
	}

	var serial string
	err := r.db.QueryRowContext(ctx,
		`SELECT serial FROM device_registry WHERE device_mac = $1`,
		deviceMac,
	).Scan(&serial)

	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil // 未登记
		}
		return "", fmt.Errorf("failed to lookup device serial: %w", err)
	}

	return serial, nil
}
