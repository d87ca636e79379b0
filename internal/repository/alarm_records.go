package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alarmtrail/internal/models"
)

// ErrInvalidQuery 过滤查询必须至少带一个过滤条件。
// 定义在 repository（过滤条件类型所在包），service 与 httpapi 共用同一哨兵值。
var ErrInvalidQuery = errors.New("invalid query: at least one filter is required")

// AlarmRecordsRepository 报警记录仓库
type AlarmRecordsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmRecordsRepository 创建报警记录仓库
func NewAlarmRecordsRepository(db *sql.DB, logger *zap.Logger) *AlarmRecordsRepository {
	return &AlarmRecordsRepository{
		db:     db,
		logger: logger,
	}
}

// AlarmRecordFilters 报警记录过滤条件（nil 表示未设置）
type AlarmRecordFilters struct {
	DeviceMac *string // 模糊匹配，不区分大小写
	DeviceIp  *string // 精确匹配
	Active    *bool   // 精确匹配
}

// Empty 三个条件都未设置
func (f AlarmRecordFilters) Empty() bool {
	return f.DeviceMac == nil && f.DeviceIp == nil && f.Active == nil
}

const insertRecordQuery = `
	INSERT INTO alarm_records (
		id, started_at, stopped_at, device_mac, device_ip, code, active, serial
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const closeActiveQuery = `
	UPDATE alarm_records
	SET active = FALSE, stopped_at = $1
	WHERE device_mac = $2 AND device_ip = $3 AND active = TRUE
`

// LogTransition 关闭该设备（mac+ip）所有 active 记录并插入新记录，两步在同一事务内。
// 关闭是一条条件批量 UPDATE，不做读-改-写，避免与并发事件竞争丢更新；
// RAISE 靠它维持"任一时刻每设备至多一条 active 记录"，CLEAR 靠它把清除本身也记一行。
// 返回被关闭的记录数。
func (r *AlarmRecordsRepository) LogTransition(ctx context.Context, rec *models.AlarmRecord, closedAt time.Time) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("record is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, closeActiveQuery, closedAt, rec.DeviceMac, rec.DeviceIp)
	if err != nil {
		return 0, fmt.Errorf("failed to close active alarm records: %w", err)
	}
	closed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	_, err = tx.ExecContext(ctx, insertRecordQuery,
		rec.ID, rec.StartedAt, rec.StoppedAt, rec.DeviceMac, rec.DeviceIp, rec.Code, rec.Active, rec.Serial,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alarm record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit alarm transition: %w", err)
	}

	return closed, nil
}

// ListRecords 列表查询，按 started_at 降序。
// notBefore 之前开始的记录一律不可见（保留窗口在查询侧兜底，清理协程有扫描间隔）。
// size <= 0 表示不分页，返回全部。
func (r *AlarmRecordsRepository) ListRecords(ctx context.Context, filters AlarmRecordFilters, notBefore time.Time, page, size int) ([]*models.AlarmRecord, int, error) {
	args := []interface{}{notBefore}
	argN := 2
	where := []string{"started_at >= $1"}

	if filters.DeviceMac != nil {
		where = append(where, fmt.Sprintf("device_mac ILIKE $%d", argN))
		args = append(args, "%"+*filters.DeviceMac+"%")
		argN++
	}
	if filters.DeviceIp != nil {
		where = append(where, fmt.Sprintf("device_ip = $%d", argN))
		args = append(args, *filters.DeviceIp)
		argN++
	}
	if filters.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", argN))
		args = append(args, *filters.Active)
		argN++
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM alarm_records
		%s
	`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alarm records: %w", err)
	}

	limitClause := ""
	if size > 0 {
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * size
		limitClause = fmt.Sprintf("LIMIT $%d OFFSET $%d", argN, argN+1)
		args = append(args, size, offset)
	}

	query := fmt.Sprintf(`
		SELECT id, started_at, stopped_at, device_mac, device_ip, code, active, serial
		FROM alarm_records
		%s
		ORDER BY started_at DESC
		%s
	`, whereClause, limitClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alarm records: %w", err)
	}
	defer rows.Close()

	records := []*models.AlarmRecord{}
	for rows.Next() {
		var rec models.AlarmRecord
		var stoppedAt sql.NullTime
		var serial sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.StartedAt,
			&stoppedAt,
			&rec.DeviceMac,
			&rec.DeviceIp,
			&rec.Code,
			&rec.Active,
			&serial,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alarm record: %w", err)
		}

		// 处理可空字段
		if stoppedAt.Valid {
			rec.StoppedAt = &stoppedAt.Time
		}
		if serial.Valid {
			rec.Serial = &serial.String
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alarm records: %w", err)
	}

	return records, total, nil
}

// BackfillSerial 把序列号回填到该 mac 的全部既有记录上。
// 返回匹配的记录数（每次调用都返回匹配数，不是"新改动"数）。
func (r *AlarmRecordsRepository) BackfillSerial(ctx context.Context, deviceMac, serial string) (int64, error) {
	if deviceMac == "" {
		return 0, fmt.Errorf("device_mac is required")
	}

	query := `
		UPDATE alarm_records
		SET serial = $1
		WHERE device_mac = $2
	`

	result, err := r.db.ExecContext(ctx, query, serial, deviceMac)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill serial: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return updated, nil
}

// DeleteExpired 删除 notBefore 之前开始的记录（active 与否都删），返回删除数
func (r *AlarmRecordsRepository) DeleteExpired(ctx context.Context, notBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alarm_records WHERE started_at < $1`, notBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired alarm records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
