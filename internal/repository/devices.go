package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// DeviceRepository 设备仓库
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertSeen 收到遥测时更新设备在线状态
// 设备不存在时创建（默认名称、无所有者）；已存在时只刷新 last_seen_at 和 is_online，
// 并发消息按 last-write-wins 处理
func (r *DeviceRepository) UpsertSeen(ctx context.Context, deviceID string, seenAt time.Time) (*models.Device, error) {
	query := `
		INSERT INTO devices (device_id, device_name, owner_user_id, last_seen_at, is_online, created_at, updated_at)
		VALUES ($1, $2, NULL, $3, TRUE, NOW(), NOW())
		ON CONFLICT (device_id) DO UPDATE
		SET last_seen_at = EXCLUDED.last_seen_at,
		    is_online = TRUE,
		    updated_at = NOW()
		RETURNING device_id, device_name, owner_user_id, last_seen_at, is_online, created_at, updated_at
	`

	defaultName := fmt.Sprintf("Device %s", deviceID)

	device := &models.Device{}
	var owner sql.NullString
	var lastSeen sql.NullTime

	err := r.db.QueryRowContext(ctx, query, deviceID, defaultName, seenAt).Scan(
		&device.DeviceID,
		&device.Name,
		&owner,
		&lastSeen,
		&device.IsOnline,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device %s: %w", deviceID, err)
	}

	if owner.Valid {
		device.OwnerUserID = &owner.String
	}
	if lastSeen.Valid {
		device.LastSeenAt = &lastSeen.Time
	}

	return device, nil
}

// MarkOffline 将 last_seen_at 早于 cutoff 且当前在线的设备标记为离线
// 返回受影响的设备数；不修改 last_seen_at
func (r *DeviceRepository) MarkOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE devices
		SET is_online = FALSE,
		    updated_at = NOW()
		WHERE last_seen_at < $1
		  AND is_online = TRUE
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark devices offline: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected, nil
}

// GetDevice 根据设备ID获取设备
func (r *DeviceRepository) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `
		SELECT device_id, device_name, owner_user_id, last_seen_at, is_online, created_at, updated_at
		FROM devices
		WHERE device_id = $1
	`

	device := &models.Device{}
	var owner sql.NullString
	var lastSeen sql.NullTime

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.DeviceID,
		&device.Name,
		&owner,
		&lastSeen,
		&device.IsOnline,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("device not found: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	if owner.Valid {
		device.OwnerUserID = &owner.String
	}
	if lastSeen.Valid {
		device.LastSeenAt = &lastSeen.Time
	}

	return device, nil
}

// ListDevices 列出全部设备
func (r *DeviceRepository) ListDevices(ctx context.Context) ([]models.Device, error) {
	query := `
		SELECT device_id, device_name, owner_user_id, last_seen_at, is_online, created_at, updated_at
		FROM devices
		ORDER BY device_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var device models.Device
		var owner sql.NullString
		var lastSeen sql.NullTime

		if err := rows.Scan(
			&device.DeviceID,
			&device.Name,
			&owner,
			&lastSeen,
			&device.IsOnline,
			&device.CreatedAt,
			&device.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}

		if owner.Valid {
			device.OwnerUserID = &owner.String
		}
		if lastSeen.Valid {
			device.LastSeenAt = &lastSeen.Time
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device rows: %w", err)
	}

	return devices, nil
}
