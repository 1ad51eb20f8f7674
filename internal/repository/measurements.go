package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpulse/internal/models"
)

const (
	defaultQueryLimit = 200
	maxQueryLimit     = 1000
)

// MeasurementRepository 测量记录仓库
// 降采样启用时这里只落聚合记录，原始样本不直接持久化
type MeasurementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMeasurementRepository 创建测量记录仓库
func NewMeasurementRepository(db *sql.DB, logger *zap.Logger) *MeasurementRepository {
	return &MeasurementRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 插入一条测量记录（可能是聚合记录，窗口标注随行存储）
func (r *MeasurementRepository) Insert(ctx context.Context, m *models.Measurement) error {
	query := `
		INSERT INTO measurements (
			device_id,
			ts,
			hr,
			spo2,
			body_temp,
			ambient_temp,
			contact,
			sample_count,
			window_start,
			window_end,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	var sampleCount sql.NullInt64
	var windowStart, windowEnd sql.NullTime
	if m.Window != nil {
		sampleCount = sql.NullInt64{Int64: int64(m.Window.SampleCount), Valid: true}
		windowStart = sql.NullTime{Time: m.Window.Start, Valid: true}
		windowEnd = sql.NullTime{Time: m.Window.End, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		m.DeviceID,
		m.Timestamp,
		nullFloat(m.HR),
		nullFloat(m.SpO2),
		nullFloat(m.BodyTemp),
		nullFloat(m.AmbientTemp),
		nullBool(m.Contact),
		sampleCount,
		windowStart,
		windowEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}

	return nil
}

// MeasurementFilter 测量查询条件
type MeasurementFilter struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// List 按时间倒序查询测量记录（limit 默认 200，上限 1000）
func (r *MeasurementRepository) List(ctx context.Context, filter MeasurementFilter) ([]models.Measurement, error) {
	query := `
		SELECT device_id, ts, hr, spo2, body_temp, ambient_temp, contact, sample_count, window_start, window_end
		FROM measurements
		WHERE device_id = $1
	`
	args := []interface{}{filter.DeviceID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}

	args = append(args, clampLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var results []models.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurement rows: %w", err)
	}

	return results, nil
}

// Latest 设备最新一条测量记录
func (r *MeasurementRepository) Latest(ctx context.Context, deviceID string) (*models.Measurement, error) {
	query := `
		SELECT device_id, ts, hr, spo2, body_temp, ambient_temp, contact, sample_count, window_start, window_end
		FROM measurements
		WHERE device_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, deviceID)
	m, err := scanMeasurement(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no measurements for device: %s", deviceID)
		}
		return nil, err
	}

	return m, nil
}

func scanMeasurement(scan func(dest ...interface{}) error) (*models.Measurement, error) {
	m := &models.Measurement{}
	var hr, spo2, bodyTemp, ambientTemp sql.NullFloat64
	var contact sql.NullBool
	var sampleCount sql.NullInt64
	var windowStart, windowEnd sql.NullTime

	err := scan(
		&m.DeviceID,
		&m.Timestamp,
		&hr,
		&spo2,
		&bodyTemp,
		&ambientTemp,
		&contact,
		&sampleCount,
		&windowStart,
		&windowEnd,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan measurement row: %w", err)
	}

	if hr.Valid {
		m.HR = &hr.Float64
	}
	if spo2.Valid {
		m.SpO2 = &spo2.Float64
	}
	if bodyTemp.Valid {
		m.BodyTemp = &bodyTemp.Float64
	}
	if ambientTemp.Valid {
		m.AmbientTemp = &ambientTemp.Float64
	}
	if contact.Valid {
		m.Contact = &contact.Bool
	}
	if sampleCount.Valid && windowStart.Valid && windowEnd.Valid {
		m.Window = &models.AggregateWindow{
			SampleCount: int(sampleCount.Int64),
			Start:       windowStart.Time,
			End:         windowEnd.Time,
		}
	}

	return m, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
