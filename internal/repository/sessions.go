package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// SessionRepository 测量会话仓库
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository 创建测量会话仓库
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 插入一条已完成的测量会话
func (r *SessionRepository) Insert(ctx context.Context, s *models.MeasurementSession) error {
	query := `
		INSERT INTO measurement_sessions (
			session_id,
			device_id,
			started_at,
			ended_at,
			duration_sec,
			avg_hr,
			avg_spo2,
			avg_body_temp,
			avg_ambient_temp,
			sample_count,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		s.SessionID,
		s.DeviceID,
		s.StartedAt,
		s.EndedAt,
		s.DurationSec,
		nullFloat(s.AvgHR),
		nullFloat(s.AvgSpO2),
		nullFloat(s.AvgBodyTemp),
		nullFloat(s.AvgAmbientTemp),
		s.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement session: %w", err)
	}

	return nil
}

// SessionFilter 会话查询条件
// 时间范围按与 [from, to] 有重叠过滤：ended_at >= from 且 started_at <= to
type SessionFilter struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// List 按开始时间倒序查询会话
func (r *SessionRepository) List(ctx context.Context, filter SessionFilter) ([]models.MeasurementSession, error) {
	query := `
		SELECT session_id, device_id, started_at, ended_at, duration_sec,
		       avg_hr, avg_spo2, avg_body_temp, avg_ambient_temp, sample_count, created_at
		FROM measurement_sessions
		WHERE device_id = $1
	`
	args := []interface{}{filter.DeviceID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND ended_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND started_at <= $%d", len(args))
	}

	args = append(args, clampLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var results []models.MeasurementSession
	for rows.Next() {
		var s models.MeasurementSession
		var avgHR, avgSpO2, avgBodyTemp, avgAmbientTemp sql.NullFloat64

		if err := rows.Scan(
			&s.SessionID,
			&s.DeviceID,
			&s.StartedAt,
			&s.EndedAt,
			&s.DurationSec,
			&avgHR,
			&avgSpO2,
			&avgBodyTemp,
			&avgAmbientTemp,
			&s.SampleCount,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		if avgHR.Valid {
			s.AvgHR = &avgHR.Float64
		}
		if avgSpO2.Valid {
			s.AvgSpO2 = &avgSpO2.Float64
		}
		if avgBodyTemp.Valid {
			s.AvgBodyTemp = &avgBodyTemp.Float64
		}
		if avgAmbientTemp.Valid {
			s.AvgAmbientTemp = &avgAmbientTemp.Float64
		}

		results = append(results, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	return results, nil
}
