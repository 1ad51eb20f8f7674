package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// AlertEventRepository 报警事件仓库
type AlertEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventRepository 创建报警事件仓库
func NewAlertEventRepository(db *sql.DB, logger *zap.Logger) *AlertEventRepository {
	return &AlertEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 插入一条报警事件
func (r *AlertEventRepository) Insert(ctx context.Context, e *models.AlertEvent) error {
	query := `
		INSERT INTO alert_events (
			event_id,
			user_id,
			device_id,
			rule_id,
			ts,
			metric,
			metric_value,
			threshold,
			message,
			acknowledged,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		e.EventID,
		e.UserID,
		e.DeviceID,
		e.RuleID,
		e.Timestamp,
		string(e.Metric),
		e.Value,
		e.Threshold,
		e.Message,
		e.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	return nil
}

// AlertEventFilter 报警事件查询条件
type AlertEventFilter struct {
	DeviceID *string
	UserID   *string
	From     *time.Time
	To       *time.Time
}

// List 按触发时间倒序查询报警事件（最多 200 条）
func (r *AlertEventRepository) List(ctx context.Context, filter AlertEventFilter) ([]models.AlertEvent, error) {
	query := `
		SELECT event_id, user_id, device_id, rule_id, ts, metric, metric_value, threshold, message, acknowledged, created_at
		FROM alert_events
		WHERE 1=1
	`
	var args []interface{}

	if filter.DeviceID != nil {
		args = append(args, *filter.DeviceID)
		query += fmt.Sprintf(" AND device_id = $%d", len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}

	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT %d", defaultQueryLimit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var e models.AlertEvent
		if err := rows.Scan(
			&e.EventID,
			&e.UserID,
			&e.DeviceID,
			&e.RuleID,
			&e.Timestamp,
			&e.Metric,
			&e.Value,
			&e.Threshold,
			&e.Message,
			&e.Acknowledged,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert event rows: %w", err)
	}

	return events, nil
}

// Acknowledge 确认报警事件
func (r *AlertEventRepository) Acknowledge(ctx context.Context, eventID string) error {
	query := `
		UPDATE alert_events
		SET acknowledged = TRUE
		WHERE event_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert event not found: %s", eventID)
	}

	return nil
}
