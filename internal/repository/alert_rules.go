package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// AlertRuleRepository 报警规则仓库
type AlertRuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRuleRepository 创建报警规则仓库
func NewAlertRuleRepository(db *sql.DB, logger *zap.Logger) *AlertRuleRepository {
	return &AlertRuleRepository{
		db:     db,
		logger: logger,
	}
}

// FindEnabledRules 查询用户全部启用的规则
// 规则与具体设备的匹配（device_id 为 NULL 适用全部设备）由评估器判断
func (r *AlertRuleRepository) FindEnabledRules(ctx context.Context, ownerUserID string) ([]models.AlertRule, error) {
	query := `
		SELECT rule_id, user_id, device_id, enabled, metric, operator, threshold, duration_sec, cooldown_sec, created_at
		FROM alert_rules
		WHERE user_id = $1
		  AND enabled = TRUE
	`

	rows, err := r.db.QueryContext(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AlertRule
	for rows.Next() {
		var rule models.AlertRule
		var deviceID sql.NullString

		if err := rows.Scan(
			&rule.RuleID,
			&rule.UserID,
			&deviceID,
			&rule.Enabled,
			&rule.Metric,
			&rule.Operator,
			&rule.Threshold,
			&rule.DurationSec,
			&rule.CooldownSec,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert rule row: %w", err)
		}

		if deviceID.Valid {
			rule.DeviceID = &deviceID.String
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rule rows: %w", err)
	}

	return rules, nil
}
