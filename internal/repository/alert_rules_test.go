package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpulse/internal/models"
)

func TestAlertRuleRepository_FindEnabledRules(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewAlertRuleRepository(db, zap.NewNop())
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"rule_id", "user_id", "device_id", "enabled", "metric", "operator", "threshold", "duration_sec", "cooldown_sec", "created_at",
	}).
		AddRow("rule-1", "user-1", "dev-001", true, "hr", ">", 100.0, 10, 60, now).
		AddRow("rule-2", "user-1", nil, true, "spo2", "<", 92.0, 0, 300, now)

	mock.ExpectQuery("SELECT rule_id, user_id").
		WithArgs("user-1").
		WillReturnRows(rows)

	rules, err := repo.FindEnabledRules(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "rule-1", rules[0].RuleID)
	require.NotNil(t, rules[0].DeviceID)
	assert.Equal(t, "dev-001", *rules[0].DeviceID)
	assert.Equal(t, models.MetricHeartRate, rules[0].Metric)
	assert.Equal(t, models.OpGreater, rules[0].Operator)
	assert.Equal(t, 100.0, rules[0].Threshold)

	// device_id 为 NULL 的规则适用于全部设备
	assert.Nil(t, rules[1].DeviceID)
	assert.Equal(t, models.MetricSpO2, rules[1].Metric)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRuleRepository_FindEnabledRulesEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewAlertRuleRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT rule_id, user_id").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{
			"rule_id", "user_id", "device_id", "enabled", "metric", "operator", "threshold", "duration_sec", "cooldown_sec", "created_at",
		}))

	rules, err := repo.FindEnabledRules(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Empty(t, rules)

	assert.NoError(t, mock.ExpectationsWereMet())
}
