package evaluator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// RuleSource 规则来源（由报警规则仓库实现）
type RuleSource interface {
	FindEnabledRules(ctx context.Context, ownerUserID string) ([]models.AlertRule, error)
}

// Evaluator 报警评估器
// 对每个 (规则, 设备) 对维护独立的迟滞状态：
// 突破需要持续 durationSec 才触发，触发后 cooldownSec 内抑制重复触发
type Evaluator struct {
	rules  RuleSource
	states *StateStore
	logger *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(rules RuleSource, states *StateStore, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		rules:  rules,
		states: states,
		logger: logger,
	}
}

// Evaluate 用一条测量评估设备所有者的全部启用规则，返回本次触发的事件
// 返回的事件已计入冷却状态，由调用方负责持久化和广播
func (e *Evaluator) Evaluate(ctx context.Context, device *models.Device, m *models.Measurement) ([]models.AlertEvent, error) {
	if device.OwnerUserID == nil {
		// 无主设备没有可适用的规则
		return nil, nil
	}

	rules, err := e.rules.FindEnabledRules(ctx, *device.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	var events []models.AlertEvent
	for _, rule := range rules {
		// 规则的 DeviceID 为 nil 时适用于所有者的全部设备
		if rule.DeviceID != nil && *rule.DeviceID != m.DeviceID {
			continue
		}

		// 指标缺失则跳过此规则，既不推进也不重置其状态
		valuePtr := rule.Metric.ValueOf(m)
		if valuePtr == nil {
			continue
		}
		value := *valuePtr

		key := StateKey(rule.RuleID, m.DeviceID)

		if !IsBreached(value, rule.Operator, rule.Threshold) {
			e.states.ClearBreachStart(key)
			continue
		}

		breachStart := e.states.MarkBreached(key, m.Timestamp)

		duration := durationFromSec(rule.DurationSec)
		if m.Timestamp.Sub(breachStart) < duration {
			// 突破尚未持续足够长
			continue
		}

		state := e.states.Get(key)
		cooldown := durationFromSec(rule.CooldownSec)
		if state.LastTriggered != nil && m.Timestamp.Sub(*state.LastTriggered) < cooldown {
			// 冷却期内，抑制但不重置状态
			continue
		}

		event := models.AlertEvent{
			EventID:      uuid.NewString(),
			UserID:       rule.UserID,
			DeviceID:     m.DeviceID,
			RuleID:       rule.RuleID,
			Timestamp:    m.Timestamp,
			Metric:       rule.Metric,
			Value:        value,
			Threshold:    rule.Threshold,
			Message:      buildMessage(rule),
			Acknowledged: false,
			CreatedAt:    time.Now(),
		}
		events = append(events, event)
		e.states.MarkTriggered(key, m.Timestamp)

		e.logger.Info("Alert rule triggered",
			zap.String("rule_id", rule.RuleID),
			zap.String("device_id", m.DeviceID),
			zap.String("metric", string(rule.Metric)),
			zap.Float64("value", value),
			zap.Float64("threshold", rule.Threshold),
		)
	}

	return events, nil
}

func buildMessage(rule models.AlertRule) string {
	return fmt.Sprintf("Rule triggered: %s %s %s",
		rule.Metric,
		rule.Operator,
		strconv.FormatFloat(rule.Threshold, 'f', -1, 64),
	)
}

// durationFromSec 负数按 0 处理（0 表示无持续/冷却要求）
func durationFromSec(sec int) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}
