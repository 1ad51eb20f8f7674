package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpulse/internal/models"
)

type stubRuleSource struct {
	rules []models.AlertRule
	err   error
	calls int
}

func (s *stubRuleSource) FindEnabledRules(ctx context.Context, ownerUserID string) ([]models.AlertRule, error) {
	s.calls++
	return s.rules, s.err
}

func strPtr(v string) *string { return &v }

func ownedDevice(userID string) *models.Device {
	return &models.Device{DeviceID: "dev-001", Name: "Device dev-001", OwnerUserID: strPtr(userID)}
}

func hrMeasurement(deviceID string, ts time.Time, hr float64) *models.Measurement {
	return &models.Measurement{DeviceID: deviceID, Timestamp: ts, HR: &hr}
}

func hrRule(durationSec, cooldownSec int) models.AlertRule {
	return models.AlertRule{
		RuleID:      "rule-1",
		UserID:      "user-1",
		Enabled:     true,
		Metric:      models.MetricHeartRate,
		Operator:    models.OpGreater,
		Threshold:   100,
		DurationSec: durationSec,
		CooldownSec: cooldownSec,
	}
}

func TestEvaluator_DebounceAndCooldown(t *testing.T) {
	source := &stubRuleSource{rules: []models.AlertRule{hrRule(10, 60)}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	device := ownedDevice("user-1")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	// 突破开始，持续时长不足
	events, err := e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0, 110))
	require.NoError(t, err)
	assert.Empty(t, events)

	// 持续满 10 秒，触发一次
	events, err = e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0.Add(10*time.Second), 112))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "rule-1", events[0].RuleID)
	assert.Equal(t, "user-1", events[0].UserID)
	assert.Equal(t, "dev-001", events[0].DeviceID)
	assert.Equal(t, 112.0, events[0].Value)
	assert.Equal(t, 100.0, events[0].Threshold)
	assert.Equal(t, "Rule triggered: hr > 100", events[0].Message)
	assert.False(t, events[0].Acknowledged)

	// 冷却期内持续突破，抑制
	events, err = e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0.Add(11*time.Second), 113))
	require.NoError(t, err)
	assert.Empty(t, events)

	// 冷却期满，再次触发
	events, err = e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0.Add(70*time.Second), 114))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEvaluator_NonBreachResetsDebounce(t *testing.T) {
	source := &stubRuleSource{rules: []models.AlertRule{hrRule(10, 0)}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	device := ownedDevice("user-1")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	evaluate := func(offset time.Duration, hr float64) []models.AlertEvent {
		events, err := e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0.Add(offset), hr))
		require.NoError(t, err)
		return events
	}

	assert.Empty(t, evaluate(0, 110))
	// 回落清除突破起点
	assert.Empty(t, evaluate(5*time.Second, 90))
	// 重新突破后重新计时
	assert.Empty(t, evaluate(12*time.Second, 110))
	assert.Empty(t, evaluate(15*time.Second, 110))
	assert.Len(t, evaluate(22*time.Second, 110), 1)
}

func TestEvaluator_ZeroDurationFiresImmediately(t *testing.T) {
	source := &stubRuleSource{rules: []models.AlertRule{hrRule(0, 0)}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	device := ownedDevice("user-1")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	events, err := e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0, 110))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEvaluator_AbsentMetricLeavesStateUntouched(t *testing.T) {
	source := &stubRuleSource{rules: []models.AlertRule{hrRule(10, 0)}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	device := ownedDevice("user-1")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	events, err := e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0, 110))
	require.NoError(t, err)
	assert.Empty(t, events)

	// 指标缺失的测量不推进也不重置计时
	spo2 := 97.0
	events, err = e.Evaluate(context.Background(), device, &models.Measurement{
		DeviceID: "dev-001", Timestamp: t0.Add(5 * time.Second), SpO2: &spo2,
	})
	require.NoError(t, err)
	assert.Empty(t, events)

	// 突破起点仍是 t0，持续时长已满足
	events, err = e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0.Add(10*time.Second), 110))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEvaluator_WildcardRuleKeepsPerDeviceState(t *testing.T) {
	rule := hrRule(10, 0)
	rule.DeviceID = nil
	source := &stubRuleSource{rules: []models.AlertRule{rule}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	device1 := ownedDevice("user-1")
	device2 := &models.Device{DeviceID: "dev-002", Name: "Device dev-002", OwnerUserID: strPtr("user-1")}
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	// dev-001 先开始突破
	events, err := e.Evaluate(context.Background(), device1, hrMeasurement("dev-001", t0, 110))
	require.NoError(t, err)
	assert.Empty(t, events)

	// dev-002 刚开始突破，不受 dev-001 的计时影响
	events, err = e.Evaluate(context.Background(), device2, hrMeasurement("dev-002", t0.Add(10*time.Second), 110))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = e.Evaluate(context.Background(), device1, hrMeasurement("dev-001", t0.Add(10*time.Second), 110))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEvaluator_DeviceScopedRuleSkipsOtherDevices(t *testing.T) {
	rule := hrRule(0, 0)
	rule.DeviceID = strPtr("dev-999")
	source := &stubRuleSource{rules: []models.AlertRule{rule}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	events, err := e.Evaluate(context.Background(), ownedDevice("user-1"), hrMeasurement("dev-001", t0, 110))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEvaluator_UnownedDeviceSkipsRuleLookup(t *testing.T) {
	source := &stubRuleSource{rules: []models.AlertRule{hrRule(0, 0)}}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	device := &models.Device{DeviceID: "dev-001", Name: "Device dev-001"}
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	events, err := e.Evaluate(context.Background(), device, hrMeasurement("dev-001", t0, 110))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, source.calls)
}

func TestEvaluator_RuleLookupError(t *testing.T) {
	source := &stubRuleSource{err: errors.New("db down")}
	e := NewEvaluator(source, NewStateStore(), zap.NewNop())
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	_, err := e.Evaluate(context.Background(), ownedDevice("user-1"), hrMeasurement("dev-001", t0, 110))
	assert.Error(t, err)
}
