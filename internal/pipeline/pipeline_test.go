package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpulse/internal/evaluator"
	"healthpulse/internal/ingest"
	"healthpulse/internal/models"
)

type fakeDeviceStore struct {
	device *models.Device
	err    error
	seen   []time.Time
}

func (f *fakeDeviceStore) UpsertSeen(ctx context.Context, deviceID string, seenAt time.Time) (*models.Device, error) {
	f.seen = append(f.seen, seenAt)
	return f.device, f.err
}

type fakeMeasurementStore struct {
	inserted []*models.Measurement
	err      error
}

func (f *fakeMeasurementStore) Insert(ctx context.Context, m *models.Measurement) error {
	f.inserted = append(f.inserted, m)
	return f.err
}

type fakeSessionStore struct {
	inserted []*models.MeasurementSession
}

func (f *fakeSessionStore) Insert(ctx context.Context, s *models.MeasurementSession) error {
	f.inserted = append(f.inserted, s)
	return nil
}

type fakeEventStore struct {
	inserted []*models.AlertEvent
	err      error
}

func (f *fakeEventStore) Insert(ctx context.Context, e *models.AlertEvent) error {
	f.inserted = append(f.inserted, e)
	return f.err
}

type fakeBroadcaster struct {
	telemetry []*models.Measurement
	alerts    []*models.AlertEvent
}

func (f *fakeBroadcaster) BroadcastTelemetry(ctx context.Context, device *models.Device, m *models.Measurement) {
	f.telemetry = append(f.telemetry, m)
}

func (f *fakeBroadcaster) BroadcastAlert(ctx context.Context, device *models.Device, e *models.AlertEvent) {
	f.alerts = append(f.alerts, e)
}

type fakeCache struct {
	latest []*models.Measurement
	err    error
}

func (f *fakeCache) SetLatest(ctx context.Context, m *models.Measurement) error {
	f.latest = append(f.latest, m)
	return f.err
}

type fakeRuleSource struct {
	rules []models.AlertRule
}

func (f *fakeRuleSource) FindEnabledRules(ctx context.Context, ownerUserID string) ([]models.AlertRule, error) {
	return f.rules, nil
}

type pipelineFixture struct {
	pipeline     *Pipeline
	devices      *fakeDeviceStore
	measurements *fakeMeasurementStore
	sessions     *fakeSessionStore
	events       *fakeEventStore
	broadcaster  *fakeBroadcaster
	cache        *fakeCache
}

func newPipelineFixture(rules []models.AlertRule, downsampleWindow time.Duration) *pipelineFixture {
	userID := "user-1"
	f := &pipelineFixture{
		devices: &fakeDeviceStore{device: &models.Device{
			DeviceID:    "dev-001",
			Name:        "Device dev-001",
			OwnerUserID: &userID,
			IsOnline:    true,
		}},
		measurements: &fakeMeasurementStore{},
		sessions:     &fakeSessionStore{},
		events:       &fakeEventStore{},
		broadcaster:  &fakeBroadcaster{},
		cache:        &fakeCache{},
	}

	eval := evaluator.NewEvaluator(&fakeRuleSource{rules: rules}, evaluator.NewStateStore(), zap.NewNop())
	f.pipeline = New(
		f.devices,
		f.measurements,
		f.sessions,
		f.events,
		f.cache,
		f.broadcaster,
		eval,
		ingest.NewDownsampler(downsampleWindow),
		ingest.NewSessionTracker(),
		zap.NewNop(),
	)
	return f
}

func telemetry(ts time.Time, hr float64, contact *bool) *models.Measurement {
	spo2, bodyTemp, ambientTemp := 97.0, 36.6, 22.0
	return &models.Measurement{
		DeviceID:    "dev-001",
		Timestamp:   ts,
		HR:          &hr,
		SpO2:        &spo2,
		BodyTemp:    &bodyTemp,
		AmbientTemp: &ambientTemp,
		Contact:     contact,
	}
}

func boolPtr(v bool) *bool { return &v }

func TestPipeline_ProcessHappyPath(t *testing.T) {
	f := newPipelineFixture(nil, 30*time.Second)
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 72, nil))

	// 在线状态、缓存和扇出总是发生；窗口未关闭时不落库
	require.Len(t, f.devices.seen, 1)
	assert.Equal(t, t0, f.devices.seen[0])
	assert.Len(t, f.cache.latest, 1)
	assert.Len(t, f.broadcaster.telemetry, 1)
	assert.Empty(t, f.measurements.inserted)
	assert.Empty(t, f.sessions.inserted)
	assert.Empty(t, f.events.inserted)
}

func TestPipeline_UpsertFailureStopsProcessing(t *testing.T) {
	f := newPipelineFixture(nil, 0)
	f.devices.err = errors.New("db down")
	f.devices.device = nil
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 72, nil))

	assert.Empty(t, f.cache.latest)
	assert.Empty(t, f.broadcaster.telemetry)
	assert.Empty(t, f.measurements.inserted)
}

func TestPipeline_CacheFailureDoesNotStopProcessing(t *testing.T) {
	f := newPipelineFixture(nil, 0)
	f.cache.err = errors.New("redis down")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 72, nil))

	assert.Len(t, f.broadcaster.telemetry, 1)
	// 降采样禁用时每条测量直接落库
	assert.Len(t, f.measurements.inserted, 1)
}

func TestPipeline_AlertPersistedAndBroadcast(t *testing.T) {
	rules := []models.AlertRule{{
		RuleID:    "rule-1",
		UserID:    "user-1",
		Enabled:   true,
		Metric:    models.MetricHeartRate,
		Operator:  models.OpGreater,
		Threshold: 100,
	}}
	f := newPipelineFixture(rules, 0)
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 110, nil))

	require.Len(t, f.events.inserted, 1)
	assert.Equal(t, "rule-1", f.events.inserted[0].RuleID)
	require.Len(t, f.broadcaster.alerts, 1)
	assert.Equal(t, f.events.inserted[0].EventID, f.broadcaster.alerts[0].EventID)
}

func TestPipeline_AlertInsertFailureStillBroadcasts(t *testing.T) {
	rules := []models.AlertRule{{
		RuleID:    "rule-1",
		UserID:    "user-1",
		Enabled:   true,
		Metric:    models.MetricHeartRate,
		Operator:  models.OpGreater,
		Threshold: 100,
		// 冷却下一条不再触发，事件按至多一次语义处理
		CooldownSec: 300,
	}}
	f := newPipelineFixture(rules, 0)
	f.events.err = errors.New("db down")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 110, nil))
	require.Len(t, f.broadcaster.alerts, 1)

	// 插入失败不回滚冷却状态，事件不会重复触发
	f.pipeline.Process(context.Background(), telemetry(t0.Add(time.Second), 111, nil))
	assert.Len(t, f.broadcaster.alerts, 1)
}

func TestPipeline_SessionClosePersisted(t *testing.T) {
	f := newPipelineFixture(nil, 30*time.Second)
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 70, boolPtr(true)))
	f.pipeline.Process(context.Background(), telemetry(t0.Add(10*time.Second), 74, boolPtr(true)))
	f.pipeline.Process(context.Background(), telemetry(t0.Add(20*time.Second), 72, boolPtr(false)))

	require.Len(t, f.sessions.inserted, 1)
	s := f.sessions.inserted[0]
	assert.Equal(t, 2, s.SampleCount)
	require.NotNil(t, s.AvgHR)
	assert.Equal(t, 72.0, *s.AvgHR)
}

func TestPipeline_DownsampleAggregatePersisted(t *testing.T) {
	f := newPipelineFixture(nil, 30*time.Second)
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	f.pipeline.Process(context.Background(), telemetry(t0, 60, nil))
	f.pipeline.Process(context.Background(), telemetry(t0.Add(10*time.Second), 62, nil))
	f.pipeline.Process(context.Background(), telemetry(t0.Add(20*time.Second), 64, nil))
	f.pipeline.Process(context.Background(), telemetry(t0.Add(30*time.Second), 70, nil))

	require.Len(t, f.measurements.inserted, 1)
	record := f.measurements.inserted[0]
	require.NotNil(t, record.HR)
	assert.InDelta(t, 62.0, *record.HR, 1e-9)
	require.NotNil(t, record.Window)
	assert.Equal(t, 3, record.Window.SampleCount)
}
