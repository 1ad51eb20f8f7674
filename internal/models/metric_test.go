package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricValid(t *testing.T) {
	for _, metric := range Metrics {
		assert.True(t, metric.Valid(), string(metric))
	}
	assert.False(t, Metric("pulse").Valid())
}

func TestMetricValueOf(t *testing.T) {
	hr, spo2 := 72.0, 97.0
	m := &Measurement{HR: &hr, SpO2: &spo2}

	got := MetricHeartRate.ValueOf(m)
	require.NotNil(t, got)
	assert.Equal(t, 72.0, *got)

	assert.Nil(t, MetricBodyTemp.ValueOf(m))
	assert.Nil(t, Metric("pulse").ValueOf(m))
}

func TestOperatorValid(t *testing.T) {
	for _, op := range []Operator{OpLess, OpLessEqual, OpGreater, OpGreaterEqual} {
		assert.True(t, op.Valid(), string(op))
	}
	assert.False(t, Operator("!=").Valid())
}

func TestMeasurementHasContact(t *testing.T) {
	yes, no := true, false
	assert.True(t, (&Measurement{Contact: &yes}).HasContact())
	assert.False(t, (&Measurement{Contact: &no}).HasContact())
	assert.False(t, (&Measurement{}).HasContact())
}
