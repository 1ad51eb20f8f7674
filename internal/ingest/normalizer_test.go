package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("complete payload", func(t *testing.T) {
		payload := []byte(`{"ts":"2026-08-30T10:00:00Z","hr":72,"spo2":97,"bodyTemp":36.6,"ambientTemp":22.4,"contact":true}`)

		m, err := Normalize("dev-001", payload)
		require.NoError(t, err)

		assert.Equal(t, "dev-001", m.DeviceID)
		assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), m.Timestamp)
		require.NotNil(t, m.HR)
		assert.Equal(t, 72.0, *m.HR)
		require.NotNil(t, m.SpO2)
		assert.Equal(t, 97.0, *m.SpO2)
		require.NotNil(t, m.BodyTemp)
		assert.Equal(t, 36.6, *m.BodyTemp)
		require.NotNil(t, m.AmbientTemp)
		assert.Equal(t, 22.4, *m.AmbientTemp)
		require.NotNil(t, m.Contact)
		assert.True(t, *m.Contact)
	})

	t.Run("contact is optional", func(t *testing.T) {
		payload := []byte(`{"ts":"2026-08-30T10:00:00Z","hr":72,"spo2":97,"bodyTemp":36.6,"ambientTemp":22.4}`)

		m, err := Normalize("dev-001", payload)
		require.NoError(t, err)
		assert.Nil(t, m.Contact)
		assert.False(t, m.HasContact())
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := Normalize("dev-001", []byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("rejects missing ts", func(t *testing.T) {
		payload := []byte(`{"hr":72,"spo2":97,"bodyTemp":36.6,"ambientTemp":22.4}`)
		_, err := Normalize("dev-001", payload)
		assert.ErrorContains(t, err, "ts")
	})

	t.Run("rejects non-RFC3339 ts", func(t *testing.T) {
		payload := []byte(`{"ts":"2026-08-30 10:00:00","hr":72,"spo2":97,"bodyTemp":36.6,"ambientTemp":22.4}`)
		_, err := Normalize("dev-001", payload)
		assert.Error(t, err)
	})

	t.Run("rejects missing metric", func(t *testing.T) {
		payload := []byte(`{"ts":"2026-08-30T10:00:00Z","hr":72,"spo2":97,"bodyTemp":36.6}`)
		_, err := Normalize("dev-001", payload)
		assert.ErrorContains(t, err, "ambientTemp")
	})

	t.Run("rejects non-numeric metric", func(t *testing.T) {
		payload := []byte(`{"ts":"2026-08-30T10:00:00Z","hr":"fast","spo2":97,"bodyTemp":36.6,"ambientTemp":22.4}`)
		_, err := Normalize("dev-001", payload)
		assert.Error(t, err)
	})
}
