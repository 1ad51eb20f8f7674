package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_MarkBreached(t *testing.T) {
	s := NewStateStore()
	key := StateKey("rule-1", "dev-001")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	// 首次突破设置起点
	start := s.MarkBreached(key, t0)
	assert.Equal(t, t0, start)

	// 持续突破保留原起点
	start = s.MarkBreached(key, t0.Add(10*time.Second))
	assert.Equal(t, t0, start)

	// 清除后重新计时
	s.ClearBreachStart(key)
	start = s.MarkBreached(key, t0.Add(20*time.Second))
	assert.Equal(t, t0.Add(20*time.Second), start)
}

func TestStateStore_MarkTriggered(t *testing.T) {
	s := NewStateStore()
	key := StateKey("rule-1", "dev-001")
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	assert.Nil(t, s.Get(key).LastTriggered)

	s.MarkTriggered(key, t0)
	got := s.Get(key).LastTriggered
	require.NotNil(t, got)
	assert.Equal(t, t0, *got)
}

func TestStateStore_KeysAreIndependent(t *testing.T) {
	s := NewStateStore()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	s.MarkBreached(StateKey("rule-1", "dev-001"), t0)
	assert.Nil(t, s.Get(StateKey("rule-1", "dev-002")).BreachStart)
	assert.Nil(t, s.Get(StateKey("rule-2", "dev-001")).BreachStart)
}

func TestStateStore_Prune(t *testing.T) {
	s := NewStateStore()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	s.MarkBreached(StateKey("rule-1", "dev-001"), t0)
	s.MarkBreached(StateKey("rule-1", "dev-002"), t0)
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 0, s.Prune(time.Hour))
	assert.Equal(t, 2, s.Prune(-time.Second))
	assert.Equal(t, 0, s.Len())
}
