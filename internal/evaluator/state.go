package evaluator

import (
	"fmt"
	"sync"
	"time"
)

// RuleState 单个 (规则, 设备) 对的迟滞状态快照
type RuleState struct {
	BreachStart   *time.Time
	LastTriggered *time.Time
}

type ruleState struct {
	breachStart   *time.Time
	lastTriggered *time.Time
	touchedAt     time.Time
}

// StateStore 按 "ruleId:deviceId" 键保存迟滞状态
// 条目在首次评估时惰性创建，由周期性 Prune 清除长期未评估的键
type StateStore struct {
	mu     sync.Mutex
	states map[string]*ruleState
}

// NewStateStore 创建状态存储
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]*ruleState),
	}
}

// StateKey 构建状态键
func StateKey(ruleID, deviceID string) string {
	return fmt.Sprintf("%s:%s", ruleID, deviceID)
}

func (s *StateStore) get(key string) *ruleState {
	st, ok := s.states[key]
	if !ok {
		st = &ruleState{}
		s.states[key] = st
	}
	st.touchedAt = time.Now()
	return st
}

// Get 读取状态快照
func (s *StateStore) Get(key string) RuleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(key)
	return RuleState{
		BreachStart:   st.breachStart,
		LastTriggered: st.lastTriggered,
	}
}

// ClearBreachStart 清除持续突破起点（重置持续时长计时）
func (s *StateStore) ClearBreachStart(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(key).breachStart = nil
}

// MarkBreached 记录突破：起点未设置时设为 ts，返回生效的起点
func (s *StateStore) MarkBreached(key string, ts time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(key)
	if st.breachStart == nil {
		st.breachStart = &ts
	}
	return *st.breachStart
}

// MarkTriggered 记录最近一次触发时间（冷却计时起点）
func (s *StateStore) MarkTriggered(key string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(key).lastTriggered = &ts
}

// Len 当前状态条目数
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.states)
}

// Prune 清除超过 maxIdle 未评估的状态条目，返回清除数量
func (s *StateStore) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, st := range s.states {
		if st.touchedAt.Before(cutoff) {
			delete(s.states, key)
			removed++
		}
	}
	return removed
}
