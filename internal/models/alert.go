package models

import "time"

// Operator 阈值比较运算符
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// Valid 是否为已知运算符
func (o Operator) Valid() bool {
	switch o {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// AlertRule 报警规则
// DeviceID 为 nil 表示规则适用于该用户的全部设备
type AlertRule struct {
	RuleID      string    `json:"id"`
	UserID      string    `json:"userId"`
	DeviceID    *string   `json:"deviceId,omitempty"`
	Enabled     bool      `json:"enabled"`
	Metric      Metric    `json:"metric"`
	Operator    Operator  `json:"operator"`
	Threshold   float64   `json:"threshold"`
	DurationSec int       `json:"durationSec"`
	CooldownSec int       `json:"cooldownSec"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AlertEvent 报警事件
// Acknowledged 只由外部确认操作修改，评估器永远写入 false
type AlertEvent struct {
	EventID      string    `json:"id"`
	UserID       string    `json:"userId"`
	DeviceID     string    `json:"deviceId"`
	RuleID       string    `json:"ruleId"`
	Timestamp    time.Time `json:"ts"`
	Metric       Metric    `json:"metric"`
	Value        float64   `json:"value"`
	Threshold    float64   `json:"threshold"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"createdAt"`
}
