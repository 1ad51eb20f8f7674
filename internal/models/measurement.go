package models

import "time"

// Measurement 规范化后的单条遥测记录（归一化后不可变）
// 每个指标都可能单独缺失（传感器掉线属于正常情况），用指针区分"缺失"和"零值"
type Measurement struct {
	DeviceID    string    `json:"deviceId"`
	Timestamp   time.Time `json:"ts"`
	HR          *float64  `json:"hr,omitempty"`
	SpO2        *float64  `json:"spo2,omitempty"`
	BodyTemp    *float64  `json:"bodyTemp,omitempty"`
	AmbientTemp *float64  `json:"ambientTemp,omitempty"`
	Contact     *bool     `json:"contact,omitempty"`

	// Window 仅在降采样聚合记录上存在，标注聚合窗口信息
	Window *AggregateWindow `json:"window,omitempty"`
}

// AggregateWindow 降采样窗口标注
type AggregateWindow struct {
	SampleCount int       `json:"sampleCount"`
	Start       time.Time `json:"windowStart"`
	End         time.Time `json:"windowEnd"`
}

// HasContact contact 标志是否为 true（缺失视为 false）
func (m *Measurement) HasContact() bool {
	return m.Contact != nil && *m.Contact
}
