package models

import "time"

// MeasurementSession 一次完整的测量会话（由接触开始/结束界定）
// 每个平均值在该指标整个会话内无观测时为 nil，不报 0
type MeasurementSession struct {
	SessionID      string    `json:"id"`
	DeviceID       string    `json:"deviceId"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
	DurationSec    int       `json:"durationSec"`
	AvgHR          *float64  `json:"avgHr,omitempty"`
	AvgSpO2        *float64  `json:"avgSpo2,omitempty"`
	AvgBodyTemp    *float64  `json:"avgBodyTemp,omitempty"`
	AvgAmbientTemp *float64  `json:"avgAmbientTemp,omitempty"`
	SampleCount    int       `json:"sampleCount"`
	CreatedAt      time.Time `json:"createdAt"`
}
