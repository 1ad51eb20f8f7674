package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"healthpulse/internal/models"
)

// telemetryPayload 入站遥测报文
// ts 和四个数值指标必填，contact 可选
type telemetryPayload struct {
	TS          string   `json:"ts"`
	HR          *float64 `json:"hr"`
	SpO2        *float64 `json:"spo2"`
	BodyTemp    *float64 `json:"bodyTemp"`
	AmbientTemp *float64 `json:"ambientTemp"`
	Contact     *bool    `json:"contact"`
}

// Normalize 校验原始报文并生成规范化测量记录
// 校验失败的报文由调用方记录日志后丢弃，绝不向管线传播
func Normalize(deviceID string, payload []byte) (*models.Measurement, error) {
	var p telemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid telemetry json: %w", err)
	}

	if p.TS == "" {
		return nil, fmt.Errorf("missing required field: ts")
	}
	ts, err := time.Parse(time.RFC3339, p.TS)
	if err != nil {
		return nil, fmt.Errorf("invalid ts %q: %w", p.TS, err)
	}

	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"hr", p.HR},
		{"spo2", p.SpO2},
		{"bodyTemp", p.BodyTemp},
		{"ambientTemp", p.AmbientTemp},
	} {
		if f.value == nil {
			return nil, fmt.Errorf("missing required field: %s", f.name)
		}
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return nil, fmt.Errorf("field %s is not a finite number", f.name)
		}
	}

	return &models.Measurement{
		DeviceID:    deviceID,
		Timestamp:   ts,
		HR:          p.HR,
		SpO2:        p.SpO2,
		BodyTemp:    p.BodyTemp,
		AmbientTemp: p.AmbientTemp,
		Contact:     p.Contact,
	}, nil
}
