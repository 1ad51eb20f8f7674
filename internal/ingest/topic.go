package ingest

import (
	"fmt"
	"strings"
)

// TopicDecoder 从MQTT主题中提取设备标识符
// 主题模式形如 "health/+/telemetry"，其中 "+" 段为设备ID
type TopicDecoder struct {
	segments    []string
	wildcardIdx int
}

// NewTopicDecoder 根据订阅模式创建解码器
func NewTopicDecoder(pattern string) (*TopicDecoder, error) {
	segments := strings.Split(pattern, "/")
	wildcardIdx := -1
	for i, seg := range segments {
		if seg == "+" {
			if wildcardIdx >= 0 {
				return nil, fmt.Errorf("topic pattern %q has more than one wildcard segment", pattern)
			}
			wildcardIdx = i
		}
	}
	if wildcardIdx < 0 {
		return nil, fmt.Errorf("topic pattern %q has no wildcard segment", pattern)
	}

	return &TopicDecoder{
		segments:    segments,
		wildcardIdx: wildcardIdx,
	}, nil
}

// DeviceID 解析主题，返回设备ID
// 不匹配的主题返回 ok=false（主题空间可能承载无关流量，不是错误）
func (d *TopicDecoder) DeviceID(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != len(d.segments) {
		return "", false
	}
	for i, seg := range d.segments {
		if i == d.wildcardIdx {
			continue
		}
		if parts[i] != seg {
			return "", false
		}
	}
	deviceID := parts[d.wildcardIdx]
	if deviceID == "" {
		return "", false
	}
	return deviceID, true
}
