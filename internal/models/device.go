package models

import "time"

// Device 设备记录
// IsOnline 在每次收到遥测时置 true，由离线巡检在超时后置 false
type Device struct {
	DeviceID    string     `json:"deviceId"`
	Name        string     `json:"name"`
	OwnerUserID *string    `json:"ownerUserId,omitempty"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	IsOnline    bool       `json:"isOnline"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
