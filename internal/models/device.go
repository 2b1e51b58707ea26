package models

import "time"

// Device 上报遥测的计量设备
// Token 全局唯一；LastSeen 只由成功的遥测上报推进，单调不减
type Device struct {
	ID               int64      `json:"id"`
	SiteID           int64      `json:"site_id"`
	Name             string     `json:"name"`
	Type             string     `json:"type"` // INVERTER / METER / ...
	Active           bool       `json:"active"`
	Token            string     `json:"-"` // 设备凭证，不对外序列化
	LastSeen         *time.Time `json:"last_seen,omitempty"`
	DefaultMeterKind *MeterKind `json:"default_meter_kind,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
