package models

import "time"

// Site 电站站点
// 监控相关字段为逐项覆盖：为 nil 时使用全局默认值
type Site struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Timezone   string  `json:"timezone"` // 为空时使用全局默认时区
	CapacityKw float64 `json:"capacity_kw"`
	Status     string  `json:"status"` // ACTIVE / INACTIVE

	// 检测阈值覆盖
	OfflineThresholdMinutes *int     `json:"offline_threshold_minutes,omitempty"`
	ZeroThresholdKw         *float64 `json:"zero_threshold_kw,omitempty"`
	ZeroWindowMinutes       *int     `json:"zero_window_minutes,omitempty"`
	ZeroMinReadings         *int     `json:"zero_min_readings,omitempty"`
	DaylightStart           *string  `json:"daylight_start,omitempty"` // "HH:mm"
	DaylightEnd             *string  `json:"daylight_end,omitempty"`   // "HH:mm"

	// 通知通道配置
	NotifyEmailEnabled    bool    `json:"notify_email_enabled"`
	NotifyEmailTo         *string `json:"notify_email_to,omitempty"`
	NotifyWebhookEnabled  bool    `json:"notify_webhook_enabled"`
	NotifyWebhookURL      *string `json:"notify_webhook_url,omitempty"`
	NotifyWhatsappEnabled bool    `json:"notify_whatsapp_enabled"`
	NotifyWhatsappTo      *string `json:"notify_whatsapp_to,omitempty"`
	NotifyWhatsappTpl     *string `json:"notify_whatsapp_tpl,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SiteStatusActive 站点默认状态
const SiteStatusActive = "ACTIVE"
