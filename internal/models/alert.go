package models

import "time"

// AlertType 告警类型
type AlertType string

const (
	AlertOffline   AlertType = "OFFLINE"
	AlertZeroPower AlertType = "ZERO_POWER"
	AlertTest      AlertType = "TEST"
)

// Channel 通知通道
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelWebhook  Channel = "WEBHOOK"
)

// AlertEvent 告警事件（由检测器创建，通知失败不影响其落库）
type AlertEvent struct {
	ID           int64     `json:"id"`
	SiteID       int64     `json:"site_id"`
	DeviceID     int64     `json:"device_id"`
	Type         AlertType `json:"type"`
	Message      string    `json:"message"`
	TriggeredAt  time.Time `json:"triggered_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// AlertDelivery 单次投递记录（每次尝试一行，包括因配置被跳过的尝试）
type AlertDelivery struct {
	ID          int64     `json:"id"`
	AlertID     *int64    `json:"alert_id,omitempty"` // 手工测试发送时可为空
	Channel     Channel   `json:"channel"`
	Success     bool      `json:"success"`
	StatusCode  *int      `json:"status_code,omitempty"` // HTTP状态码（适用时）
	Code        string    `json:"code"`                  // OK / DISABLED / NO_URL / HTTP_502 / ...
	Message     string    `json:"message"`
	Response    string    `json:"response"` // 原始响应，截断到4000字符
	AttemptedAt time.Time `json:"attempted_at"`
}

// MaxDeliveryResponseLen AlertDelivery.Response 的截断长度
const MaxDeliveryResponseLen = 4000

// TruncateResponse 截断投递响应体用于审计存储
func TruncateResponse(s string) string {
	if len(s) > MaxDeliveryResponseLen {
		return s[:MaxDeliveryResponseLen]
	}
	return s
}
