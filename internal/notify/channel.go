package notify

import (
	"context"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// Result 单次投递尝试的结果，落库为一条 AlertDelivery
type Result struct {
	Success    bool
	StatusCode *int   // HTTP 状态码（适用时）
	Code       string // OK / DISABLED / NO_URL / HTTP_502 / ...
	Message    string
	Response   string
}

// Channel 通知通道
// Send 永不 panic，任何失败都折叠进 Result；跳过（如通道未启用）也算一次尝试
type Channel interface {
	Name() models.Channel
	Send(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device) Result
}

func intp(v int) *int { return &v }
