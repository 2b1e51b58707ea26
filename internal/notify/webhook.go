package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// WebhookChannel 把告警以扁平 JSON POST 到站点配置的回调地址
type WebhookChannel struct {
	client *resty.Client
	logger *zap.Logger
}

// NewWebhookChannel 创建 Webhook 通道
func NewWebhookChannel(logger *zap.Logger) *WebhookChannel {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(1)
	return &WebhookChannel{client: client, logger: logger}
}

func (c *WebhookChannel) Name() models.Channel { return models.ChannelWebhook }

// Send 投递一次；站点未启用或未配置 URL 时记录为跳过
func (c *WebhookChannel) Send(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device) Result {
	if site == nil || !site.NotifyWebhookEnabled {
		return Result{Code: "DISABLED", Message: "webhook notifications disabled for site"}
	}
	if site.NotifyWebhookURL == nil || *site.NotifyWebhookURL == "" {
		return Result{Code: "NO_URL", Message: "webhook enabled but no URL configured"}
	}

	payload := map[string]interface{}{
		"alertId":     alert.ID,
		"siteId":      site.ID,
		"siteName":    site.Name,
		"deviceId":    alert.DeviceID,
		"type":        string(alert.Type),
		"message":     alert.Message,
		"triggeredAt": alert.TriggeredAt.Format(time.RFC3339),
	}
	if device != nil {
		payload["deviceName"] = device.Name
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(*site.NotifyWebhookURL)
	if err != nil {
		c.logger.Warn("webhook delivery failed",
			zap.Int64("alert_id", alert.ID), zap.Error(err))
		return Result{Code: "ERROR", Message: err.Error()}
	}

	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return Result{
			Success:    true,
			StatusCode: intp(status),
			Code:       "OK",
			Message:    "delivered",
			Response:   string(resp.Body()),
		}
	}
	return Result{
		StatusCode: intp(status),
		Code:       fmt.Sprintf("HTTP_%d", status),
		Message:    fmt.Sprintf("webhook returned status %d", status),
		Response:   string(resp.Body()),
	}
}
