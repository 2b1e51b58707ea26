package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// EmailChannel 通过 SMTP 发送告警邮件
type EmailChannel struct {
	cfg    config.SMTPConfig
	logger *zap.Logger

	// 测试注入点，默认 smtp.SendMail
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel 创建邮件通道
func NewEmailChannel(cfg config.SMTPConfig, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

func (c *EmailChannel) Name() models.Channel { return models.ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device) Result {
	if site == nil {
		return Result{Code: "NO_SITE", Message: "alert has no site context"}
	}
	if !site.NotifyEmailEnabled || site.NotifyEmailTo == nil || *site.NotifyEmailTo == "" {
		return Result{Code: "DISABLED_OR_EMPTY", Message: "email notifications disabled or recipient empty"}
	}

	to := strings.Split(*site.NotifyEmailTo, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}

	subject := fmt.Sprintf("[%s] %s alert", site.Name, alert.Type)
	deviceName := ""
	if device != nil {
		deviceName = device.Name
	}
	body := fmt.Sprintf("Site: %s\r\nDevice: %s\r\nType: %s\r\nTime: %s\r\n\r\n%s\r\n",
		site.Name, deviceName, alert.Type,
		alert.TriggeredAt.Format("2006-01-02 15:04:05 MST"), alert.Message)

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		c.cfg.From, strings.Join(to, ", "), subject, body))

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	if err := c.sendMail(addr, auth, c.cfg.From, to, msg); err != nil {
		c.logger.Warn("email delivery failed",
			zap.Int64("alert_id", alert.ID), zap.Error(err))
		return Result{Code: "ERROR", Message: err.Error()}
	}
	return Result{Success: true, Code: "OK", Message: fmt.Sprintf("sent to %d recipient(s)", len(to))}
}
