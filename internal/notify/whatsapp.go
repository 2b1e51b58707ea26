package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// offlineTemplate 是唯一带变量的业务模板，其余模板（含 hello_world）不带参数
const offlineTemplate = "solar_offline"

// WhatsAppChannel 通过 WhatsApp Cloud API 发送告警
// 先尝试模板消息；模板被拒（24 小时会话窗口外常见）时降级为会话文本
type WhatsAppChannel struct {
	cfg    config.WhatsAppConfig
	client *resty.Client
	logger *zap.Logger
}

// NewWhatsAppChannel 创建 WhatsApp 通道
func NewWhatsAppChannel(cfg config.WhatsAppConfig, logger *zap.Logger) *WhatsAppChannel {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(1)
	return &WhatsAppChannel{cfg: cfg, client: client, logger: logger}
}

func (c *WhatsAppChannel) Name() models.Channel { return models.ChannelWhatsApp }

func (c *WhatsAppChannel) Send(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device) Result {
	if !c.cfg.Enabled || site == nil || !site.NotifyWhatsappEnabled {
		return Result{Code: "DISABLED", Message: "whatsapp notifications disabled"}
	}

	recipient := c.resolveRecipient(site)
	if recipient == "" {
		return Result{Code: "NO_RECIPIENT", Message: "no whatsapp recipient configured"}
	}

	template := c.cfg.DefaultTemplate
	if site.NotifyWhatsappTpl != nil && *site.NotifyWhatsappTpl != "" {
		template = *site.NotifyWhatsappTpl
	}

	result := c.sendTemplate(ctx, recipient, template, alert, site, device)
	if result.Success {
		return result
	}

	c.logger.Info("whatsapp template rejected, falling back to session message",
		zap.Int64("alert_id", alert.ID),
		zap.String("code", result.Code),
		zap.String("to", maskPhone(recipient)))
	return c.sendSession(ctx, recipient, alert)
}

// resolveRecipient 站点配置优先，否则全局默认
func (c *WhatsAppChannel) resolveRecipient(site *models.Site) string {
	if site.NotifyWhatsappTo != nil && *site.NotifyWhatsappTo != "" {
		return normalizePhone(*site.NotifyWhatsappTo)
	}
	return normalizePhone(c.cfg.DefaultRecipient)
}

func (c *WhatsAppChannel) sendTemplate(ctx context.Context, to, template string, alert *models.AlertEvent, site *models.Site, device *models.Device) Result {
	tpl := map[string]interface{}{
		"name":     template,
		"language": map[string]string{"code": "en_US"},
	}
	if template == offlineTemplate {
		tpl["components"] = []map[string]interface{}{{
			"type":       "body",
			"parameters": offlineTemplateParams(alert, site, device),
		}}
	}
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template":          tpl,
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		if isTimeout(err) {
			return Result{Code: "TEMPLATE_TIMEOUT", Message: err.Error()}
		}
		return Result{Code: "TEMPLATE_ERROR", Message: err.Error()}
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return Result{
			Success:    true,
			StatusCode: intp(status),
			Code:       "TEMPLATE_OK",
			Message:    fmt.Sprintf("template %s sent to %s", template, maskPhone(to)),
			Response:   string(resp.Body()),
		}
	}
	return Result{
		StatusCode: intp(status),
		Code:       fmt.Sprintf("TEMPLATE_HTTP_%d", status),
		Message:    fmt.Sprintf("template send returned status %d", status),
		Response:   string(resp.Body()),
	}
}

func (c *WhatsAppChannel) sendSession(ctx context.Context, to string, alert *models.AlertEvent) Result {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": alert.Message},
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return Result{Code: "SESSION_ERROR", Message: err.Error()}
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return Result{
			Success:    true,
			StatusCode: intp(status),
			Code:       "SESSION_OK",
			Message:    fmt.Sprintf("session message sent to %s", maskPhone(to)),
			Response:   string(resp.Body()),
		}
	}
	return Result{
		StatusCode: intp(status),
		Code:       fmt.Sprintf("SESSION_HTTP_%d", status),
		Message:    fmt.Sprintf("session send returned status %d", status),
		Response:   string(resp.Body()),
	}
}

func (c *WhatsAppChannel) post(ctx context.Context, body interface{}) (*resty.Response, error) {
	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.cfg.APIBase, "/"), c.cfg.PhoneNumberID)
	return c.client.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
}

// offlineTemplateParams solar_offline 模板的四个正文变量：站点、设备、起始时间、持续分钟数
func offlineTemplateParams(alert *models.AlertEvent, site *models.Site, device *models.Device) []map[string]string {
	deviceName := ""
	if device != nil {
		deviceName = device.Name
	}
	durationMin := 0
	if device != nil && device.LastSeen != nil {
		durationMin = int(alert.TriggeredAt.Sub(*device.LastSeen).Minutes())
		if durationMin < 0 {
			durationMin = 0
		}
	}
	return []map[string]string{
		{"type": "text", "text": site.Name},
		{"type": "text", "text": deviceName},
		{"type": "text", "text": alert.TriggeredAt.Format("2006-01-02 15:04")},
		{"type": "text", "text": strconv.Itoa(durationMin)},
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "timeout")
}

// normalizePhone 只保留数字（去掉 +、空格、连字符）
func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maskPhone 日志用号码脱敏，只露末 4 位
func maskPhone(s string) string {
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
