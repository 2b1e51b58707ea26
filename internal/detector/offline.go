package detector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// DeviceStore 设备读取
type DeviceStore interface {
	ListActiveDevices(ctx context.Context) ([]*models.Device, error)
}

// SiteStore 站点读取
type SiteStore interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
}

// AlertStore 告警写入与去重查询
type AlertStore interface {
	Insert(ctx context.Context, a *models.AlertEvent) (int64, error)
	CountRecentByDeviceAndType(ctx context.Context, deviceID int64, alertType models.AlertType, withinMinutes int) (int, error)
}

// Notifier 告警通知分发（投递失败由分发器内部记录，不回传）
type Notifier interface {
	Dispatch(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device)
}

// OfflineDetector 离线检测器
// 设备状态由 last_seen 隐式表达：空=未知，新鲜=在线，过期=离线
type OfflineDetector struct {
	monitoring config.MonitoringConfig
	devices    DeviceStore
	sites      SiteStore
	alerts     AlertStore
	notifier   Notifier
	logger     *zap.Logger

	now func() time.Time
}

// NewOfflineDetector 创建离线检测器
func NewOfflineDetector(
	monitoring config.MonitoringConfig,
	devices DeviceStore,
	sites SiteStore,
	alerts AlertStore,
	notifier Notifier,
	logger *zap.Logger,
) *OfflineDetector {
	return &OfflineDetector{
		monitoring: monitoring,
		devices:    devices,
		sites:      sites,
		alerts:     alerts,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Run 执行一轮扫描；单设备错误只记录，不中断其余设备
func (d *OfflineDetector) Run(ctx context.Context) error {
	devices, err := d.devices.ListActiveDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	for _, device := range devices {
		if err := d.checkDevice(ctx, device); err != nil {
			d.logger.Error("offline check failed",
				zap.Int64("device_id", device.ID), zap.Error(err))
		}
	}
	return nil
}

func (d *OfflineDetector) checkDevice(ctx context.Context, device *models.Device) error {
	site, err := d.sites.GetSite(ctx, device.SiteID)
	if err != nil {
		return err
	}
	settings := ResolveSettings(d.monitoring, site)

	var message string
	if device.LastSeen == nil {
		message = fmt.Sprintf("Device %s offline (last seen unknown, threshold %dm)",
			device.Name, settings.OfflineThresholdMinutes)
	} else {
		minutes := int(d.now().Sub(*device.LastSeen).Minutes())
		if minutes <= settings.OfflineThresholdMinutes {
			return nil // 在线
		}
		message = fmt.Sprintf("Device %s offline for ~%d min (threshold %dm)",
			device.Name, minutes, settings.OfflineThresholdMinutes)
	}

	// 去重窗口内已有同类告警则跳过
	recent, err := d.alerts.CountRecentByDeviceAndType(ctx, device.ID, models.AlertOffline, dedupWindowMinutes)
	if err != nil {
		return err
	}
	if recent > 0 {
		return nil
	}

	alert := &models.AlertEvent{
		SiteID:      device.SiteID,
		DeviceID:    device.ID,
		Type:        models.AlertOffline,
		Message:     message,
		TriggeredAt: d.now(),
	}
	id, err := d.alerts.Insert(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to persist offline alert: %w", err)
	}
	alert.ID = id

	d.logger.Warn("offline alert raised",
		zap.Int64("site_id", device.SiteID),
		zap.Int64("device_id", device.ID),
		zap.String("message", message))

	// 通知失败不影响已落库的告警
	d.notifier.Dispatch(ctx, alert, site, device)
	return nil
}
