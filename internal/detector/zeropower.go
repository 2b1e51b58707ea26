package detector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// ReadingStore 遥测窗口读取
type ReadingStore interface {
	ListRecentBySite(ctx context.Context, siteID int64, since time.Time) ([]*models.Reading, error)
}

// ZeroPowerDetector 日照时段零功率检测器
// 前置条件（不触发告警，直接短路）：设备未离线、当前时间在日照窗口内
type ZeroPowerDetector struct {
	monitoring config.MonitoringConfig
	devices    DeviceStore
	sites      SiteStore
	readings   ReadingStore
	alerts     AlertStore
	notifier   Notifier
	logger     *zap.Logger

	now func() time.Time
}

// NewZeroPowerDetector 创建零功率检测器
func NewZeroPowerDetector(
	monitoring config.MonitoringConfig,
	devices DeviceStore,
	sites SiteStore,
	readings ReadingStore,
	alerts AlertStore,
	notifier Notifier,
	logger *zap.Logger,
) *ZeroPowerDetector {
	return &ZeroPowerDetector{
		monitoring: monitoring,
		devices:    devices,
		sites:      sites,
		readings:   readings,
		alerts:     alerts,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Run 执行一轮扫描；单设备错误只记录，不中断其余设备
func (d *ZeroPowerDetector) Run(ctx context.Context) error {
	devices, err := d.devices.ListActiveDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	for _, device := range devices {
		if err := d.checkDevice(ctx, device); err != nil {
			d.logger.Error("zero-power check failed",
				zap.Int64("device_id", device.ID), zap.Error(err))
		}
	}
	return nil
}

func (d *ZeroPowerDetector) checkDevice(ctx context.Context, device *models.Device) error {
	site, err := d.sites.GetSite(ctx, device.SiteID)
	if err != nil {
		return err
	}
	settings := ResolveSettings(d.monitoring, site)
	now := d.now()

	// 离线设备交给离线检测器，不再叠加零功率告警
	if device.LastSeen == nil {
		return nil
	}
	if int(now.Sub(*device.LastSeen).Minutes()) > settings.OfflineThresholdMinutes {
		return nil
	}

	// 夜间零功率是正常现象
	localNow := now.In(d.siteLocation(site))
	if !withinDaylight(localNow, settings.DaylightStart, settings.DaylightEnd) {
		return nil
	}

	since := now.Add(-time.Duration(settings.ZeroWindowMinutes) * time.Minute)
	window, err := d.readings.ListRecentBySite(ctx, site.ID, since)
	if err != nil {
		return fmt.Errorf("failed to load trailing window: %w", err)
	}

	// 稀疏数据不足以判定
	if len(window) < settings.ZeroMinReadings {
		return nil
	}

	maxPower := 0.0
	for _, r := range window {
		if p := readingPower(r); p != nil && *p > maxPower {
			maxPower = *p
		}
	}
	if maxPower > settings.ZeroThresholdKw {
		return nil
	}

	recent, err := d.alerts.CountRecentByDeviceAndType(ctx, device.ID, models.AlertZeroPower, dedupWindowMinutes)
	if err != nil {
		return err
	}
	if recent > 0 {
		return nil
	}

	alert := &models.AlertEvent{
		SiteID:   device.SiteID,
		DeviceID: device.ID,
		Type:     models.AlertZeroPower,
		Message: fmt.Sprintf("Zero power for ~%d min during daylight (<= %.2f kW)",
			settings.ZeroWindowMinutes, settings.ZeroThresholdKw),
		TriggeredAt: now,
	}
	id, err := d.alerts.Insert(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to persist zero-power alert: %w", err)
	}
	alert.ID = id

	d.logger.Warn("zero-power alert raised",
		zap.Int64("site_id", site.ID),
		zap.Int64("device_id", device.ID),
		zap.Float64("max_power_kw", maxPower),
		zap.Float64("threshold_kw", settings.ZeroThresholdKw))

	d.notifier.Dispatch(ctx, alert, site, device)
	return nil
}

func (d *ZeroPowerDetector) siteLocation(site *models.Site) *time.Location {
	tz := site.Timezone
	if tz == "" {
		tz = d.monitoring.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// readingPower 窗口功率取值：瞬时字段优先，旧单值兜底
func readingPower(r *models.Reading) *float64 {
	if r.TotalACPowerKw != nil {
		return r.TotalACPowerKw
	}
	return r.PowerKw
}
