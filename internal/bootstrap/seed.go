package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// SiteStore 站点播种所需的操作
type SiteStore interface {
	CountSites(ctx context.Context) (int, error)
	CreateSite(ctx context.Context, site *models.Site) (int64, error)
}

// DeviceStore 设备播种所需的操作
type DeviceStore interface {
	CreateDevice(ctx context.Context, d *models.Device) (int64, error)
}

// SeedIfEmpty 空库时创建默认站点和设备，返回是否播种
// 设备 token 随机生成并打一次日志，供首次配置上报端使用
func SeedIfEmpty(ctx context.Context, cfg config.MonitoringConfig, sites SiteStore, devices DeviceStore, logger *zap.Logger) (bool, error) {
	count, err := sites.CountSites(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count sites: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	siteID, err := sites.CreateSite(ctx, &models.Site{
		Name:     cfg.SeedSiteName,
		Timezone: cfg.Timezone,
		Status:   models.SiteStatusActive,
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed site: %w", err)
	}

	token := uuid.NewString()
	kind := models.MeterMain
	deviceID, err := devices.CreateDevice(ctx, &models.Device{
		SiteID:           siteID,
		Name:             cfg.SeedDeviceName,
		Type:             "INVERTER",
		Active:           true,
		Token:            token,
		DefaultMeterKind: &kind,
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed device: %w", err)
	}

	logger.Info("seeded default site and device",
		zap.Int64("site_id", siteID),
		zap.Int64("device_id", deviceID),
		zap.String("device_token", token))
	return true, nil
}
