package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// DeviceStore 设备读写
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID int64) (*models.Device, error)
	TouchLastSeen(ctx context.Context, deviceID int64, seenAt time.Time) error
}

// SiteStore 站点读取
type SiteStore interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
}

// ReadingStore 富样本追加
type ReadingStore interface {
	InsertReading(ctx context.Context, rd *models.Reading) (int64, error)
}

// EnergySampleStore 瘦样本追加（唯一约束去重）
type EnergySampleStore interface {
	InsertIgnoreDuplicate(ctx context.Context, es *models.EnergySample) (bool, error)
}

// Payload 单条遥测上报
type Payload struct {
	MeterKind string `json:"meterKind,omitempty"`
	Epoch     *int64 `json:"epoch,omitempty"` // 秒级时间戳，缺省用服务端当前时间

	TotalACPowerKw   *float64 `json:"totalAcPowerKw,omitempty"`
	DailyACEnergyKwh *float64 `json:"dailyAcEnergyKwh,omitempty"`
	DailyACExportKwh *float64 `json:"dailyAcExportKwh,omitempty"`
	DailyACImportKwh *float64 `json:"dailyAcImportKwh,omitempty"`
	DailyDCEnergyKwh *float64 `json:"dailyDcEnergyKwh,omitempty"`

	TotalACEnergyKwh *float64 `json:"totalAcEnergyKwh,omitempty"`
	TotalACExportKwh *float64 `json:"totalAcExportKwh,omitempty"`
	TotalACImportKwh *float64 `json:"totalAcImportKwh,omitempty"`
	TotalDCEnergyKwh *float64 `json:"totalDcEnergyKwh,omitempty"`

	PowerKw   *float64 `json:"powerKw,omitempty"`
	EnergyKwh *float64 `json:"energyKwh,omitempty"`

	Firmware *string `json:"firmware,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// BulkItem 批量上报中的一条样本（设备侧定期重推，靠唯一约束去重）
type BulkItem struct {
	MeterKind string `json:"meterKind,omitempty"`
	Epoch     *int64 `json:"epoch,omitempty"`

	TotalACPowerKw   *float64 `json:"totalAcPowerKw,omitempty"`
	DailyACEnergyKwh *float64 `json:"dailyAcEnergyKwh,omitempty"`
	DailyACExportKwh *float64 `json:"dailyAcExportKwh,omitempty"`
	DailyACImportKwh *float64 `json:"dailyAcImportKwh,omitempty"`
	DailyDCEnergyKwh *float64 `json:"dailyDcEnergyKwh,omitempty"`

	DeviceID *string `json:"deviceId,omitempty"`
	Firmware *string `json:"firmware,omitempty"`
}

// BulkResult 批量上报结果
type BulkResult struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"` // 唯一约束去重跳过的条数
}

// Service 遥测接入解析器
// 负责设备鉴权、计量点解析、时间戳补全、样本落库与 last_seen 推进
type Service struct {
	monitoring config.MonitoringConfig
	devices    DeviceStore
	sites      SiteStore
	readings   ReadingStore
	samples    EnergySampleStore
	logger     *zap.Logger

	now func() time.Time
}

// NewService 创建接入服务
func NewService(
	monitoring config.MonitoringConfig,
	devices DeviceStore,
	sites SiteStore,
	readings ReadingStore,
	samples EnergySampleStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		monitoring: monitoring,
		devices:    devices,
		sites:      sites,
		readings:   readings,
		samples:    samples,
		logger:     logger,
		now:        time.Now,
	}
}

// authenticate 校验设备凭证，返回设备与其站点
func (s *Service) authenticate(ctx context.Context, deviceID int64, token string) (*models.Device, *models.Site, error) {
	if deviceID <= 0 {
		return nil, nil, fmt.Errorf("device id is missing: %w", models.ErrInvalidArgument)
	}
	if token == "" {
		return nil, nil, fmt.Errorf("token is missing: %w", models.ErrInvalidArgument)
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("device lookup failed: %w", models.ErrUnauthorized)
	}
	if !device.Active || device.Token != token {
		return nil, nil, fmt.Errorf("device inactive or token mismatch: %w", models.ErrUnauthorized)
	}

	site, err := s.sites.GetSite(ctx, device.SiteID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load site for device: %w", err)
	}
	return device, site, nil
}

// siteLocation 解析站点时区，未配置时退回全局默认
func (s *Service) siteLocation(site *models.Site) *time.Location {
	tz := site.Timezone
	if tz == "" {
		tz = s.monitoring.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.logger.Warn("invalid site timezone, falling back to local",
			zap.Int64("site_id", site.ID), zap.String("timezone", tz))
		return time.Local
	}
	return loc
}

// resolveMeterKind 计量点解析链：上报值 → 设备默认值 → MAIN
func resolveMeterKind(payloadKind string, device *models.Device) models.MeterKind {
	if mk, ok := models.ParseMeterKind(payloadKind); ok {
		return mk
	}
	if device != nil && device.DefaultMeterKind != nil {
		return *device.DefaultMeterKind
	}
	return models.MeterMain
}

// resolveTimestamp 上报的 epoch 秒优先，否则用站点时区下的当前时间
func (s *Service) resolveTimestamp(epoch *int64, loc *time.Location) time.Time {
	if epoch != nil && *epoch > 0 {
		return time.Unix(*epoch, 0).In(loc)
	}
	return s.now().In(loc)
}

// Ingest 处理单条遥测上报
// 成功时恰好一次样本追加和一次 last_seen 推进
func (s *Service) Ingest(ctx context.Context, deviceID int64, token string, p *Payload) (*models.Reading, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is missing: %w", models.ErrInvalidArgument)
	}

	device, site, err := s.authenticate(ctx, deviceID, token)
	if err != nil {
		return nil, err
	}

	loc := s.siteLocation(site)
	ts := s.resolveTimestamp(p.Epoch, loc)
	mk := resolveMeterKind(p.MeterKind, device)

	rd := &models.Reading{
		SiteID:           site.ID,
		DeviceID:         &device.ID,
		MeterKind:        &mk,
		Ts:               ts,
		TotalACPowerKw:   p.TotalACPowerKw,
		DailyACEnergyKwh: p.DailyACEnergyKwh,
		DailyACExportKwh: p.DailyACExportKwh,
		DailyACImportKwh: p.DailyACImportKwh,
		DailyDCEnergyKwh: p.DailyDCEnergyKwh,
		TotalACEnergyKwh: p.TotalACEnergyKwh,
		TotalACExportKwh: p.TotalACExportKwh,
		TotalACImportKwh: p.TotalACImportKwh,
		TotalDCEnergyKwh: p.TotalDCEnergyKwh,
		PowerKw:          p.PowerKw,
		EnergyKwh:        p.EnergyKwh,
		Firmware:         p.Firmware,
		Status:           p.Status,
	}

	id, err := s.readings.InsertReading(ctx, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}
	rd.ID = id

	if err := s.devices.TouchLastSeen(ctx, device.ID, ts); err != nil {
		// last_seen 推进失败不回滚样本，记录后继续
		s.logger.Error("failed to touch device last_seen",
			zap.Int64("device_id", device.ID), zap.Error(err))
	}

	s.logger.Debug("reading ingested",
		zap.Int64("site_id", site.ID),
		zap.Int64("device_id", device.ID),
		zap.String("meter_kind", string(mk)),
		zap.Time("ts", ts))

	return rd, nil
}

// IngestBulk 处理批量遥测上报
// 空数值按 0 入库；重复 (site, meter, time) 静默跳过以容忍设备重推
func (s *Service) IngestBulk(ctx context.Context, deviceID int64, token string, items []BulkItem) (*BulkResult, error) {
	device, site, err := s.authenticate(ctx, deviceID, token)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("samples are missing: %w", models.ErrInvalidArgument)
	}

	loc := s.siteLocation(site)
	result := &BulkResult{}
	var latest time.Time

	for i := range items {
		item := &items[i]
		ts := s.resolveTimestamp(item.Epoch, loc)
		if ts.After(latest) {
			latest = ts
		}

		es := &models.EnergySample{
			SiteID:           site.ID,
			MeterKind:        resolveMeterKind(item.MeterKind, device),
			SampleTime:       ts,
			TotalACPowerKw:   nz(item.TotalACPowerKw),
			DailyACEnergyKwh: nz(item.DailyACEnergyKwh),
			DailyACExportKwh: nz(item.DailyACExportKwh),
			DailyACImportKwh: nz(item.DailyACImportKwh),
			DailyDCEnergyKwh: nz(item.DailyDCEnergyKwh),
			DeviceID:         item.DeviceID,
			Firmware:         item.Firmware,
		}

		inserted, err := s.samples.InsertIgnoreDuplicate(ctx, es)
		if err != nil {
			return nil, fmt.Errorf("failed to store energy sample: %w", err)
		}
		if inserted {
			result.Accepted++
		} else {
			result.Skipped++
		}
	}

	if err := s.devices.TouchLastSeen(ctx, device.ID, latest); err != nil {
		s.logger.Error("failed to touch device last_seen",
			zap.Int64("device_id", device.ID), zap.Error(err))
	}

	s.logger.Info("bulk ingest processed",
		zap.Int64("site_id", site.ID),
		zap.Int64("device_id", device.ID),
		zap.Int("accepted", result.Accepted),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

func nz(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
