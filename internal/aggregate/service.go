package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// SiteStore 站点读取
type SiteStore interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
	ListActiveSites(ctx context.Context) ([]*models.Site, error)
}

// ReadingStore 富样本区间读取
type ReadingStore interface {
	ListBySiteAndRange(ctx context.Context, siteID int64, from, to time.Time) ([]*models.Reading, error)
	ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time, includeLegacyNull bool) ([]*models.Reading, error)
}

// EnergySampleStore 瘦样本区间读取
type EnergySampleStore interface {
	ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.EnergySample, error)
}

// DayStore 站点级日聚合写入
type DayStore interface {
	Upsert(ctx context.Context, rd *models.ReadingDay) error
}

// DayMeterStore 计量点级日聚合写入
type DayMeterStore interface {
	Upsert(ctx context.Context, rdm *models.ReadingDayMeter) error
}

// Service 日聚合服务
// 聚合是幂等的：对同一 (站点, 天) 重跑任意次，总是覆盖不累加
type Service struct {
	monitoring config.MonitoringConfig
	sites      SiteStore
	readings   ReadingStore
	samples    EnergySampleStore
	days       DayStore
	dayMeters  DayMeterStore
	logger     *zap.Logger

	now func() time.Time
}

// NewService 创建日聚合服务
func NewService(
	monitoring config.MonitoringConfig,
	sites SiteStore,
	readings ReadingStore,
	samples EnergySampleStore,
	days DayStore,
	dayMeters DayMeterStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		monitoring: monitoring,
		sites:      sites,
		readings:   readings,
		samples:    samples,
		days:       days,
		dayMeters:  dayMeters,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) siteLocation(site *models.Site) *time.Location {
	tz := site.Timezone
	if tz == "" {
		tz = s.monitoring.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// AggregateTodayForSite 站点级今日聚合
// energyToday = max(0, 末累计 - 首累计)，maxPower = 窗口功率最大值；无样本也写零行
func (s *Service) AggregateTodayForSite(ctx context.Context, siteID int64) (*models.ReadingDay, error) {
	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	loc := s.siteLocation(site)
	n := s.now().In(loc)
	dayStart := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	readings, err := s.readings.ListBySiteAndRange(ctx, siteID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load today readings: %w", err)
	}

	rd := &models.ReadingDay{
		SiteID: siteID,
		Day:    dayStart.Format("2006-01-02"),
	}

	var firstEnergy, lastEnergy *float64
	for _, r := range readings {
		if r.EnergyKwh != nil {
			if firstEnergy == nil {
				firstEnergy = r.EnergyKwh
			}
			lastEnergy = r.EnergyKwh
		}
		if p := samplePower(r); p != nil && *p > rd.MaxPowerKw {
			rd.MaxPowerKw = *p
		}
	}
	if firstEnergy != nil && lastEnergy != nil {
		if delta := *lastEnergy - *firstEnergy; delta > 0 {
			rd.EnergyTodayKwh = delta
		}
	}
	if len(readings) > 0 {
		ts := readings[len(readings)-1].Ts
		rd.LastSampleAt = &ts
	}

	if err := s.days.Upsert(ctx, rd); err != nil {
		return nil, err
	}

	s.logger.Debug("site day aggregated",
		zap.Int64("site_id", siteID),
		zap.String("day", rd.Day),
		zap.Float64("energy_today_kwh", rd.EnergyTodayKwh),
		zap.Float64("max_power_kw", rd.MaxPowerKw))

	return rd, nil
}

// AggregateDayPerMeter 计量点级日聚合
// 四个电量各自独立回退：max(当日字段) → max(累计)-min(累计) → 0
// 最大功率优先瞬时功率字段，整窗缺失时退回旧单值功率字段；无样本也写零行
func (s *Service) AggregateDayPerMeter(ctx context.Context, siteID int64, day string, kind models.MeterKind) (*models.ReadingDayMeter, error) {
	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	loc := s.siteLocation(site)
	dayStart, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", day, models.ErrInvalidArgument)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	merged, err := s.loadMergedReadings(ctx, siteID, kind, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	rdm := &models.ReadingDayMeter{
		SiteID:    siteID,
		MeterKind: kind,
		Day:       day,
	}

	rdm.ACActiveEnergyKwh = reconcileEnergy(merged,
		func(r *models.Reading) *float64 { return r.DailyACEnergyKwh },
		func(r *models.Reading) *float64 { return r.TotalACEnergyKwh })
	rdm.ACExportEnergyKwh = reconcileEnergy(merged,
		func(r *models.Reading) *float64 { return r.DailyACExportKwh },
		func(r *models.Reading) *float64 { return r.TotalACExportKwh })
	rdm.ACImportEnergyKwh = reconcileEnergy(merged,
		func(r *models.Reading) *float64 { return r.DailyACImportKwh },
		func(r *models.Reading) *float64 { return r.TotalACImportKwh })
	rdm.DCEnergyKwh = reconcileEnergy(merged,
		func(r *models.Reading) *float64 { return r.DailyDCEnergyKwh },
		func(r *models.Reading) *float64 { return r.TotalDCEnergyKwh })

	rdm.MaxACPowerKw = reconcileMaxPower(merged)

	if len(merged) > 0 {
		ts := merged[len(merged)-1].Ts
		rdm.LastSampleAt = &ts
	}

	if err := s.dayMeters.Upsert(ctx, rdm); err != nil {
		return nil, err
	}
	return rdm, nil
}

// AggregateAllToday 聚合所有激活站点的今天（站点级 + 三个计量点）
// 单个站点失败只记录不中断其余站点
func (s *Service) AggregateAllToday(ctx context.Context) error {
	sites, err := s.sites.ListActiveSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	for _, site := range sites {
		if _, err := s.AggregateTodayForSite(ctx, site.ID); err != nil {
			s.logger.Error("site day aggregation failed",
				zap.Int64("site_id", site.ID), zap.Error(err))
			continue
		}

		loc := s.siteLocation(site)
		today := s.now().In(loc).Format("2006-01-02")
		for _, kind := range models.AllMeterKinds {
			if _, err := s.AggregateDayPerMeter(ctx, site.ID, today, kind); err != nil {
				s.logger.Error("per-meter day aggregation failed",
					zap.Int64("site_id", site.ID),
					zap.String("meter_kind", string(kind)),
					zap.Error(err))
			}
		}
	}
	return nil
}

func (s *Service) loadMergedReadings(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.Reading, error) {
	includeLegacy := kind == models.MeterMain
	readings, err := s.readings.ListBySiteMeterAndRange(ctx, siteID, kind, from, to, includeLegacy)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}

	slim, err := s.samples.ListBySiteMeterAndRange(ctx, siteID, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load energy samples: %w", err)
	}
	for _, es := range slim {
		readings = append(readings, es.AsReading())
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Ts.Before(readings[j].Ts)
	})
	return readings, nil
}

// reconcileEnergy 单个电量的回退链
func reconcileEnergy(readings []*models.Reading, daily, cumulative func(*models.Reading) *float64) float64 {
	var maxDaily *float64
	var minCum, maxCum *float64

	for _, r := range readings {
		if v := daily(r); v != nil {
			if maxDaily == nil || *v > *maxDaily {
				maxDaily = v
			}
		}
		if v := cumulative(r); v != nil {
			if minCum == nil || *v < *minCum {
				minCum = v
			}
			if maxCum == nil || *v > *maxCum {
				maxCum = v
			}
		}
	}

	if maxDaily != nil {
		return *maxDaily
	}
	if minCum != nil && maxCum != nil {
		if delta := *maxCum - *minCum; delta > 0 {
			return delta
		}
	}
	return 0
}

// reconcileMaxPower 瞬时功率最大值，整窗缺失时退回旧单值功率
func reconcileMaxPower(readings []*models.Reading) float64 {
	var maxInst, maxLegacy *float64
	for _, r := range readings {
		if r.TotalACPowerKw != nil && (maxInst == nil || *r.TotalACPowerKw > *maxInst) {
			maxInst = r.TotalACPowerKw
		}
		if r.PowerKw != nil && (maxLegacy == nil || *r.PowerKw > *maxLegacy) {
			maxLegacy = r.PowerKw
		}
	}
	if maxInst != nil {
		return *maxInst
	}
	if maxLegacy != nil {
		return *maxLegacy
	}
	return 0
}

// samplePower 站点级聚合的功率取值：旧单值优先，缺失时用瞬时字段
func samplePower(r *models.Reading) *float64 {
	if r.PowerKw != nil {
		return r.PowerKw
	}
	return r.TotalACPowerKw
}
