package series

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
}

// ReadingStore 富样本区间读取
type ReadingStore interface {
	ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time, includeLegacyNull bool) ([]*models.Reading, error)
}

// EnergySampleStore 瘦样本区间读取
type EnergySampleStore interface {
	ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.EnergySample, error)
}

// DayMeterStore 计量点级日聚合读取
type DayMeterStore interface {
	ListBySiteAndDayRange(ctx context.Context, siteID int64, fromDay, toDay string) ([]*models.ReadingDayMeter, error)
}

// IntradaySeries 日内序列响应
type IntradaySeries struct {
	Labels []string             `json:"labels"` // "HH:mm" 刻度
	Metric string               `json:"metric"`
	Unit   string               `json:"unit"`
	Series map[string][]float64 `json:"series"` // 按计量点
}

// DailySeries 按天序列响应
type DailySeries struct {
	Labels []string                        `json:"labels"` // ISO 日期
	Series map[string]map[string][]float64 `json:"series"` // 指标族 → 计量点 → 与标签对齐的数组
}

// Service 序列重建引擎
// 把异构的原始样本（当日计数器/累计计数器/旧单值字段）重建为对齐的展示序列
type Service struct {
	monitoring config.MonitoringConfig
	sites      SiteStore
	readings   ReadingStore
	samples    EnergySampleStore
	dayMeters  DayMeterStore
	logger     *zap.Logger

	now func() time.Time
}

// NewService 创建序列重建引擎
func NewService(
	monitoring config.MonitoringConfig,
	sites SiteStore,
	readings ReadingStore,
	samples EnergySampleStore,
	dayMeters DayMeterStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		monitoring: monitoring,
		sites:      sites,
		readings:   readings,
		samples:    samples,
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

// loadMergedReadings 读取指定计量点的富样本，并把瘦样本转为富形状并入（按时间排序）
// MAIN 额外并入 meter_kind 为空的旧数据
func (s *Service) loadMergedReadings(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.Reading, error) {
	includeLegacy := kind == models.MeterMain
	readings, err := s.readings.ListBySiteMeterAndRange(ctx, siteID, kind, from, to, includeLegacy)
	if err != nil {
		return nil, err
	}

	slim, err := s.samples.ListBySiteMeterAndRange(ctx, siteID, kind, from, to)
	if err != nil {
		return nil, err
	}
	for _, es := range slim {
		readings = append(readings, es.AsReading())
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Ts.Before(readings[j].Ts)
	})
	return readings, nil
}

// BuildIntradaySeries 构建 (站点, 日, 指标, 步长分钟) 的日内序列
// 每个刻度取"最近一个可解析样本"的值（前向填充），首个样本之前为 0
func (s *Service) BuildIntradaySeries(ctx context.Context, siteID int64, day string, metricName string, stepMin int) (*IntradaySeries, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site id is missing: %w", models.ErrInvalidArgument)
	}
	if stepMin <= 0 {
		stepMin = 1
	}

	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	loc := s.siteLocation(site)

	var localDay time.Time
	if day == "" {
		n := s.now().In(loc)
		localDay = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	} else {
		localDay, err = time.ParseInLocation("2006-01-02", day, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", day, models.ErrInvalidArgument)
		}
	}
	dayStart := localDay
	dayEnd := dayStart.AddDate(0, 0, 1)

	metric := ParseMetric(metricName)
	step := time.Duration(stepMin) * time.Minute

	// 生成整天的时间刻度
	ticks := []time.Time{}
	labels := []string{}
	for t := dayStart; t.Before(dayEnd); t = t.Add(step) {
		ticks = append(ticks, t)
		labels = append(labels, t.Format("15:04"))
	}

	out := &IntradaySeries{
		Labels: labels,
		Metric: string(metric),
		Unit:   metric.Unit(),
		Series: map[string][]float64{},
	}

	for _, kind := range models.AllMeterKinds {
		merged, err := s.loadMergedReadings(ctx, siteID, kind, dayStart, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to load samples for %s: %w", kind, err)
		}

		state := newMetricState(metric)
		values := make([]float64, len(ticks))
		last := 0.0
		cursor := 0

		// 单趟游标：每个刻度消费所有 ts <= 刻度 的样本，记录最近可解析值
		for i, tick := range ticks {
			for cursor < len(merged) && !merged[cursor].Ts.After(tick) {
				if v, ok := state.resolve(merged[cursor]); ok {
					last = v
				}
				cursor++
			}
			values[i] = last
		}

		out.Series[string(kind)] = values
	}

	return out, nil
}

// BuildDayMeterSeries 构建站点最近 N 天（含今天）的按天序列
// 缺聚合行的天补 0，保证数组与标签对齐
func (s *Service) BuildDayMeterSeries(ctx context.Context, siteID int64, days int) (*DailySeries, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site id is missing: %w", models.ErrInvalidArgument)
	}
	if days < 1 {
		days = 1
	}

	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	loc := s.siteLocation(site)

	n := s.now().In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	fromDay := today.AddDate(0, 0, -(days - 1))

	labels := []string{}
	index := map[string]int{}
	for d := fromDay; !d.After(today); d = d.AddDate(0, 0, 1) {
		index[d.Format("2006-01-02")] = len(labels)
		labels = append(labels, d.Format("2006-01-02"))
	}

	rows, err := s.dayMeters.ListBySiteAndDayRange(ctx, siteID, labels[0], labels[len(labels)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to load day aggregates: %w", err)
	}

	families := []string{"acActiveEnergyKwh", "acExportEnergyKwh", "acImportEnergyKwh", "dcEnergyKwh", "maxAcPowerKw"}
	out := &DailySeries{Labels: labels, Series: map[string]map[string][]float64{}}
	for _, f := range families {
		out.Series[f] = map[string][]float64{}
		for _, kind := range models.AllMeterKinds {
			out.Series[f][string(kind)] = make([]float64, len(labels))
		}
	}

	for _, row := range rows {
		i, ok := index[row.Day]
		if !ok {
			continue
		}
		mk := string(row.MeterKind)
		out.Series["acActiveEnergyKwh"][mk][i] = row.ACActiveEnergyKwh
		out.Series["acExportEnergyKwh"][mk][i] = row.ACExportEnergyKwh
		out.Series["acImportEnergyKwh"][mk][i] = row.ACImportEnergyKwh
		out.Series["dcEnergyKwh"][mk][i] = row.DCEnergyKwh
		out.Series["maxAcPowerKw"][mk][i] = row.MaxACPowerKw
	}

	return out, nil
}
