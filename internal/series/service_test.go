package series

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

type fakeSiteStore struct {
	site *models.Site
}

func (f *fakeSiteStore) GetSite(ctx context.Context, siteID int64) (*models.Site, error) {
	return f.site, nil
}

type fakeReadingStore struct {
	byKind map[models.MeterKind][]*models.Reading
}

func (f *fakeReadingStore) ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time, includeLegacyNull bool) ([]*models.Reading, error) {
	out := []*models.Reading{}
	out = append(out, f.byKind[kind]...)
	if includeLegacyNull {
		out = append(out, f.byKind[""]...)
	}
	return out, nil
}

type fakeEnergySampleStore struct {
	byKind map[models.MeterKind][]*models.EnergySample
}

func (f *fakeEnergySampleStore) ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.EnergySample, error) {
	return f.byKind[kind], nil
}

type fakeDayMeterStore struct {
	rows []*models.ReadingDayMeter
}

func (f *fakeDayMeterStore) ListBySiteAndDayRange(ctx context.Context, siteID int64, fromDay, toDay string) ([]*models.ReadingDayMeter, error) {
	return f.rows, nil
}

func f64(v float64) *float64 { return &v }

func mk(kind models.MeterKind) *models.MeterKind { return &kind }

func newTestService(readings *fakeReadingStore, samples *fakeEnergySampleStore, dayMeters *fakeDayMeterStore) *Service {
	cfg := config.MonitoringConfig{Timezone: "UTC"}
	sites := &fakeSiteStore{site: &models.Site{ID: 1, Timezone: "UTC"}}
	return NewService(cfg, sites, readings, samples, dayMeters, zap.NewNop())
}

func TestIntradayForwardFill(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		models.MeterMain: {
			{SiteID: 1, MeterKind: mk(models.MeterMain), Ts: day.Add(9 * time.Hour), TotalACPowerKw: f64(5)},
			{SiteID: 1, MeterKind: mk(models.MeterMain), Ts: day.Add(9*time.Hour + 20*time.Minute), TotalACPowerKw: f64(8)},
		},
	}}
	svc := newTestService(readings, &fakeEnergySampleStore{}, &fakeDayMeterStore{})

	out, err := svc.BuildIntradaySeries(context.Background(), 1, "2026-08-30", "TOTAL_AC_POWER", 10)
	require.NoError(t, err)

	assert.Equal(t, "kW", out.Unit)
	require.Len(t, out.Labels, 144)

	main := out.Series["MAIN"]
	idx := func(hh, mm int) int { return (hh*60 + mm) / 10 }

	assert.Equal(t, 0.0, main[idx(8, 50)]) // 首个样本之前为 0
	assert.Equal(t, 5.0, main[idx(9, 0)])
	assert.Equal(t, 5.0, main[idx(9, 10)]) // 前向填充
	assert.Equal(t, 8.0, main[idx(9, 20)])
	assert.Equal(t, 8.0, main[idx(23, 50)])
}

func TestIntradayCumulativeBaselineFallback(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	// 没有当日字段，只有累计计数器：值 = max(0, 累计 - 窗口首个累计)
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		models.MeterMain: {
			{SiteID: 1, MeterKind: mk(models.MeterMain), Ts: day.Add(9 * time.Hour), TotalACEnergyKwh: f64(1000)},
			{SiteID: 1, MeterKind: mk(models.MeterMain), Ts: day.Add(12 * time.Hour), TotalACEnergyKwh: f64(1024.5)},
		},
	}}
	svc := newTestService(readings, &fakeEnergySampleStore{}, &fakeDayMeterStore{})

	out, err := svc.BuildIntradaySeries(context.Background(), 1, "2026-08-30", "DAILY_AC_ENERGY", 60)
	require.NoError(t, err)

	assert.Equal(t, "kWh", out.Unit)
	main := out.Series["MAIN"]
	assert.Equal(t, 0.0, main[9])  // 基线样本自身差值为 0
	assert.Equal(t, 24.5, main[12])
	assert.Equal(t, 24.5, main[23])
}

func TestIntradayDailyFieldPreferred(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	// 当日字段存在时优先于累计差值
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		models.MeterMain: {
			{SiteID: 1, MeterKind: mk(models.MeterMain), Ts: day.Add(10 * time.Hour),
				DailyACEnergyKwh: f64(7.5), TotalACEnergyKwh: f64(2000)},
		},
	}}
	svc := newTestService(readings, &fakeEnergySampleStore{}, &fakeDayMeterStore{})

	out, err := svc.BuildIntradaySeries(context.Background(), 1, "2026-08-30", "DAILY_AC_ENERGY", 60)
	require.NoError(t, err)
	assert.Equal(t, 7.5, out.Series["MAIN"][10])
}

func TestIntradayLegacyNullMeterMergedIntoMain(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		"": {
			{SiteID: 1, Ts: day.Add(11 * time.Hour), PowerKw: f64(3.3)}, // 旧数据：meter_kind 为空
		},
	}}
	svc := newTestService(readings, &fakeEnergySampleStore{}, &fakeDayMeterStore{})

	out, err := svc.BuildIntradaySeries(context.Background(), 1, "2026-08-30", "POWER", 60)
	require.NoError(t, err)

	assert.Equal(t, 3.3, out.Series["MAIN"][11])
	assert.Equal(t, 0.0, out.Series["STANDBY"][11])
}

func TestIntradayMergesSlimSamples(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	samples := &fakeEnergySampleStore{byKind: map[models.MeterKind][]*models.EnergySample{
		models.MeterStandby: {
			{SiteID: 1, MeterKind: models.MeterStandby, SampleTime: day.Add(14 * time.Hour), TotalACPowerKw: 2.2},
		},
	}}
	svc := newTestService(&fakeReadingStore{}, samples, &fakeDayMeterStore{})

	out, err := svc.BuildIntradaySeries(context.Background(), 1, "2026-08-30", "TOTAL_AC_POWER", 60)
	require.NoError(t, err)
	assert.Equal(t, 2.2, out.Series["STANDBY"][14])
}

func TestBuildDayMeterSeries(t *testing.T) {
	dayMeters := &fakeDayMeterStore{rows: []*models.ReadingDayMeter{
		{SiteID: 1, MeterKind: models.MeterMain, Day: time.Now().UTC().Format("2006-01-02"),
			ACActiveEnergyKwh: 31.5, MaxACPowerKw: 6.1},
	}}
	svc := newTestService(&fakeReadingStore{}, &fakeEnergySampleStore{}, dayMeters)

	out, err := svc.BuildDayMeterSeries(context.Background(), 1, 7)
	require.NoError(t, err)

	require.Len(t, out.Labels, 7)
	main := out.Series["acActiveEnergyKwh"]["MAIN"]
	require.Len(t, main, 7)
	assert.Equal(t, 31.5, main[6]) // 今天是最后一个标签
	assert.Equal(t, 0.0, main[0]) // 没有聚合行的天补 0
	assert.Equal(t, 6.1, out.Series["maxAcPowerKw"]["MAIN"][6])
}
