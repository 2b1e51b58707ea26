package aggregate

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
	sites []*models.Site
}

func (f *fakeSiteStore) GetSite(ctx context.Context, siteID int64) (*models.Site, error) {
	for _, s := range f.sites {
		if s.ID == siteID {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeSiteStore) ListActiveSites(ctx context.Context) ([]*models.Site, error) {
	return f.sites, nil
}

type fakeReadingStore struct {
	all    []*models.Reading
	byKind map[models.MeterKind][]*models.Reading
	legacy []*models.Reading
}

func (f *fakeReadingStore) ListBySiteAndRange(ctx context.Context, siteID int64, from, to time.Time) ([]*models.Reading, error) {
	return f.all, nil
}

func (f *fakeReadingStore) ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time, includeLegacyNull bool) ([]*models.Reading, error) {
	out := []*models.Reading{}
	out = append(out, f.byKind[kind]...)
	if includeLegacyNull {
		out = append(out, f.legacy...)
	}
	return out, nil
}

type fakeEnergySampleStore struct{}

func (f *fakeEnergySampleStore) ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.EnergySample, error) {
	return nil, nil
}

type fakeDayStore struct {
	upserts []*models.ReadingDay
}

func (f *fakeDayStore) Upsert(ctx context.Context, rd *models.ReadingDay) error {
	f.upserts = append(f.upserts, rd)
	return nil
}

type fakeDayMeterStore struct {
	upserts []*models.ReadingDayMeter
}

func (f *fakeDayMeterStore) Upsert(ctx context.Context, rdm *models.ReadingDayMeter) error {
	f.upserts = append(f.upserts, rdm)
	return nil
}

func f64(v float64) *float64 { return &v }

func newTestService(readings *fakeReadingStore, days *fakeDayStore, dayMeters *fakeDayMeterStore) *Service {
	cfg := config.MonitoringConfig{Timezone: "UTC"}
	sites := &fakeSiteStore{sites: []*models.Site{{ID: 1, Timezone: "UTC", Status: models.SiteStatusActive}}}
	return NewService(cfg, sites, readings, &fakeEnergySampleStore{}, days, dayMeters, zap.NewNop())
}

func TestAggregateTodayForSite(t *testing.T) {
	now := time.Now().UTC()
	readings := &fakeReadingStore{all: []*models.Reading{
		{SiteID: 1, Ts: now.Add(-4 * time.Hour), EnergyKwh: f64(1200), PowerKw: f64(2.0)},
		{SiteID: 1, Ts: now.Add(-2 * time.Hour), EnergyKwh: f64(1218), PowerKw: f64(6.5)},
		{SiteID: 1, Ts: now.Add(-1 * time.Hour), EnergyKwh: f64(1230.5), PowerKw: f64(4.0)},
	}}
	days := &fakeDayStore{}
	svc := newTestService(readings, days, &fakeDayMeterStore{})

	rd, err := svc.AggregateTodayForSite(context.Background(), 1)

	require.NoError(t, err)
	assert.InDelta(t, 30.5, rd.EnergyTodayKwh, 1e-9)
	assert.Equal(t, 6.5, rd.MaxPowerKw)
	require.NotNil(t, rd.LastSampleAt)
	require.Len(t, days.upserts, 1)
}

func TestAggregateTodayForSite_NoSamplesWritesZeroRow(t *testing.T) {
	days := &fakeDayStore{}
	svc := newTestService(&fakeReadingStore{}, days, &fakeDayMeterStore{})

	rd, err := svc.AggregateTodayForSite(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0.0, rd.EnergyTodayKwh)
	assert.Equal(t, 0.0, rd.MaxPowerKw)
	assert.Nil(t, rd.LastSampleAt)
	require.Len(t, days.upserts, 1)
}

func TestAggregateTodayForSite_NegativeDeltaFloorsAtZero(t *testing.T) {
	now := time.Now().UTC()
	// 计数器回绕：末值小于首值
	readings := &fakeReadingStore{all: []*models.Reading{
		{SiteID: 1, Ts: now.Add(-2 * time.Hour), EnergyKwh: f64(500)},
		{SiteID: 1, Ts: now.Add(-1 * time.Hour), EnergyKwh: f64(10)},
	}}
	svc := newTestService(readings, &fakeDayStore{}, &fakeDayMeterStore{})

	rd, err := svc.AggregateTodayForSite(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 0.0, rd.EnergyTodayKwh)
}

func TestAggregateDayPerMeter_DailyFieldPreferred(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		models.MeterMain: {
			{SiteID: 1, Ts: day.Add(10 * time.Hour), DailyACEnergyKwh: f64(12), TotalACEnergyKwh: f64(3000)},
			{SiteID: 1, Ts: day.Add(15 * time.Hour), DailyACEnergyKwh: f64(29.5), TotalACEnergyKwh: f64(3017)},
		},
	}}
	dayMeters := &fakeDayMeterStore{}
	svc := newTestService(readings, &fakeDayStore{}, dayMeters)

	rdm, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterMain)

	require.NoError(t, err)
	assert.Equal(t, 29.5, rdm.ACActiveEnergyKwh)
	require.Len(t, dayMeters.upserts, 1)
}

func TestAggregateDayPerMeter_CumulativeFallback(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	// 当日字段整窗缺失：退回 max(累计)-min(累计)
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		models.MeterMain: {
			{SiteID: 1, Ts: day.Add(9 * time.Hour), TotalACEnergyKwh: f64(3000)},
			{SiteID: 1, Ts: day.Add(16 * time.Hour), TotalACEnergyKwh: f64(3042)},
		},
	}}
	svc := newTestService(readings, &fakeDayStore{}, &fakeDayMeterStore{})

	rdm, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterMain)

	require.NoError(t, err)
	assert.Equal(t, 42.0, rdm.ACActiveEnergyKwh)
}

func TestAggregateDayPerMeter_LegacyPowerFallback(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	readings := &fakeReadingStore{legacy: []*models.Reading{
		{SiteID: 1, Ts: day.Add(11 * time.Hour), PowerKw: f64(5.2)},
		{SiteID: 1, Ts: day.Add(12 * time.Hour), PowerKw: f64(4.8)},
	}}
	svc := newTestService(readings, &fakeDayStore{}, &fakeDayMeterStore{})

	// 旧数据 meter_kind 为空，只有请求 MAIN 时并入
	rdm, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterMain)
	require.NoError(t, err)
	assert.Equal(t, 5.2, rdm.MaxACPowerKw)

	other, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterCheck)
	require.NoError(t, err)
	assert.Equal(t, 0.0, other.MaxACPowerKw)
}

func TestAggregateDayPerMeter_NoSamplesWritesZeroRow(t *testing.T) {
	dayMeters := &fakeDayMeterStore{}
	svc := newTestService(&fakeReadingStore{}, &fakeDayStore{}, dayMeters)

	rdm, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterStandby)

	require.NoError(t, err)
	assert.Equal(t, models.MeterStandby, rdm.MeterKind)
	assert.Equal(t, 0.0, rdm.ACActiveEnergyKwh)
	require.Len(t, dayMeters.upserts, 1)
}

func TestAggregateIdempotent(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	readings := &fakeReadingStore{byKind: map[models.MeterKind][]*models.Reading{
		models.MeterMain: {
			{SiteID: 1, Ts: day.Add(10 * time.Hour), DailyACEnergyKwh: f64(18)},
		},
	}}
	dayMeters := &fakeDayMeterStore{}
	svc := newTestService(readings, &fakeDayStore{}, dayMeters)

	first, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterMain)
	require.NoError(t, err)
	second, err := svc.AggregateDayPerMeter(context.Background(), 1, "2026-08-30", models.MeterMain)
	require.NoError(t, err)

	assert.Equal(t, first.ACActiveEnergyKwh, second.ACActiveEnergyKwh)
	assert.Equal(t, first.MaxACPowerKw, second.MaxACPowerKw)
	require.Len(t, dayMeters.upserts, 2) // 两次都是覆盖写
}
