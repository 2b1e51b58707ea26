package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

type fakeSiteStore struct {
	sites []*models.Site
}

func (f *fakeSiteStore) ListActiveSites(ctx context.Context) ([]*models.Site, error) {
	return f.sites, nil
}

type fakeReadingStore struct {
	latest map[models.MeterKind]*models.Reading
}

func (f *fakeReadingStore) LatestPerMeterSince(ctx context.Context, siteID int64, since time.Time) (map[models.MeterKind]*models.Reading, error) {
	return f.latest, nil
}

func f64(v float64) *float64 { return &v }

func newTestPublisher(t *testing.T, readings *fakeReadingStore) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := config.MonitoringConfig{Timezone: "UTC"}
	sites := &fakeSiteStore{sites: []*models.Site{{ID: 1, Timezone: "UTC", Status: models.SiteStatusActive}}}
	return NewPublisher(cfg, sites, readings, rdb, zap.NewNop()), rdb
}

func TestPublisherCachesTick(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	readings := &fakeReadingStore{latest: map[models.MeterKind]*models.Reading{
		models.MeterMain:    {SiteID: 1, Ts: ts, TotalACPowerKw: f64(4.2), DailyACEnergyKwh: f64(18.5)},
		models.MeterStandby: {SiteID: 1, Ts: ts.Add(-time.Minute), PowerKw: f64(0.5)},
	}}
	pub, rdb := newTestPublisher(t, readings)
	pub.now = func() time.Time { return ts.Add(30 * time.Second) }

	require.NoError(t, pub.Run(context.Background()))

	raw, err := rdb.Get(context.Background(), "live:tick:1").Bytes()
	require.NoError(t, err)

	var tick IntradayTick
	require.NoError(t, json.Unmarshal(raw, &tick))
	assert.Equal(t, int64(1), tick.SiteID)
	assert.Equal(t, "12:30", tick.Label)
	require.Len(t, tick.Meters, 2)
	// Meters 顺序固定为 MAIN/STANDBY/CHECK 的声明顺序
	assert.Equal(t, models.MeterMain, tick.Meters[0].MeterKind)
	assert.Equal(t, 4.2, *tick.Meters[0].PowerKw)
	assert.Equal(t, 18.5, *tick.Meters[0].EnergyKwh)
	assert.Equal(t, models.MeterStandby, tick.Meters[1].MeterKind)
	assert.Equal(t, 0.5, *tick.Meters[1].PowerKw)
}

func TestPublisherSkipsSiteWithoutRecentData(t *testing.T) {
	pub, rdb := newTestPublisher(t, &fakeReadingStore{})

	require.NoError(t, pub.Run(context.Background()))

	err := rdb.Get(context.Background(), "live:tick:1").Err()
	assert.Equal(t, redis.Nil, err)
}

func TestLatestTickRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	readings := &fakeReadingStore{latest: map[models.MeterKind]*models.Reading{
		models.MeterMain: {SiteID: 1, Ts: ts, TotalACPowerKw: f64(3.3)},
	}}
	pub, _ := newTestPublisher(t, readings)
	pub.now = func() time.Time { return ts }

	require.NoError(t, pub.Run(context.Background()))

	tick, err := pub.LatestTick(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, "12:30", tick.Label)

	missing, err := pub.LatestTick(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
