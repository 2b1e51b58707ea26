package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

type fakeSiteStore struct {
	count   int
	created []*models.Site
}

func (f *fakeSiteStore) CountSites(ctx context.Context) (int, error) { return f.count, nil }

func (f *fakeSiteStore) CreateSite(ctx context.Context, site *models.Site) (int64, error) {
	f.created = append(f.created, site)
	return 1, nil
}

type fakeDeviceStore struct {
	created []*models.Device
}

func (f *fakeDeviceStore) CreateDevice(ctx context.Context, d *models.Device) (int64, error) {
	f.created = append(f.created, d)
	return 1, nil
}

func TestSeedIfEmpty(t *testing.T) {
	cfg := config.MonitoringConfig{Timezone: "Asia/Kolkata", SeedSiteName: "Legha Krishi Farm", SeedDeviceName: "Main Inverter"}
	sites := &fakeSiteStore{}
	devices := &fakeDeviceStore{}

	seeded, err := SeedIfEmpty(context.Background(), cfg, sites, devices, zap.NewNop())

	require.NoError(t, err)
	assert.True(t, seeded)
	require.Len(t, sites.created, 1)
	assert.Equal(t, "Legha Krishi Farm", sites.created[0].Name)
	assert.Equal(t, models.SiteStatusActive, sites.created[0].Status)
	require.Len(t, devices.created, 1)
	assert.Equal(t, "Main Inverter", devices.created[0].Name)
	assert.NotEmpty(t, devices.created[0].Token)
	require.NotNil(t, devices.created[0].DefaultMeterKind)
	assert.Equal(t, models.MeterMain, *devices.created[0].DefaultMeterKind)
}

func TestSeedSkipsNonEmptyDatabase(t *testing.T) {
	sites := &fakeSiteStore{count: 3}
	devices := &fakeDeviceStore{}

	seeded, err := SeedIfEmpty(context.Background(), config.MonitoringConfig{}, sites, devices, zap.NewNop())

	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Empty(t, sites.created)
	assert.Empty(t, devices.created)
}
