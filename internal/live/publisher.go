package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

const (
	tickChannel    = "live:ticks"
	tickKeyPrefix  = "live:tick:"
	tickCacheTTL   = 2 * time.Minute
	tickLookback   = 10 * time.Minute
	tickTimeLayout = "15:04"
)

// SiteStore 站点列表读取
type SiteStore interface {
	ListActiveSites(ctx context.Context) ([]*models.Site, error)
}

// ReadingStore 每表最新读数
type ReadingStore interface {
	LatestPerMeterSince(ctx context.Context, siteID int64, since time.Time) (map[models.MeterKind]*models.Reading, error)
}

// MeterTick 单表的最新实时值
type MeterTick struct {
	MeterKind models.MeterKind `json:"meterKind"`
	PowerKw   *float64         `json:"powerKw,omitempty"`
	EnergyKwh *float64         `json:"energyKwh,omitempty"`
	SampleAt  time.Time        `json:"sampleAt"`
}

// IntradayTick 一个站点的实时推送帧
type IntradayTick struct {
	SiteID int64       `json:"siteId"`
	Label  string      `json:"label"` // 本地时间 "HH:mm"
	Meters []MeterTick `json:"meters"`
	At     time.Time   `json:"at"`
}

// Publisher 周期性把每站点的最新读数写入 Redis 缓存并发布到订阅频道
// Redis 故障只记录日志，不影响采集与检测主流程
type Publisher struct {
	monitoring config.MonitoringConfig
	sites      SiteStore
	readings   ReadingStore
	rdb        *redis.Client
	logger     *zap.Logger

	now func() time.Time
}

// NewPublisher 创建实时推送器
func NewPublisher(
	monitoring config.MonitoringConfig,
	sites SiteStore,
	readings ReadingStore,
	rdb *redis.Client,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		monitoring: monitoring,
		sites:      sites,
		readings:   readings,
		rdb:        rdb,
		logger:     logger,
		now:        time.Now,
	}
}

// Run 执行一轮推送；单站点错误只记录，不中断其余站点
func (p *Publisher) Run(ctx context.Context) error {
	sites, err := p.sites.ListActiveSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	for _, site := range sites {
		if err := p.publishSite(ctx, site); err != nil {
			p.logger.Error("live tick publish failed",
				zap.Int64("site_id", site.ID), zap.Error(err))
		}
	}
	return nil
}

func (p *Publisher) publishSite(ctx context.Context, site *models.Site) error {
	now := p.now()
	latest, err := p.readings.LatestPerMeterSince(ctx, site.ID, now.Add(-tickLookback))
	if err != nil {
		return fmt.Errorf("failed to load latest readings: %w", err)
	}
	if len(latest) == 0 {
		return nil // 近期无数据不推空帧
	}

	tick := IntradayTick{
		SiteID: site.ID,
		Label:  now.In(p.siteLocation(site)).Format(tickTimeLayout),
		At:     now,
	}
	for _, kind := range models.AllMeterKinds {
		r, ok := latest[kind]
		if !ok {
			continue
		}
		tick.Meters = append(tick.Meters, MeterTick{
			MeterKind: kind,
			PowerKw:   tickPower(r),
			EnergyKwh: tickEnergy(r),
			SampleAt:  r.Ts,
		})
	}

	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}

	key := fmt.Sprintf("%s%d", tickKeyPrefix, site.ID)
	if err := p.rdb.Set(ctx, key, payload, tickCacheTTL).Err(); err != nil {
		p.logger.Warn("redis tick cache write failed",
			zap.Int64("site_id", site.ID), zap.Error(err))
	}
	if err := p.rdb.Publish(ctx, tickChannel, payload).Err(); err != nil {
		p.logger.Warn("redis tick publish failed",
			zap.Int64("site_id", site.ID), zap.Error(err))
	}
	return nil
}

// LatestTick 读取站点最近一次缓存的推送帧；无缓存返回 nil
func (p *Publisher) LatestTick(ctx context.Context, siteID int64) (*IntradayTick, error) {
	key := fmt.Sprintf("%s%d", tickKeyPrefix, siteID)
	raw, err := p.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tick cache: %w", err)
	}
	var tick IntradayTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, fmt.Errorf("failed to decode tick cache: %w", err)
	}
	return &tick, nil
}

func (p *Publisher) siteLocation(site *models.Site) *time.Location {
	tz := site.Timezone
	if tz == "" {
		tz = p.monitoring.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

func tickPower(r *models.Reading) *float64 {
	if r.TotalACPowerKw != nil {
		return r.TotalACPowerKw
	}
	return r.PowerKw
}

func tickEnergy(r *models.Reading) *float64 {
	if r.DailyACEnergyKwh != nil {
		return r.DailyACEnergyKwh
	}
	return r.EnergyKwh
}
