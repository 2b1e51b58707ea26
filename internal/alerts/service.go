package alerts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

const (
	// 横幅告警的新鲜度窗口：只有这个窗口内的未确认告警才值得打断用户
	freshnessMinutes = 60
	// 最近告警列表的回看窗口与条数上限
	recentWindowHours = 24
	recentLimit       = 5
)

// AlertStore 告警读写
type AlertStore interface {
	LatestUnacknowledgedSince(ctx context.Context, deviceID int64, since time.Time) (*models.AlertEvent, error)
	LatestByDevice(ctx context.Context, deviceID int64) (*models.AlertEvent, error)
	Acknowledge(ctx context.Context, alertID int64) error
	ListBySiteSince(ctx context.Context, siteID int64, since time.Time, limit int) ([]*models.AlertEvent, error)
	ListBySiteBetween(ctx context.Context, siteID int64, from, to time.Time) ([]*models.AlertEvent, error)
}

// DeliveryStore 投递记录读取
type DeliveryStore interface {
	ListByAlert(ctx context.Context, alertID int64) ([]*models.AlertDelivery, error)
	ListRecent(ctx context.Context, limit int) ([]*models.AlertDelivery, error)
}

// SiteStore 站点读取
type SiteStore interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
}

// DeviceStore 设备读取
type DeviceStore interface {
	FirstBySite(ctx context.Context, siteID int64) (*models.Device, error)
}

// Dispatcher 通知分发
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device)
}

// Service 告警查询、确认、导出与手工测试发送
type Service struct {
	alerts     AlertStore
	deliveries DeliveryStore
	sites      SiteStore
	devices    DeviceStore
	dispatcher Dispatcher
	logger     *zap.Logger

	now func() time.Time
}

// NewService 创建告警服务
func NewService(
	alerts AlertStore,
	deliveries DeliveryStore,
	sites SiteStore,
	devices DeviceStore,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		alerts:     alerts,
		deliveries: deliveries,
		sites:      sites,
		devices:    devices,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// LastAlert 设备最新的"新鲜"未确认告警；没有返回 nil（前端横幅消失）
func (s *Service) LastAlert(ctx context.Context, deviceID int64) (*models.AlertEvent, error) {
	if deviceID <= 0 {
		return nil, fmt.Errorf("device_id is required: %w", models.ErrInvalidArgument)
	}
	since := s.now().Add(-freshnessMinutes * time.Minute)
	return s.alerts.LatestUnacknowledgedSince(ctx, deviceID, since)
}

// Acknowledge 确认一条告警
func (s *Service) Acknowledge(ctx context.Context, alertID int64) error {
	if alertID <= 0 {
		return fmt.Errorf("alert_id is required: %w", models.ErrInvalidArgument)
	}
	if err := s.alerts.Acknowledge(ctx, alertID); err != nil {
		return err
	}
	s.logger.Info("alert acknowledged", zap.Int64("alert_id", alertID))
	return nil
}

// AcknowledgeLatestForDevice 确认设备最新的一条告警（前端横幅只展示最新一条）
func (s *Service) AcknowledgeLatestForDevice(ctx context.Context, deviceID int64) (int64, error) {
	if deviceID <= 0 {
		return 0, fmt.Errorf("device_id is required: %w", models.ErrInvalidArgument)
	}
	latest, err := s.alerts.LatestByDevice(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, fmt.Errorf("no alerts for device %d: %w", deviceID, models.ErrNotFound)
	}
	if err := s.Acknowledge(ctx, latest.ID); err != nil {
		return 0, err
	}
	return latest.ID, nil
}

// RecentBySite 站点最近 24 小时告警，最多 5 条，新在前
func (s *Service) RecentBySite(ctx context.Context, siteID int64) ([]*models.AlertEvent, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required: %w", models.ErrInvalidArgument)
	}
	since := s.now().Add(-recentWindowHours * time.Hour)
	return s.alerts.ListBySiteSince(ctx, siteID, since, recentLimit)
}

// ExportCSV 把站点时间区间内的告警写成 CSV
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, siteID int64, from, to time.Time) error {
	if siteID <= 0 {
		return fmt.Errorf("site_id is required: %w", models.ErrInvalidArgument)
	}
	if !from.Before(to) {
		return fmt.Errorf("from must be before to: %w", models.ErrInvalidArgument)
	}

	events, err := s.alerts.ListBySiteBetween(ctx, siteID, from, to)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "site_id", "device_id", "type", "message", "triggered_at", "acknowledged"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, a := range events {
		record := []string{
			strconv.FormatInt(a.ID, 10),
			strconv.FormatInt(a.SiteID, 10),
			strconv.FormatInt(a.DeviceID, 10),
			string(a.Type),
			a.Message,
			a.TriggeredAt.Format(time.RFC3339),
			strconv.FormatBool(a.Acknowledged),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DeliveriesByAlert 一条告警的全部投递尝试（时间升序）
func (s *Service) DeliveriesByAlert(ctx context.Context, alertID int64) ([]*models.AlertDelivery, error) {
	if alertID <= 0 {
		return nil, fmt.Errorf("alert_id is required: %w", models.ErrInvalidArgument)
	}
	return s.deliveries.ListByAlert(ctx, alertID)
}

// RecentDeliveries 最近的投递记录（审计页）
func (s *Service) RecentDeliveries(ctx context.Context, limit int) ([]*models.AlertDelivery, error) {
	return s.deliveries.ListRecent(ctx, limit)
}

// SendTest 走真实通道发一条测试通知
// 告警本身不落库（ID 为 0），投递记录落库且 alert_id 为空
func (s *Service) SendTest(ctx context.Context, siteID int64) error {
	if siteID <= 0 {
		return fmt.Errorf("site_id is required: %w", models.ErrInvalidArgument)
	}
	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return err
	}
	device, err := s.devices.FirstBySite(ctx, siteID)
	if err != nil {
		return err
	}

	now := s.now()
	alert := &models.AlertEvent{
		SiteID:      siteID,
		Type:        models.AlertTest,
		Message:     fmt.Sprintf("Test notification from %s at %s", site.Name, now.Format("2006-01-02 15:04:05")),
		TriggeredAt: now,
	}
	if device != nil {
		alert.DeviceID = device.ID
	}

	s.dispatcher.Dispatch(ctx, alert, site, device)
	return nil
}
