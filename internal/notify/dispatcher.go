package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// DeliveryStore 投递记录写入
type DeliveryStore interface {
	Insert(ctx context.Context, d *models.AlertDelivery) (int64, error)
}

// Dispatcher 把一条告警依次投递到所有通道
// 每次尝试（包括跳过）各落一条投递记录；任何失败都不回传给调用方
type Dispatcher struct {
	channels   []Channel
	deliveries DeliveryStore
	logger     *zap.Logger

	now func() time.Time
}

// NewDispatcher 创建分发器
func NewDispatcher(channels []Channel, deliveries DeliveryStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		channels:   channels,
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}
}

// Dispatch 分发一条已落库的告警
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.AlertEvent, site *models.Site, device *models.Device) {
	for _, ch := range d.channels {
		result := ch.Send(ctx, alert, site, device)

		delivery := &models.AlertDelivery{
			Channel:     ch.Name(),
			Success:     result.Success,
			StatusCode:  result.StatusCode,
			Code:        result.Code,
			Message:     result.Message,
			Response:    models.TruncateResponse(result.Response),
			AttemptedAt: d.now(),
		}
		if alert != nil && alert.ID > 0 {
			id := alert.ID
			delivery.AlertID = &id
		}

		if _, err := d.deliveries.Insert(ctx, delivery); err != nil {
			d.logger.Error("failed to record alert delivery",
				zap.String("channel", string(ch.Name())),
				zap.String("code", result.Code),
				zap.Error(err))
		}

		if result.Success {
			d.logger.Info("alert delivered",
				zap.Int64("alert_id", alertID(alert)),
				zap.String("channel", string(ch.Name())),
				zap.String("code", result.Code))
		} else {
			d.logger.Warn("alert delivery not sent",
				zap.Int64("alert_id", alertID(alert)),
				zap.String("channel", string(ch.Name())),
				zap.String("code", result.Code),
				zap.String("message", result.Message))
		}
	}
}

func alertID(alert *models.AlertEvent) int64 {
	if alert == nil {
		return 0
	}
	return alert.ID
}
