package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// AlertDeliveriesRepository 告警投递记录仓库（追加写，审计用）
type AlertDeliveriesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertDeliveriesRepository 创建投递记录仓库
func NewAlertDeliveriesRepository(db *sql.DB, logger *zap.Logger) *AlertDeliveriesRepository {
	return &AlertDeliveriesRepository{db: db, logger: logger}
}

const deliveryColumns = `id, alert_id, channel, success, status_code, code, message, response, attempted_at`

func scanDelivery(s interface{ Scan(...interface{}) error }) (*models.AlertDelivery, error) {
	var d models.AlertDelivery
	var alertID sql.NullInt64
	var statusCode sql.NullInt64
	var channel string

	err := s.Scan(&d.ID, &alertID, &channel, &d.Success, &statusCode, &d.Code, &d.Message, &d.Response, &d.AttemptedAt)
	if err != nil {
		return nil, err
	}
	d.Channel = models.Channel(channel)
	if alertID.Valid {
		d.AlertID = &alertID.Int64
	}
	if statusCode.Valid {
		v := int(statusCode.Int64)
		d.StatusCode = &v
	}
	return &d, nil
}

// Insert 写入一条投递记录（响应体已在上游截断）
func (r *AlertDeliveriesRepository) Insert(ctx context.Context, d *models.AlertDelivery) (int64, error) {
	if d == nil {
		return 0, fmt.Errorf("delivery is required")
	}
	if d.Channel == "" {
		return 0, fmt.Errorf("channel is required")
	}
	if d.AttemptedAt.IsZero() {
		d.AttemptedAt = time.Now()
	}

	query := `
		INSERT INTO alert_deliveries (alert_id, channel, success, status_code, code, message, response, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		d.AlertID, string(d.Channel), d.Success, d.StatusCode, d.Code, d.Message,
		models.TruncateResponse(d.Response), d.AttemptedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert delivery: %w", err)
	}
	return id, nil
}

// ListByAlert 列出某条告警的全部投递记录（时间升序）
func (r *AlertDeliveriesRepository) ListByAlert(ctx context.Context, alertID int64) ([]*models.AlertDelivery, error) {
	if alertID <= 0 {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := `SELECT ` + deliveryColumns + ` FROM alert_deliveries
		WHERE alert_id = $1
		ORDER BY attempted_at ASC`

	rows, err := r.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []*models.AlertDelivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert deliveries: %w", err)
	}
	return deliveries, nil
}

// ListRecent 列出最近的投递记录（排障用，新在前）
func (r *AlertDeliveriesRepository) ListRecent(ctx context.Context, limit int) ([]*models.AlertDelivery, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + deliveryColumns + ` FROM alert_deliveries
		ORDER BY attempted_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []*models.AlertDelivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert deliveries: %w", err)
	}
	return deliveries, nil
}
