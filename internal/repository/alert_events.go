package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// AlertEventsRepository 告警事件仓库
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建告警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{db: db, logger: logger}
}

const alertColumns = `id, site_id, device_id, type, message, triggered_at, acknowledged`

func scanAlert(s interface{ Scan(...interface{}) error }) (*models.AlertEvent, error) {
	var a models.AlertEvent
	var typ string
	if err := s.Scan(&a.ID, &a.SiteID, &a.DeviceID, &typ, &a.Message, &a.TriggeredAt, &a.Acknowledged); err != nil {
		return nil, err
	}
	a.Type = models.AlertType(typ)
	return &a, nil
}

// Insert 写入告警事件，返回ID
func (r *AlertEventsRepository) Insert(ctx context.Context, a *models.AlertEvent) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("alert is required")
	}
	if a.SiteID <= 0 {
		return 0, fmt.Errorf("site_id is required")
	}
	if a.DeviceID <= 0 {
		return 0, fmt.Errorf("device_id is required")
	}
	if a.Type == "" {
		return 0, fmt.Errorf("type is required")
	}
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = time.Now()
	}

	query := `
		INSERT INTO alert_events (site_id, device_id, type, message, triggered_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		a.SiteID, a.DeviceID, string(a.Type), a.Message, a.TriggeredAt, a.Acknowledged,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert event: %w", err)
	}
	return id, nil
}

// CountRecentByDeviceAndType 统计设备最近 withinMinutes 分钟内同类型告警数（去重窗口检查）
func (r *AlertEventsRepository) CountRecentByDeviceAndType(ctx context.Context, deviceID int64, alertType models.AlertType, withinMinutes int) (int, error) {
	if deviceID <= 0 {
		return 0, fmt.Errorf("device_id is required")
	}
	if alertType == "" {
		return 0, fmt.Errorf("type is required")
	}

	threshold := time.Now().Add(-time.Duration(withinMinutes) * time.Minute)

	var count int
	query := `SELECT COUNT(*) FROM alert_events WHERE device_id = $1 AND type = $2 AND triggered_at > $3`
	if err := r.db.QueryRowContext(ctx, query, deviceID, string(alertType), threshold).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent alerts: %w", err)
	}
	return count, nil
}

// LatestUnacknowledgedSince 获取设备 since 之后最新的未确认告警；没有返回 nil
func (r *AlertEventsRepository) LatestUnacknowledgedSince(ctx context.Context, deviceID int64, since time.Time) (*models.AlertEvent, error) {
	if deviceID <= 0 {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `SELECT ` + alertColumns + ` FROM alert_events
		WHERE device_id = $1 AND acknowledged = FALSE AND triggered_at > $2
		ORDER BY triggered_at DESC
		LIMIT 1`

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, deviceID, since))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest unacknowledged alert: %w", err)
	}
	return a, nil
}

// LatestByDevice 获取设备最新的一条告警；没有返回 nil
func (r *AlertEventsRepository) LatestByDevice(ctx context.Context, deviceID int64) (*models.AlertEvent, error) {
	if deviceID <= 0 {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `SELECT ` + alertColumns + ` FROM alert_events
		WHERE device_id = $1
		ORDER BY triggered_at DESC
		LIMIT 1`

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest alert: %w", err)
	}
	return a, nil
}

// Acknowledge 将指定告警置为已确认
func (r *AlertEventsRepository) Acknowledge(ctx context.Context, alertID int64) error {
	if alertID <= 0 {
		return fmt.Errorf("alert_id is required")
	}

	result, err := r.db.ExecContext(ctx, `UPDATE alert_events SET acknowledged = TRUE WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert not found: id=%d: %w", alertID, models.ErrNotFound)
	}
	return nil
}

// ListBySiteSince 列出站点 since 之后的告警（新在前，capped）
func (r *AlertEventsRepository) ListBySiteSince(ctx context.Context, siteID int64, since time.Time, limit int) ([]*models.AlertEvent, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}
	if limit <= 0 {
		limit = 5
	}

	query := `SELECT ` + alertColumns + ` FROM alert_events
		WHERE site_id = $1 AND triggered_at > $2
		ORDER BY triggered_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, siteID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.AlertEvent{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// ListBySiteBetween 列出站点时间区间内的全部告警（旧在前，用于导出）
func (r *AlertEventsRepository) ListBySiteBetween(ctx context.Context, siteID int64, from, to time.Time) ([]*models.AlertEvent, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + alertColumns + ` FROM alert_events
		WHERE site_id = $1 AND triggered_at >= $2 AND triggered_at < $3
		ORDER BY triggered_at ASC`

	rows, err := r.db.QueryContext(ctx, query, siteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.AlertEvent{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// GetAlert 根据ID获取告警
func (r *AlertEventsRepository) GetAlert(ctx context.Context, alertID int64) (*models.AlertEvent, error) {
	if alertID <= 0 {
		return nil, fmt.Errorf("alert_id is required")
	}

	a, err := scanAlert(r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alert_events WHERE id = $1`, alertID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found: id=%d: %w", alertID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}
