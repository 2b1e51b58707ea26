package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// SitesRepository 站点仓库
type SitesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSitesRepository 创建站点仓库
func NewSitesRepository(db *sql.DB, logger *zap.Logger) *SitesRepository {
	return &SitesRepository{db: db, logger: logger}
}

const siteColumns = `
	id, name, timezone, capacity_kw, status,
	offline_threshold_minutes, zero_threshold_kw, zero_window_minutes, zero_min_readings,
	daylight_start, daylight_end,
	notify_email_enabled, notify_email_to,
	notify_webhook_enabled, notify_webhook_url,
	notify_whatsapp_enabled, notify_whatsapp_to, notify_whatsapp_tpl,
	created_at`

func scanSite(s interface{ Scan(...interface{}) error }) (*models.Site, error) {
	var site models.Site
	var offlineMin, zeroWin, zeroMin sql.NullInt64
	var zeroKw sql.NullFloat64
	var dayStart, dayEnd, emailTo, webhookURL, waTo, waTpl sql.NullString

	err := s.Scan(
		&site.ID, &site.Name, &site.Timezone, &site.CapacityKw, &site.Status,
		&offlineMin, &zeroKw, &zeroWin, &zeroMin,
		&dayStart, &dayEnd,
		&site.NotifyEmailEnabled, &emailTo,
		&site.NotifyWebhookEnabled, &webhookURL,
		&site.NotifyWhatsappEnabled, &waTo, &waTpl,
		&site.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理可空字段
	if offlineMin.Valid {
		v := int(offlineMin.Int64)
		site.OfflineThresholdMinutes = &v
	}
	if zeroKw.Valid {
		site.ZeroThresholdKw = &zeroKw.Float64
	}
	if zeroWin.Valid {
		v := int(zeroWin.Int64)
		site.ZeroWindowMinutes = &v
	}
	if zeroMin.Valid {
		v := int(zeroMin.Int64)
		site.ZeroMinReadings = &v
	}
	if dayStart.Valid {
		site.DaylightStart = &dayStart.String
	}
	if dayEnd.Valid {
		site.DaylightEnd = &dayEnd.String
	}
	if emailTo.Valid {
		site.NotifyEmailTo = &emailTo.String
	}
	if webhookURL.Valid {
		site.NotifyWebhookURL = &webhookURL.String
	}
	if waTo.Valid {
		site.NotifyWhatsappTo = &waTo.String
	}
	if waTpl.Valid {
		site.NotifyWhatsappTpl = &waTpl.String
	}

	return &site, nil
}

// GetSite 根据ID获取站点
func (r *SitesRepository) GetSite(ctx context.Context, siteID int64) (*models.Site, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`

	site, err := scanSite(r.db.QueryRowContext(ctx, query, siteID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("site not found: id=%d: %w", siteID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// ListActiveSites 列出所有激活状态的站点
func (r *SitesRepository) ListActiveSites(ctx context.Context) ([]*models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE status = $1 ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, models.SiteStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	sites := []*models.Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sites: %w", err)
	}
	return sites, nil
}

// CountSites 统计站点数量（用于启动播种判断）
func (r *SitesRepository) CountSites(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return count, nil
}

// CreateSite 创建站点（启动播种使用）
func (r *SitesRepository) CreateSite(ctx context.Context, site *models.Site) (int64, error) {
	if site == nil {
		return 0, fmt.Errorf("site is required")
	}
	if site.Name == "" {
		return 0, fmt.Errorf("name is required")
	}
	if site.Status == "" {
		site.Status = models.SiteStatusActive
	}

	query := `
		INSERT INTO sites (name, timezone, capacity_kw, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		site.Name, site.Timezone, site.CapacityKw, site.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create site: %w", err)
	}
	return id, nil
}
