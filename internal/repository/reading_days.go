package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// ReadingDaysRepository 站点级日聚合仓库
type ReadingDaysRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingDaysRepository 创建站点级日聚合仓库
func NewReadingDaysRepository(db *sql.DB, logger *zap.Logger) *ReadingDaysRepository {
	return &ReadingDaysRepository{db: db, logger: logger}
}

func scanReadingDay(s interface{ Scan(...interface{}) error }) (*models.ReadingDay, error) {
	var rd models.ReadingDay
	var lastSample sql.NullTime

	err := s.Scan(&rd.ID, &rd.SiteID, &rd.Day, &rd.EnergyTodayKwh, &rd.MaxPowerKw, &lastSample, &rd.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastSample.Valid {
		rd.LastSampleAt = &lastSample.Time
	}
	return &rd, nil
}

const readingDayColumns = `id, site_id, to_char(day, 'YYYY-MM-DD'), energy_today_kwh, max_power_kw, last_sample_at, updated_at`

// Upsert 按 (site_id, day) 原子覆盖写入（重跑聚合总是覆盖不累加）
func (r *ReadingDaysRepository) Upsert(ctx context.Context, rd *models.ReadingDay) error {
	if rd == nil {
		return fmt.Errorf("reading day is required")
	}
	if rd.SiteID <= 0 {
		return fmt.Errorf("site_id is required")
	}
	if rd.Day == "" {
		return fmt.Errorf("day is required")
	}

	query := `
		INSERT INTO reading_days (site_id, day, energy_today_kwh, max_power_kw, last_sample_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT ON CONSTRAINT uq_rd_site_day DO UPDATE SET
			energy_today_kwh = EXCLUDED.energy_today_kwh,
			max_power_kw = EXCLUDED.max_power_kw,
			last_sample_at = EXCLUDED.last_sample_at,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query, rd.SiteID, rd.Day, rd.EnergyTodayKwh, rd.MaxPowerKw, rd.LastSampleAt); err != nil {
		return fmt.Errorf("failed to upsert reading day: %w", err)
	}
	return nil
}

// GetBySiteAndDay 获取站点某天的聚合行；不存在返回 nil
func (r *ReadingDaysRepository) GetBySiteAndDay(ctx context.Context, siteID int64, day string) (*models.ReadingDay, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}
	if day == "" {
		return nil, fmt.Errorf("day is required")
	}

	query := `SELECT ` + readingDayColumns + ` FROM reading_days WHERE site_id = $1 AND day = $2`

	rd, err := scanReadingDay(r.db.QueryRowContext(ctx, query, siteID, day))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reading day: %w", err)
	}
	return rd, nil
}

// ListBySiteAndDayRange 查询站点 [fromDay, toDay] 的聚合行（按天升序）
func (r *ReadingDaysRepository) ListBySiteAndDayRange(ctx context.Context, siteID int64, fromDay, toDay string) ([]*models.ReadingDay, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + readingDayColumns + ` FROM reading_days
		WHERE site_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC`

	rows, err := r.db.QueryContext(ctx, query, siteID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading days: %w", err)
	}
	defer rows.Close()

	days := []*models.ReadingDay{}
	for rows.Next() {
		rd, err := scanReadingDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading day: %w", err)
		}
		days = append(days, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading days: %w", err)
	}
	return days, nil
}
