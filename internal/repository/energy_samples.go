package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// EnergySamplesRepository 瘦格式遥测样本仓库（批量推送路径）
type EnergySamplesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEnergySamplesRepository 创建瘦样本仓库
func NewEnergySamplesRepository(db *sql.DB, logger *zap.Logger) *EnergySamplesRepository {
	return &EnergySamplesRepository{db: db, logger: logger}
}

const energySampleColumns = `
	id, site_id, meter_kind, sample_time,
	total_ac_power_kw,
	daily_ac_energy_kwh, daily_ac_export_kwh, daily_ac_import_kwh, daily_dc_energy_kwh,
	device_id, firmware`

func scanEnergySample(s interface{ Scan(...interface{}) error }) (*models.EnergySample, error) {
	var es models.EnergySample
	var meterKind string
	var deviceID, firmware sql.NullString

	err := s.Scan(
		&es.ID, &es.SiteID, &meterKind, &es.SampleTime,
		&es.TotalACPowerKw,
		&es.DailyACEnergyKwh, &es.DailyACExportKwh, &es.DailyACImportKwh, &es.DailyDCEnergyKwh,
		&deviceID, &firmware,
	)
	if err != nil {
		return nil, err
	}

	if mk, ok := models.ParseMeterKind(meterKind); ok {
		es.MeterKind = mk
	}
	if deviceID.Valid {
		es.DeviceID = &deviceID.String
	}
	if firmware.Valid {
		es.Firmware = &firmware.String
	}
	return &es, nil
}

// InsertIgnoreDuplicate 插入瘦样本；命中唯一约束 (site, meter, time) 时静默跳过
// 返回是否真正插入（false 表示重复被去重）
func (r *EnergySamplesRepository) InsertIgnoreDuplicate(ctx context.Context, es *models.EnergySample) (bool, error) {
	if es == nil {
		return false, fmt.Errorf("sample is required")
	}
	if es.SiteID <= 0 {
		return false, fmt.Errorf("site_id is required")
	}
	if es.MeterKind == "" {
		return false, fmt.Errorf("meter_kind is required")
	}
	if es.SampleTime.IsZero() {
		return false, fmt.Errorf("sample_time is required")
	}

	query := `
		INSERT INTO energy_samples (
			site_id, meter_kind, sample_time,
			total_ac_power_kw,
			daily_ac_energy_kwh, daily_ac_export_kwh, daily_ac_import_kwh, daily_dc_energy_kwh,
			device_id, firmware
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT uq_es_site_kind_time DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		es.SiteID, string(es.MeterKind), es.SampleTime,
		es.TotalACPowerKw,
		es.DailyACEnergyKwh, es.DailyACExportKwh, es.DailyACImportKwh, es.DailyDCEnergyKwh,
		es.DeviceID, es.Firmware,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert energy sample: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListBySiteMeterAndRange 查询站点指定计量点在 [from, to) 内的瘦样本（升序）
func (r *EnergySamplesRepository) ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time) ([]*models.EnergySample, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + energySampleColumns + ` FROM energy_samples
		WHERE site_id = $1 AND meter_kind = $2 AND sample_time >= $3 AND sample_time < $4
		ORDER BY sample_time ASC`

	rows, err := r.db.QueryContext(ctx, query, siteID, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query energy samples: %w", err)
	}
	defer rows.Close()

	samples := []*models.EnergySample{}
	for rows.Next() {
		es, err := scanEnergySample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan energy sample: %w", err)
		}
		samples = append(samples, es)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate energy samples: %w", err)
	}
	return samples, nil
}

// Exists 判断 (site, meter, time) 是否已存在
func (r *EnergySamplesRepository) Exists(ctx context.Context, siteID int64, kind models.MeterKind, sampleTime time.Time) (bool, error) {
	if siteID <= 0 {
		return false, fmt.Errorf("site_id is required")
	}

	var count int
	query := `SELECT COUNT(*) FROM energy_samples WHERE site_id = $1 AND meter_kind = $2 AND sample_time = $3`
	if err := r.db.QueryRowContext(ctx, query, siteID, string(kind), sampleTime).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check energy sample existence: %w", err)
	}
	return count > 0, nil
}
