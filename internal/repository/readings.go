package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// ReadingsRepository 富格式遥测样本仓库
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建遥测样本仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{db: db, logger: logger}
}

const readingColumns = `
	id, site_id, device_id, meter_kind, ts,
	total_ac_power_kw,
	daily_ac_energy_kwh, daily_ac_export_kwh, daily_ac_import_kwh, daily_dc_energy_kwh,
	total_ac_energy_kwh, total_ac_export_kwh, total_ac_import_kwh, total_dc_energy_kwh,
	power_kw, energy_kwh, firmware, status`

func scanReading(s interface{ Scan(...interface{}) error }) (*models.Reading, error) {
	var rd models.Reading
	var deviceID sql.NullInt64
	var meterKind, firmware, status sql.NullString
	var totalPower, dAC, dExp, dImp, dDC, tAC, tExp, tImp, tDC, powerKw, energyKwh sql.NullFloat64

	err := s.Scan(
		&rd.ID, &rd.SiteID, &deviceID, &meterKind, &rd.Ts,
		&totalPower,
		&dAC, &dExp, &dImp, &dDC,
		&tAC, &tExp, &tImp, &tDC,
		&powerKw, &energyKwh, &firmware, &status,
	)
	if err != nil {
		return nil, err
	}

	if deviceID.Valid {
		rd.DeviceID = &deviceID.Int64
	}
	if meterKind.Valid {
		if mk, ok := models.ParseMeterKind(meterKind.String); ok {
			rd.MeterKind = &mk
		}
	}
	setFloat := func(dst **float64, v sql.NullFloat64) {
		if v.Valid {
			f := v.Float64
			*dst = &f
		}
	}
	setFloat(&rd.TotalACPowerKw, totalPower)
	setFloat(&rd.DailyACEnergyKwh, dAC)
	setFloat(&rd.DailyACExportKwh, dExp)
	setFloat(&rd.DailyACImportKwh, dImp)
	setFloat(&rd.DailyDCEnergyKwh, dDC)
	setFloat(&rd.TotalACEnergyKwh, tAC)
	setFloat(&rd.TotalACExportKwh, tExp)
	setFloat(&rd.TotalACImportKwh, tImp)
	setFloat(&rd.TotalDCEnergyKwh, tDC)
	setFloat(&rd.PowerKw, powerKw)
	setFloat(&rd.EnergyKwh, energyKwh)
	if firmware.Valid {
		rd.Firmware = &firmware.String
	}
	if status.Valid {
		rd.Status = &status.String
	}
	return &rd, nil
}

// InsertReading 追加一条遥测样本（只增不改）
func (r *ReadingsRepository) InsertReading(ctx context.Context, rd *models.Reading) (int64, error) {
	if rd == nil {
		return 0, fmt.Errorf("reading is required")
	}
	if rd.SiteID <= 0 {
		return 0, fmt.Errorf("site_id is required")
	}
	if rd.Ts.IsZero() {
		return 0, fmt.Errorf("ts is required")
	}

	var meterKind interface{}
	if rd.MeterKind != nil {
		meterKind = string(*rd.MeterKind)
	}

	query := `
		INSERT INTO readings (
			site_id, device_id, meter_kind, ts,
			total_ac_power_kw,
			daily_ac_energy_kwh, daily_ac_export_kwh, daily_ac_import_kwh, daily_dc_energy_kwh,
			total_ac_energy_kwh, total_ac_export_kwh, total_ac_import_kwh, total_dc_energy_kwh,
			power_kw, energy_kwh, firmware, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rd.SiteID, rd.DeviceID, meterKind, rd.Ts,
		rd.TotalACPowerKw,
		rd.DailyACEnergyKwh, rd.DailyACExportKwh, rd.DailyACImportKwh, rd.DailyDCEnergyKwh,
		rd.TotalACEnergyKwh, rd.TotalACExportKwh, rd.TotalACImportKwh, rd.TotalDCEnergyKwh,
		rd.PowerKw, rd.EnergyKwh, rd.Firmware, rd.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reading: %w", err)
	}
	return id, nil
}

// ListBySiteAndRange 查询站点在 [from, to) 内的样本（升序）
func (r *ReadingsRepository) ListBySiteAndRange(ctx context.Context, siteID int64, from, to time.Time) ([]*models.Reading, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE site_id = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC`

	return r.queryReadings(ctx, query, siteID, from, to)
}

// ListBySiteMeterAndRange 查询站点指定计量点在 [from, to) 内的样本（升序）
// includeLegacyNull 为真时并入 meter_kind 为空的旧数据（仅 MAIN 调用方使用）
func (r *ReadingsRepository) ListBySiteMeterAndRange(ctx context.Context, siteID int64, kind models.MeterKind, from, to time.Time, includeLegacyNull bool) ([]*models.Reading, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	var query string
	if includeLegacyNull {
		query = `SELECT ` + readingColumns + ` FROM readings
			WHERE site_id = $1 AND (meter_kind = $2 OR meter_kind IS NULL) AND ts >= $3 AND ts < $4
			ORDER BY ts ASC`
	} else {
		query = `SELECT ` + readingColumns + ` FROM readings
			WHERE site_id = $1 AND meter_kind = $2 AND ts >= $3 AND ts < $4
			ORDER BY ts ASC`
	}

	return r.queryReadings(ctx, query, siteID, string(kind), from, to)
}

// ListRecentBySite 查询站点自 since 以来的样本（升序，零功率窗口用）
func (r *ReadingsRepository) ListRecentBySite(ctx context.Context, siteID int64, since time.Time) ([]*models.Reading, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE site_id = $1 AND ts >= $2
		ORDER BY ts ASC`

	return r.queryReadings(ctx, query, siteID, since)
}

// LatestPerMeterSince 获取站点每个计量点自 since 以来的最新样本（实时播报用）
func (r *ReadingsRepository) LatestPerMeterSince(ctx context.Context, siteID int64, since time.Time) (map[models.MeterKind]*models.Reading, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT DISTINCT ON (COALESCE(meter_kind, 'MAIN')) ` + readingColumns + `
		FROM readings
		WHERE site_id = $1 AND ts >= $2
		ORDER BY COALESCE(meter_kind, 'MAIN'), ts DESC`

	readings, err := r.queryReadings(ctx, query, siteID, since)
	if err != nil {
		return nil, err
	}

	out := make(map[models.MeterKind]*models.Reading, len(readings))
	for _, rd := range readings {
		out[rd.EffectiveMeterKind()] = rd
	}
	return out, nil
}

func (r *ReadingsRepository) queryReadings(ctx context.Context, query string, args ...interface{}) ([]*models.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []*models.Reading{}
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return readings, nil
}
