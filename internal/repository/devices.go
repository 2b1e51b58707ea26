package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// DevicesRepository 设备仓库
type DevicesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDevicesRepository 创建设备仓库
func NewDevicesRepository(db *sql.DB, logger *zap.Logger) *DevicesRepository {
	return &DevicesRepository{db: db, logger: logger}
}

const deviceColumns = `id, site_id, name, type, active, token, last_seen, default_meter_kind, created_at`

func scanDevice(s interface{ Scan(...interface{}) error }) (*models.Device, error) {
	var d models.Device
	var lastSeen sql.NullTime
	var meterKind sql.NullString

	err := s.Scan(&d.ID, &d.SiteID, &d.Name, &d.Type, &d.Active, &d.Token, &lastSeen, &meterKind, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		d.LastSeen = &lastSeen.Time
	}
	if meterKind.Valid {
		if mk, ok := models.ParseMeterKind(meterKind.String); ok {
			d.DefaultMeterKind = &mk
		}
	}
	return &d, nil
}

// GetDevice 根据ID获取设备
func (r *DevicesRepository) GetDevice(ctx context.Context, deviceID int64) (*models.Device, error) {
	if deviceID <= 0 {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("device not found: id=%d: %w", deviceID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// FirstBySite 获取站点下ID最小的设备
func (r *DevicesRepository) FirstBySite(ctx context.Context, siteID int64) (*models.Device, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE site_id = $1 ORDER BY id ASC LIMIT 1`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, siteID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no device for site: site_id=%d: %w", siteID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get first device: %w", err)
	}
	return d, nil
}

// FirstBySiteAndMeterKind 获取站点下默认计量点匹配的第一台设备（图例标注用）
func (r *DevicesRepository) FirstBySiteAndMeterKind(ctx context.Context, siteID int64, kind models.MeterKind) (*models.Device, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE site_id = $1 AND default_meter_kind = $2
		ORDER BY id ASC LIMIT 1`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, siteID, string(kind)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 没有配置该计量点的设备
		}
		return nil, fmt.Errorf("failed to get device by meter kind: %w", err)
	}
	return d, nil
}

// ListActiveDevices 列出所有激活设备（检测器轮询用）
func (r *DevicesRepository) ListActiveDevices(ctx context.Context) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE active = TRUE ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []*models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

// TouchLastSeen 推进设备的 last_seen（只前进不后退）
func (r *DevicesRepository) TouchLastSeen(ctx context.Context, deviceID int64, seenAt time.Time) error {
	if deviceID <= 0 {
		return fmt.Errorf("device_id is required")
	}

	query := `
		UPDATE devices
		SET last_seen = $2
		WHERE id = $1 AND (last_seen IS NULL OR last_seen < $2)
	`

	if _, err := r.db.ExecContext(ctx, query, deviceID, seenAt); err != nil {
		return fmt.Errorf("failed to touch last_seen: %w", err)
	}
	return nil
}

// CreateDevice 创建设备（启动播种使用）
func (r *DevicesRepository) CreateDevice(ctx context.Context, d *models.Device) (int64, error) {
	if d == nil {
		return 0, fmt.Errorf("device is required")
	}
	if d.SiteID <= 0 {
		return 0, fmt.Errorf("site_id is required")
	}
	if d.Token == "" {
		return 0, fmt.Errorf("token is required")
	}

	var meterKind interface{}
	if d.DefaultMeterKind != nil {
		meterKind = string(*d.DefaultMeterKind)
	}

	query := `
		INSERT INTO devices (site_id, name, type, active, token, default_meter_kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		d.SiteID, d.Name, d.Type, d.Active, d.Token, meterKind,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create device: %w", err)
	}
	return id, nil
}
