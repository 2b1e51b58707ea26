package models

import "time"

// ReadingDay 站点级日聚合（每站点每天一行，唯一约束 site_id+day）
type ReadingDay struct {
	ID             int64      `json:"id"`
	SiteID         int64      `json:"site_id"`
	Day            string     `json:"day"` // "2006-01-02"（站点时区）
	EnergyTodayKwh float64    `json:"energy_today_kwh"`
	MaxPowerKw     float64    `json:"max_power_kw"`
	LastSampleAt   *time.Time `json:"last_sample_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ReadingDayMeter 计量点级日聚合（唯一约束 site_id+meter_kind+day）
type ReadingDayMeter struct {
	ID        int64     `json:"id"`
	SiteID    int64     `json:"site_id"`
	MeterKind MeterKind `json:"meter_kind"`
	Day       string    `json:"day"`

	ACActiveEnergyKwh float64 `json:"ac_active_energy_kwh"`
	ACExportEnergyKwh float64 `json:"ac_export_energy_kwh"`
	ACImportEnergyKwh float64 `json:"ac_import_energy_kwh"`
	DCEnergyKwh       float64 `json:"dc_energy_kwh"`
	MaxACPowerKw      float64 `json:"max_ac_power_kw"`

	LastSampleAt *time.Time `json:"last_sample_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
