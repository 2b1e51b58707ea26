package models

import "time"

// EnergySample 瘦格式遥测样本（批量推送路径）
// 唯一约束 (site_id, meter_kind, sample_time) 承担批量重试的幂等去重
type EnergySample struct {
	ID         int64     `json:"id"`
	SiteID     int64     `json:"site_id"`
	MeterKind  MeterKind `json:"meter_kind"`
	SampleTime time.Time `json:"sample_time"`

	TotalACPowerKw float64 `json:"total_ac_power_kw"` // kW

	// 当日计数器（kWh）
	DailyACEnergyKwh float64 `json:"daily_ac_energy_kwh"`
	DailyACExportKwh float64 `json:"daily_ac_export_kwh"`
	DailyACImportKwh float64 `json:"daily_ac_import_kwh"`
	DailyDCEnergyKwh float64 `json:"daily_dc_energy_kwh"`

	DeviceID *string `json:"device_id,omitempty"` // 设备自报的外部标识
	Firmware *string `json:"firmware,omitempty"`
}

// AsReading 将瘦样本转换为富样本形状，便于序列重建统一处理
// 瘦样本没有累计计数器，对应字段保持 nil
func (s *EnergySample) AsReading() *Reading {
	mk := s.MeterKind
	power := s.TotalACPowerKw
	dAC, dExp, dImp, dDC := s.DailyACEnergyKwh, s.DailyACExportKwh, s.DailyACImportKwh, s.DailyDCEnergyKwh
	return &Reading{
		SiteID:           s.SiteID,
		MeterKind:        &mk,
		Ts:               s.SampleTime,
		TotalACPowerKw:   &power,
		DailyACEnergyKwh: &dAC,
		DailyACExportKwh: &dExp,
		DailyACImportKwh: &dImp,
		DailyDCEnergyKwh: &dDC,
		Firmware:         s.Firmware,
	}
}
