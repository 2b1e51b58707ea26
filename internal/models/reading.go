package models

import "time"

// Reading 富格式遥测样本（认证直连设备的上报路径）
// 同时携带"当日计数器"（当地午夜清零）与可选的"终生累计计数器"，
// 以及旧固件只会填的单值 PowerKw / EnergyKwh
type Reading struct {
	ID        int64      `json:"id"`
	SiteID    int64      `json:"site_id"`
	DeviceID  *int64     `json:"device_id,omitempty"`
	MeterKind *MeterKind `json:"meter_kind,omitempty"` // 旧数据可能为空，归并到 MAIN
	Ts        time.Time  `json:"ts"`

	// 瞬时值
	TotalACPowerKw *float64 `json:"total_ac_power_kw,omitempty"` // kW

	// 当日计数器（kWh）
	DailyACEnergyKwh *float64 `json:"daily_ac_energy_kwh,omitempty"`
	DailyACExportKwh *float64 `json:"daily_ac_export_kwh,omitempty"`
	DailyACImportKwh *float64 `json:"daily_ac_import_kwh,omitempty"`
	DailyDCEnergyKwh *float64 `json:"daily_dc_energy_kwh,omitempty"`

	// 终生累计计数器（kWh，只增不减）
	TotalACEnergyKwh *float64 `json:"total_ac_energy_kwh,omitempty"`
	TotalACExportKwh *float64 `json:"total_ac_export_kwh,omitempty"`
	TotalACImportKwh *float64 `json:"total_ac_import_kwh,omitempty"`
	TotalDCEnergyKwh *float64 `json:"total_dc_energy_kwh,omitempty"`

	// 旧固件单值遥测
	PowerKw   *float64 `json:"power_kw,omitempty"`   // 瞬时功率
	EnergyKwh *float64 `json:"energy_kwh,omitempty"` // 累计电量（totalizer）

	Firmware *string `json:"firmware,omitempty"`
	Status   *string `json:"status,omitempty"` // OK / WARN / FAULT
}

// EffectiveMeterKind 空计量点按 MAIN 处理
func (r *Reading) EffectiveMeterKind() MeterKind {
	if r.MeterKind == nil {
		return MeterMain
	}
	return *r.MeterKind
}
