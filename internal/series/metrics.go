package series

import (
	"strings"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// Metric 序列重建支持的指标
type Metric string

const (
	MetricTotalACPower  Metric = "TOTAL_AC_POWER"  // 瞬时功率（kW）
	MetricDailyACEnergy Metric = "DAILY_AC_ENERGY" // 当日有功电量（kWh）
	MetricDailyACExport Metric = "DAILY_AC_EXPORT" // 当日上网电量（kWh）
	MetricDailyACImport Metric = "DAILY_AC_IMPORT" // 当日下网电量（kWh）
	MetricDailyDCEnergy Metric = "DAILY_DC_ENERGY" // 当日直流电量（kWh）
)

// ParseMetric 解析指标名（兼容旧别名，未知值回退到瞬时功率）
func ParseMetric(s string) Metric {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TOTAL_AC_POWER", "AC_POWER", "POWER":
		return MetricTotalACPower
	case "TOTAL_AC_ENERGY", "DAILY_AC_ENERGY", "AC_ENERGY":
		return MetricDailyACEnergy
	case "DAILY_AC_EXPORT", "TOTAL_AC_EXPORT", "AC_EXPORT":
		return MetricDailyACExport
	case "DAILY_AC_IMPORT", "TOTAL_AC_IMPORT", "AC_IMPORT":
		return MetricDailyACImport
	case "DAILY_DC_ENERGY", "TOTAL_DC_ENERGY", "DC_ENERGY":
		return MetricDailyDCEnergy
	}
	return MetricTotalACPower
}

// Unit 指标单位：功率类 kW，其余 kWh
func (m Metric) Unit() string {
	if strings.Contains(string(m), "POWER") {
		return "kW"
	}
	return "kWh"
}

// fields 返回指标对应的（当日字段, 累计字段）取值函数；瞬时指标二者为 nil
func (m Metric) fields() (daily func(*models.Reading) *float64, cumulative func(*models.Reading) *float64) {
	switch m {
	case MetricDailyACEnergy:
		return func(r *models.Reading) *float64 { return r.DailyACEnergyKwh },
			func(r *models.Reading) *float64 { return r.TotalACEnergyKwh }
	case MetricDailyACExport:
		return func(r *models.Reading) *float64 { return r.DailyACExportKwh },
			func(r *models.Reading) *float64 { return r.TotalACExportKwh }
	case MetricDailyACImport:
		return func(r *models.Reading) *float64 { return r.DailyACImportKwh },
			func(r *models.Reading) *float64 { return r.TotalACImportKwh }
	case MetricDailyDCEnergy:
		return func(r *models.Reading) *float64 { return r.DailyDCEnergyKwh },
			func(r *models.Reading) *float64 { return r.TotalDCEnergyKwh }
	}
	return nil, nil
}

// metricState 单个计量点在一次查询窗口内的指标解析状态
// 回退链按序尝试：瞬时字段 → 当日字段 → 累计值-基线 → 跳过
// 基线取窗口内首个非空累计值
type metricState struct {
	metric   Metric
	baseline *float64
}

func newMetricState(metric Metric) *metricState {
	return &metricState{metric: metric}
}

// resolve 解析单个样本的指标值；ok 为假表示该样本对此指标无定义
func (st *metricState) resolve(rd *models.Reading) (float64, bool) {
	// 瞬时指标直接取值，没有回退
	if st.metric == MetricTotalACPower {
		if rd.TotalACPowerKw != nil {
			return *rd.TotalACPowerKw, true
		}
		if rd.PowerKw != nil {
			return *rd.PowerKw, true
		}
		return 0, false
	}

	daily, cumulative := st.metric.fields()

	// 先观察累计值，基线固定为窗口内首个非空累计值
	var cum *float64
	if cumulative != nil {
		cum = cumulative(rd)
		if cum != nil && st.baseline == nil {
			st.baseline = cum
		}
	}

	if daily != nil {
		if v := daily(rd); v != nil {
			return *v, true
		}
	}

	if cum != nil && st.baseline != nil {
		v := *cum - *st.baseline
		if v < 0 {
			v = 0
		}
		return v, true
	}

	return 0, false
}
