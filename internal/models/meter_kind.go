package models

import "strings"

// MeterKind 站点内的逻辑计量点
type MeterKind string

const (
	MeterMain    MeterKind = "MAIN"    // 主并网电表
	MeterStandby MeterKind = "STANDBY" // 备用电表
	MeterCheck   MeterKind = "CHECK"   // 校核电表
)

// AllMeterKinds 固定的计量点枚举（顺序即展示顺序）
var AllMeterKinds = []MeterKind{MeterMain, MeterStandby, MeterCheck}

// ParseMeterKind 解析计量点名称（大小写不敏感）
func ParseMeterKind(s string) (MeterKind, bool) {
	switch MeterKind(strings.ToUpper(strings.TrimSpace(s))) {
	case MeterMain:
		return MeterMain, true
	case MeterStandby:
		return MeterStandby, true
	case MeterCheck:
		return MeterCheck, true
	}
	return "", false
}
