package detector

import (
	"time"

	"github.com/leghakrishifarm/solar-accounting/internal/config"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// 告警去重窗口：同设备同类型告警在该窗口内只触发一次
const dedupWindowMinutes = 30

// Settings 一次检测运行生效的监控参数
// 每次运行解析一次（站点覆盖优先，否则全局默认），作为显式值传递
type Settings struct {
	OfflineThresholdMinutes int
	ZeroWindowMinutes       int
	ZeroMinReadings         int
	ZeroThresholdKw         float64
	DaylightStart           string // "HH:mm"
	DaylightEnd             string
}

// ResolveSettings 站点覆盖 → 全局默认
func ResolveSettings(cfg config.MonitoringConfig, site *models.Site) Settings {
	s := Settings{
		OfflineThresholdMinutes: cfg.OfflineThresholdMinutes,
		ZeroWindowMinutes:       cfg.ZeroWindowMinutes,
		ZeroMinReadings:         cfg.ZeroMinReadings,
		ZeroThresholdKw:         cfg.ZeroThresholdKw,
		DaylightStart:           cfg.DaylightStart,
		DaylightEnd:             cfg.DaylightEnd,
	}
	if site == nil {
		return s
	}
	if site.OfflineThresholdMinutes != nil && *site.OfflineThresholdMinutes > 0 {
		s.OfflineThresholdMinutes = *site.OfflineThresholdMinutes
	}
	if site.ZeroWindowMinutes != nil && *site.ZeroWindowMinutes > 0 {
		s.ZeroWindowMinutes = *site.ZeroWindowMinutes
	}
	if site.ZeroMinReadings != nil && *site.ZeroMinReadings > 0 {
		s.ZeroMinReadings = *site.ZeroMinReadings
	}
	if site.ZeroThresholdKw != nil && *site.ZeroThresholdKw > 0 {
		s.ZeroThresholdKw = *site.ZeroThresholdKw
	}
	if site.DaylightStart != nil && *site.DaylightStart != "" {
		s.DaylightStart = *site.DaylightStart
	}
	if site.DaylightEnd != nil && *site.DaylightEnd != "" {
		s.DaylightEnd = *site.DaylightEnd
	}
	return s
}

// withinDaylight 判断本地时间是否落在日照窗口内（[start, end)）
func withinDaylight(localNow time.Time, startHHMM, endHHMM string) bool {
	start, err1 := time.Parse("15:04", startHHMM)
	end, err2 := time.Parse("15:04", endHHMM)
	if err1 != nil || err2 != nil {
		return false
	}

	minutes := localNow.Hour()*60 + localNow.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	return minutes >= startMin && minutes < endMin
}
