package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/live"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
	"github.com/leghakrishifarm/solar-accounting/internal/series"
)

// ChartsHandler 图表序列查询
type ChartsHandler struct {
	series    *series.Service
	publisher *live.Publisher
	logger    *zap.Logger
}

// NewChartsHandler 创建图表 Handler
func NewChartsHandler(seriesSvc *series.Service, publisher *live.Publisher, logger *zap.Logger) *ChartsHandler {
	return &ChartsHandler{series: seriesSvc, publisher: publisher, logger: logger}
}

// Intraday 日内曲线：GET /api/charts/intraday?siteId=&day=&metric=&stepMin=
func (h *ChartsHandler) Intraday(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID := parseInt64(q.Get("siteId"))
	day := q.Get("day")
	metric := q.Get("metric")
	stepMin := parseInt(q.Get("stepMin"), 10)

	result, err := h.series.BuildIntradaySeries(r.Context(), siteID, day, metric, stepMin)
	if err != nil {
		h.writeChartError(w, siteID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// DayMeterSeries 按天分计量点曲线：GET /api/charts/day-meter-series?siteId=&days=
func (h *ChartsHandler) DayMeterSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID := parseInt64(q.Get("siteId"))
	days := parseInt(q.Get("days"), 30)

	result, err := h.series.BuildDayMeterSeries(r.Context(), siteID, days)
	if err != nil {
		h.writeChartError(w, siteID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// MeterLabels 计量点标签：GET /api/charts/meter-labels
func (h *ChartsHandler) MeterLabels(w http.ResponseWriter, r *http.Request) {
	labels := make([]map[string]string, 0, len(models.AllMeterKinds))
	for _, kind := range models.AllMeterKinds {
		labels = append(labels, map[string]string{
			"value": string(kind),
			"label": meterDisplayName(kind),
		})
	}
	writeJSON(w, http.StatusOK, Ok(labels))
}

// LiveTick 站点最近的实时帧：GET /api/charts/live?siteId=
func (h *ChartsHandler) LiveTick(w http.ResponseWriter, r *http.Request) {
	siteID := parseInt64(r.URL.Query().Get("siteId"))
	if siteID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("siteId is required"))
		return
	}

	tick, err := h.publisher.LatestTick(r.Context(), siteID)
	if err != nil {
		h.logger.Error("live tick read failed", zap.Int64("site_id", siteID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(tick))
}

func (h *ChartsHandler) writeChartError(w http.ResponseWriter, siteID int64, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail("site not found"))
	default:
		h.logger.Error("chart query failed", zap.Int64("site_id", siteID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}

func meterDisplayName(kind models.MeterKind) string {
	switch kind {
	case models.MeterMain:
		return "Main Meter"
	case models.MeterStandby:
		return "Standby Meter"
	case models.MeterCheck:
		return "Check Meter"
	default:
		return string(kind)
	}
}
