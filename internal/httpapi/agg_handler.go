package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/aggregate"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// AggHandler 手工触发日聚合（正常情况由后台任务周期执行）
type AggHandler struct {
	service *aggregate.Service
	logger  *zap.Logger
}

// NewAggHandler 创建聚合 Handler
func NewAggHandler(service *aggregate.Service, logger *zap.Logger) *AggHandler {
	return &AggHandler{service: service, logger: logger}
}

type aggTodayRequest struct {
	SiteID int64 `json:"siteId"` // 0 表示全部活跃站点
}

// Today 重算今日站点级聚合：POST /api/agg/today
func (h *AggHandler) Today(w http.ResponseWriter, r *http.Request) {
	var req aggTodayRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	if req.SiteID <= 0 {
		if err := h.service.AggregateAllToday(r.Context()); err != nil {
			h.writeAggError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"aggregated": "all"}))
		return
	}

	rd, err := h.service.AggregateTodayForSite(r.Context(), req.SiteID)
	if err != nil {
		h.writeAggError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rd))
}

type aggDayMeterRequest struct {
	SiteID    int64  `json:"siteId"`
	Day       string `json:"day"` // "2006-01-02"，缺省今天
	MeterKind string `json:"meterKind,omitempty"`
}

// DayMeter 重算指定天的计量点聚合：POST /api/agg/day-meter
func (h *AggHandler) DayMeter(w http.ResponseWriter, r *http.Request) {
	var req aggDayMeterRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	if req.Day == "" {
		req.Day = time.Now().Format("2006-01-02")
	}

	kinds := models.AllMeterKinds
	if req.MeterKind != "" {
		kind, ok := models.ParseMeterKind(req.MeterKind)
		if !ok {
			writeJSON(w, http.StatusBadRequest, Fail("unknown meter kind"))
			return
		}
		kinds = []models.MeterKind{kind}
	}

	results := make([]*models.ReadingDayMeter, 0, len(kinds))
	for _, kind := range kinds {
		rdm, err := h.service.AggregateDayPerMeter(r.Context(), req.SiteID, req.Day, kind)
		if err != nil {
			h.writeAggError(w, err)
			return
		}
		results = append(results, rdm)
	}
	writeJSON(w, http.StatusOK, Ok(results))
}

func (h *AggHandler) writeAggError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	default:
		h.logger.Error("aggregation request failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}
