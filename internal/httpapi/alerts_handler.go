package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/alerts"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// AlertsHandler 告警查询、确认、导出与测试发送
type AlertsHandler struct {
	service *alerts.Service
	logger  *zap.Logger
}

// NewAlertsHandler 创建告警 Handler
func NewAlertsHandler(service *alerts.Service, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{service: service, logger: logger}
}

// Last 设备最新的新鲜未确认告警：GET /api/alerts/last?deviceId=
// 没有告警时 result 为 null，前端据此隐藏横幅
func (h *AlertsHandler) Last(w http.ResponseWriter, r *http.Request) {
	deviceID := parseInt64(r.URL.Query().Get("deviceId"))

	alert, err := h.service.LastAlert(r.Context(), deviceID)
	if err != nil {
		h.writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alert))
}

type ackRequest struct {
	AlertID  int64 `json:"alertId"`
	DeviceID int64 `json:"deviceId"`
}

// Ack 确认告警：POST /api/alerts/ack
// 给 alertId 精确确认；只给 deviceId 则确认该设备最新一条
func (h *AlertsHandler) Ack(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	acked := req.AlertID
	if req.AlertID > 0 {
		if err := h.service.Acknowledge(r.Context(), req.AlertID); err != nil {
			h.writeAlertError(w, err)
			return
		}
	} else {
		id, err := h.service.AcknowledgeLatestForDevice(r.Context(), req.DeviceID)
		if err != nil {
			h.writeAlertError(w, err)
			return
		}
		acked = id
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"acknowledged": acked}))
}

// Latest 站点最近告警：GET /api/alerts/latest?siteId=
func (h *AlertsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	siteID := parseInt64(r.URL.Query().Get("siteId"))

	events, err := h.service.RecentBySite(r.Context(), siteID)
	if err != nil {
		h.writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// ExportCSV 告警导出：GET /api/alerts/export.csv?siteId=&from=&to=
// from/to 为 ISO 日期，缺省导出最近 30 天
func (h *AlertsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID := parseInt64(q.Get("siteId"))

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if s := q.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid from %q", s)))
			return
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid to %q", s)))
			return
		}
		to = t.AddDate(0, 0, 1) // 含当天
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="alerts-%d.csv"`, siteID))
	if err := h.service.ExportCSV(r.Context(), w, siteID, from, to); err != nil {
		// 头已发出，只能记日志
		h.logger.Error("alert csv export failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}

// Deliveries 投递记录：GET /api/alerts/deliveries?alertId= 或 ?limit=
func (h *AlertsHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if alertID := parseInt64(q.Get("alertId")); alertID > 0 {
		deliveries, err := h.service.DeliveriesByAlert(r.Context(), alertID)
		if err != nil {
			h.writeAlertError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(deliveries))
		return
	}

	deliveries, err := h.service.RecentDeliveries(r.Context(), parseInt(q.Get("limit"), 50))
	if err != nil {
		h.writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(deliveries))
}

type testSendRequest struct {
	SiteID int64 `json:"siteId"`
}

// SendTest 手工触发一条测试通知：POST /api/alerts/test
func (h *AlertsHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	if err := h.service.SendTest(r.Context(), req.SiteID); err != nil {
		h.writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"sent": true}))
}

func (h *AlertsHandler) writeAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	default:
		h.logger.Error("alert request failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}
