package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
	"github.com/leghakrishifarm/solar-accounting/internal/reports"
)

// ReportsHandler 月度报表导出
type ReportsHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

// NewReportsHandler 创建报表 Handler
func NewReportsHandler(service *reports.Service, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{service: service, logger: logger}
}

// MonthXLSX 月度报表：GET /api/reports/month.xlsx?siteId=&month=
// month 形如 "2026-08"，缺省当月
func (h *ReportsHandler) MonthXLSX(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID := parseInt64(q.Get("siteId"))
	month := q.Get("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}

	f, err := h.service.BuildMonthlyWorkbook(r.Context(), siteID, month)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		case errors.Is(err, models.ErrNotFound):
			writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		default:
			h.logger.Error("monthly report failed", zap.Int64("site_id", siteID), zap.Error(err))
			writeJSON(w, http.StatusOK, Fail(err.Error()))
		}
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="solar-%d-%s.xlsx"`, siteID, month))
	if err := f.Write(w); err != nil {
		h.logger.Error("report write failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}
