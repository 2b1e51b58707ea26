package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterIngestRoutes 遥测上报路由
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	r.Handle("/api/ingest", methodOnly(http.MethodPost, h.IngestBulk))
	r.Handle("/api/ingest/", methodOnly(http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		deviceID, ok := pathSuffix(req.URL.Path, "/api/ingest/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.IngestOne(w, req, deviceID)
	}))
}

// RegisterChartRoutes 图表查询路由
func (r *Router) RegisterChartRoutes(h *ChartsHandler) {
	r.Handle("/api/charts/intraday", methodOnly(http.MethodGet, h.Intraday))
	r.Handle("/api/charts/day-meter-series", methodOnly(http.MethodGet, h.DayMeterSeries))
	r.Handle("/api/charts/meter-labels", methodOnly(http.MethodGet, h.MeterLabels))
	r.Handle("/api/charts/live", methodOnly(http.MethodGet, h.LiveTick))
}

// RegisterAlertRoutes 告警路由
func (r *Router) RegisterAlertRoutes(h *AlertsHandler) {
	r.Handle("/api/alerts/last", methodOnly(http.MethodGet, h.Last))
	r.Handle("/api/alerts/ack", methodOnly(http.MethodPost, h.Ack))
	r.Handle("/api/alerts/latest", methodOnly(http.MethodGet, h.Latest))
	r.Handle("/api/alerts/export.csv", methodOnly(http.MethodGet, h.ExportCSV))
	r.Handle("/api/alerts/deliveries", methodOnly(http.MethodGet, h.Deliveries))
	r.Handle("/api/alerts/test", methodOnly(http.MethodPost, h.SendTest))
}

// RegisterAggRoutes 手工聚合路由
func (r *Router) RegisterAggRoutes(h *AggHandler) {
	r.Handle("/api/agg/today", methodOnly(http.MethodPost, h.Today))
	r.Handle("/api/agg/day-meter", methodOnly(http.MethodPost, h.DayMeter))
}

// RegisterReportRoutes 报表路由
func (r *Router) RegisterReportRoutes(h *ReportsHandler) {
	r.Handle("/api/reports/month.xlsx", methodOnly(http.MethodGet, h.MonthXLSX))
}

// RegisterHealthRoute 健康检查
func (r *Router) RegisterHealthRoute(h *HealthHandler) {
	r.Handle("/healthz", methodOnly(http.MethodGet, h.Health))
}
