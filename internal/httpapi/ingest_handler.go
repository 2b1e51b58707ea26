package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/ingest"
	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// IngestHandler 遥测上报入口
// 单条：POST /api/ingest/{deviceID}，token 走 X-Device-Token 头或 token 查询参数
// 批量：POST /api/ingest，鉴权信息在请求体里
type IngestHandler struct {
	service *ingest.Service
	logger  *zap.Logger
}

// NewIngestHandler 创建上报 Handler
func NewIngestHandler(service *ingest.Service, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{service: service, logger: logger}
}

// IngestOne 单条上报
func (h *IngestHandler) IngestOne(w http.ResponseWriter, r *http.Request, deviceIDStr string) {
	deviceID := parseInt64(deviceIDStr)
	token := r.Header.Get("X-Device-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	var payload ingest.Payload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	reading, err := h.service.Ingest(r.Context(), deviceID, token, &payload)
	if err != nil {
		h.writeIngestError(w, deviceID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"id": reading.ID,
		"ts": reading.Ts,
	}))
}

type bulkIngestRequest struct {
	DeviceID int64             `json:"deviceId"`
	Token    string            `json:"token"`
	Items    []ingest.BulkItem `json:"items"`
}

// IngestBulk 批量上报（设备断网重传，唯一约束去重）
func (h *IngestHandler) IngestBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkIngestRequest
	if err := readBodyJSON(r, 4<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if req.Token == "" {
		req.Token = r.Header.Get("X-Device-Token")
	}

	result, err := h.service.IngestBulk(r.Context(), req.DeviceID, req.Token, req.Items)
	if err != nil {
		h.writeIngestError(w, req.DeviceID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

func (h *IngestHandler) writeIngestError(w http.ResponseWriter, deviceID int64, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
	case errors.Is(err, models.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	default:
		h.logger.Error("ingest failed", zap.Int64("device_id", deviceID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}

// pathSuffix 取前缀之后的单段路径参数；为空或含 "/" 视为非法
func pathSuffix(path, prefix string) (string, bool) {
	s := strings.TrimPrefix(path, prefix)
	if s == "" || strings.Contains(s, "/") {
		return "", false
	}
	return s, true
}
