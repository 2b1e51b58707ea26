package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HealthHandler 健康检查：数据库与 Redis 连通性
type HealthHandler struct {
	db     *sql.DB
	rdb    *redis.Client
	logger *zap.Logger
}

// NewHealthHandler 创建健康检查 Handler
func NewHealthHandler(db *sql.DB, rdb *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, logger: logger}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		status["database"] = err.Error()
		healthy = false
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		// Redis 只承载实时推送缓存，不算致命
		status["redis"] = err.Error()
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, Fail("unhealthy"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
