package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/service"
	"github.com/scoutbase/portal-api/pkg/response"
)

// upstreamProbe checks the membership service.
type upstreamProbe interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health probes and the admin metrics snapshot.
type SystemHandler struct {
	redis    *redis.Client
	upstream upstreamProbe
	metrics  *service.MetricsService
	logger   *zap.Logger
	started  time.Time
}

// NewSystemHandler constructs the system handler.
func NewSystemHandler(redisClient *redis.Client, upstream upstreamProbe, metrics *service.MetricsService, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{
		redis:    redisClient,
		upstream: upstream,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now().UTC(),
	}
}

// Health is the liveness probe: the process is up.
func (h *SystemHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}, nil)
}

// Ready is the readiness probe: Redis and the membership service both
// answer.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{"redis": "ok", "upstream": "ok"}
	healthy := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}
	if h.upstream != nil {
		if err := h.upstream.Ping(ctx); err != nil {
			checks["upstream"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	response.JSON(c, status, checks, nil)
}

// MetricsSnapshot serves the aggregated numbers for the admin dashboard.
func (h *SystemHandler) MetricsSnapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
