package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/duesledger/backend/internal/infrastructure/logger"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	checks    map[string]Pinger
	timeout   time.Duration
}

// NewHealthHandler creates a new HealthHandler. checks are pinged by the
// readiness probe, keyed by the name reported in the response.
func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		checks:    checks,
		timeout:   2 * time.Second,
	}
}

// Live answers 200 while the process is serving
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, HealthData{
		Status:  "ok",
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Version: h.version,
	})
}

// Ready pings every dependency and answers 503 when any is down
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	data := HealthData{
		Status:  "ok",
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Version: h.version,
		Checks:  make(map[string]string, len(h.checks)),
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			logger.L(ctx).Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			data.Checks[name] = "down"
			data.Status = "unavailable"
			continue
		}
		data.Checks[name] = "up"
	}

	if data.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    data,
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeUnavailable,
				Message:   "One or more dependencies are unavailable",
				RequestID: getRequestID(c),
				Timestamp: time.Now().UTC(),
			},
		})
		return
	}
	h.Success(c, data)
}
