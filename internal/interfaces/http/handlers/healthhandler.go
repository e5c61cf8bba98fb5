package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/utils"
	"github.com/accesshub/accesshub/internal/shared/version"
)

const healthProbeTimeout = 2 * time.Second

// HealthProbe checks one dependency. A nil error means healthy.
type HealthProbe func(ctx context.Context) error

type monitorState interface {
	IsRunning() bool
}

type HealthHandler struct {
	probes  map[string]HealthProbe
	monitor monitorState
	logger  logger.Interface
}

func NewHealthHandler(probes map[string]HealthProbe, monitor monitorState, logger logger.Interface) *HealthHandler {
	return &HealthHandler{probes: probes, monitor: monitor, logger: logger}
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Monitoring bool              `json:"monitoring"`
	Checks     map[string]string `json:"checks"`
}

// Check handles GET /health. It answers 503 when any probe fails.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  "healthy",
		Version: version.String(),
		Checks:  make(map[string]string, len(h.probes)),
	}
	if h.monitor != nil {
		resp.Monitoring = h.monitor.IsRunning()
	}

	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.logger.Warnw("health probe failed", "probe", name, "error", err)
			resp.Checks[name] = "down"
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "up"
	}

	if resp.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
			Status:  utils.StatusError,
			Message: "Service unhealthy",
			Data:    resp,
		})
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}
