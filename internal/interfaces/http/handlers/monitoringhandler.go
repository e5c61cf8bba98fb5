package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/utils"
)

// MonitoringHandler controls the periodic sweep over all devices.
type MonitoringHandler struct {
	controlUC monitoringControlUseCase
	logger    logger.Interface
}

func NewMonitoringHandler(controlUC monitoringControlUseCase, logger logger.Interface) *MonitoringHandler {
	return &MonitoringHandler{controlUC: controlUC, logger: logger}
}

// Start handles POST /monitoring/start
func (h *MonitoringHandler) Start(c *gin.Context) {
	result := h.controlUC.Start(c.Request.Context())

	msg := "Monitoring started"
	if !result.Changed {
		msg = "Monitoring already running"
	} else {
		h.logger.Infow("monitoring started by admin request", "client_ip", c.ClientIP())
	}
	utils.SuccessResponse(c, http.StatusOK, msg, result)
}

// Stop handles POST /monitoring/stop
func (h *MonitoringHandler) Stop(c *gin.Context) {
	result := h.controlUC.Stop()

	msg := "Monitoring stopped"
	if !result.Changed {
		msg = "Monitoring already stopped"
	} else {
		h.logger.Infow("monitoring stopped by admin request", "client_ip", c.ClientIP())
	}
	utils.SuccessResponse(c, http.StatusOK, msg, result)
}

// Status handles GET /monitoring/status
func (h *MonitoringHandler) Status(c *gin.Context) {
	result, err := h.controlUC.Status(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}
