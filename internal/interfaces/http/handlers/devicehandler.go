package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/application/device/usecases"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/utils"
)

// DeviceUseCases groups the use cases served by DeviceHandler.
type DeviceUseCases struct {
	Connect    connectDeviceUseCase
	Disconnect disconnectDeviceUseCase
	FetchLogs  fetchDeviceLogsUseCase
	Status     getDeviceStatusUseCase
	Users      fetchDeviceUsersUseCase
	Groups     fetchDeviceGroupsUseCase
	AllStatus  getAllDevicesStatusUseCase
	Sync       syncDeviceUseCase
	Manage     manageDeviceUseCase
	AuditLogs  listAuditLogsUseCase
}

type DeviceHandler struct {
	connectUC    connectDeviceUseCase
	disconnectUC disconnectDeviceUseCase
	fetchLogsUC  fetchDeviceLogsUseCase
	statusUC     getDeviceStatusUseCase
	usersUC      fetchDeviceUsersUseCase
	groupsUC     fetchDeviceGroupsUseCase
	allStatusUC  getAllDevicesStatusUseCase
	syncUC       syncDeviceUseCase
	manageUC     manageDeviceUseCase
	auditLogsUC  listAuditLogsUseCase
	logger       logger.Interface
}

func NewDeviceHandler(ucs DeviceUseCases, logger logger.Interface) *DeviceHandler {
	return &DeviceHandler{
		connectUC:    ucs.Connect,
		disconnectUC: ucs.Disconnect,
		fetchLogsUC:  ucs.FetchLogs,
		statusUC:     ucs.Status,
		usersUC:      ucs.Users,
		groupsUC:     ucs.Groups,
		allStatusUC:  ucs.AllStatus,
		syncUC:       ucs.Sync,
		manageUC:     ucs.Manage,
		auditLogsUC:  ucs.AuditLogs,
		logger:       logger,
	}
}

type MaintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Connect handles POST /devices/:id/connect
func (h *DeviceHandler) Connect(c *gin.Context) {
	result, err := h.connectUC.Execute(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device connected successfully", result)
}

// Disconnect handles POST /devices/:id/disconnect
func (h *DeviceHandler) Disconnect(c *gin.Context) {
	result, err := h.disconnectUC.Execute(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device disconnected successfully", result)
}

// GetLogs handles GET /devices/:id/logs?after_id=N. Entries are read from
// the device and not stored.
func (h *DeviceHandler) GetLogs(c *gin.Context) {
	var afterID int64
	if raw := c.Query("after_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.ErrorResponseWithError(c, errors.NewValidationError("after_id must be an integer"))
			return
		}
		afterID = v
	}

	result, err := h.fetchLogsUC.Execute(c.Request.Context(), usecases.RemoteLogsQuery{
		DeviceRef: c.Param("id"),
		AfterID:   afterID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GetStatus handles GET /devices/:id/status
func (h *DeviceHandler) GetStatus(c *gin.Context) {
	result, err := h.statusUC.Execute(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GetUsers handles GET /devices/:id/users
func (h *DeviceHandler) GetUsers(c *gin.Context) {
	result, err := h.usersUC.Execute(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GetGroups handles GET /devices/:id/groups
func (h *DeviceHandler) GetGroups(c *gin.Context) {
	result, err := h.groupsUC.Execute(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GetAllStatus handles GET /devices/status
func (h *DeviceHandler) GetAllStatus(c *gin.Context) {
	result, err := h.allStatusUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// Sync handles POST /devices/:id/sync. It runs one cycle against the same
// cursor the monitoring sweep uses.
func (h *DeviceHandler) Sync(c *gin.Context) {
	result, err := h.syncUC.Execute(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device synchronized", result)
}

// Enable handles POST /devices/:id/enable
func (h *DeviceHandler) Enable(c *gin.Context) {
	result, err := h.manageUC.Enable(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device enabled", result)
}

// Disable handles POST /devices/:id/disable
func (h *DeviceHandler) Disable(c *gin.Context) {
	result, err := h.manageUC.Disable(c.Request.Context(), deviceCommand(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device disabled", result)
}

// SetMaintenance handles POST /devices/:id/maintenance
func (h *DeviceHandler) SetMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for maintenance", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	result, err := h.manageUC.SetMaintenance(c.Request.Context(), usecases.MaintenanceCommand{
		DeviceRef: c.Param("id"),
		Enabled:   *req.Enabled,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	msg := "Maintenance mode disabled"
	if *req.Enabled {
		msg = "Maintenance mode enabled"
	}
	utils.SuccessResponse(c, http.StatusOK, msg, result)
}

// ListAuditLogs handles GET /devices/:id/audit-logs
func (h *DeviceHandler) ListAuditLogs(c *gin.Context) {
	p := utils.ParsePagination(c)

	result, err := h.auditLogsUC.Execute(c.Request.Context(), usecases.ListAuditLogsQuery{
		DeviceRef: c.Param("id"),
		Offset:    p.Offset(),
		Limit:     p.PageSize,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, result.Logs, result.Total, p.Page, p.PageSize)
}

func deviceCommand(c *gin.Context) usecases.DeviceCommand {
	return usecases.DeviceCommand{DeviceRef: c.Param("id")}
}
