package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/interfaces/http/handlers"
)

// DeviceRouteConfig holds dependencies for device routes
type DeviceRouteConfig struct {
	DeviceHandler *handlers.DeviceHandler
}

// SetupDeviceRoutes configures device connection, remote read and management routes
func SetupDeviceRoutes(engine *gin.Engine, config *DeviceRouteConfig) {
	devices := engine.Group("/devices")
	{
		// Aggregate status must be registered before the :id routes
		devices.GET("/status", config.DeviceHandler.GetAllStatus)

		// Connection management
		devices.POST("/:id/connect", config.DeviceHandler.Connect)
		devices.POST("/:id/disconnect", config.DeviceHandler.Disconnect)

		// Remote reads
		devices.GET("/:id/logs", config.DeviceHandler.GetLogs)
		devices.GET("/:id/status", config.DeviceHandler.GetStatus)
		devices.GET("/:id/users", config.DeviceHandler.GetUsers)
		devices.GET("/:id/groups", config.DeviceHandler.GetGroups)

		devices.POST("/:id/sync", config.DeviceHandler.Sync)

		// Lifecycle
		devices.POST("/:id/enable", config.DeviceHandler.Enable)
		devices.POST("/:id/disable", config.DeviceHandler.Disable)
		devices.POST("/:id/maintenance", config.DeviceHandler.SetMaintenance)

		devices.GET("/:id/audit-logs", config.DeviceHandler.ListAuditLogs)
	}
}
