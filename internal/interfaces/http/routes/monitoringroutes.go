package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/interfaces/http/handlers"
)

// MonitoringRouteConfig holds dependencies for monitoring routes
type MonitoringRouteConfig struct {
	MonitoringHandler *handlers.MonitoringHandler
}

// SetupMonitoringRoutes configures the monitoring loop control routes
func SetupMonitoringRoutes(engine *gin.Engine, config *MonitoringRouteConfig) {
	monitoring := engine.Group("/monitoring")
	{
		monitoring.POST("/start", config.MonitoringHandler.Start)
		monitoring.POST("/stop", config.MonitoringHandler.Stop)
		monitoring.GET("/status", config.MonitoringHandler.Status)
	}
}
