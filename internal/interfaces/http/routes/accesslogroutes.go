package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/interfaces/http/handlers"
)

// AccessLogRouteConfig holds dependencies for stored and live access log routes
type AccessLogRouteConfig struct {
	AccessLogHandler *handlers.AccessLogHandler
	RealtimeHandler  *handlers.RealtimeHandler
}

// SetupAccessLogRoutes configures the access log query and websocket routes
func SetupAccessLogRoutes(engine *gin.Engine, config *AccessLogRouteConfig) {
	engine.GET("/access-logs", config.AccessLogHandler.List)
	engine.GET("/ws/access-logs", config.RealtimeHandler.AccessLogsWS)
}
