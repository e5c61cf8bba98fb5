package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accesshub/accesshub/internal/interfaces/http/middleware"
	"github.com/accesshub/accesshub/internal/interfaces/http/routes"
)

// Router represents the HTTP router configuration
type Router struct {
	container *Container
}

// NewRouter builds the router on top of a fully wired container.
func NewRouter(c *Container) *Router {
	return &Router{container: c}
}

// SetupRoutes configures middleware and all routes.
func (r *Router) SetupRoutes() {
	c := r.container
	engine := c.engine

	engine.Use(middleware.RequestID())
	engine.Use(middleware.CustomLogger(c.log.Named("http")))
	engine.Use(middleware.Recovery(c.log.Named("http")))
	engine.Use(middleware.CORS(c.cfg.Server.AllowedOrigins))
	engine.Use(middleware.SecurityHeaders())

	engine.GET("/health", c.hdlrs.health.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.SetupMonitoringRoutes(engine, &routes.MonitoringRouteConfig{
		MonitoringHandler: c.hdlrs.monitoring,
	})
	routes.SetupDeviceRoutes(engine, &routes.DeviceRouteConfig{
		DeviceHandler: c.hdlrs.device,
	})
	routes.SetupAccessLogRoutes(engine, &routes.AccessLogRouteConfig{
		AccessLogHandler: c.hdlrs.accessLogs,
		RealtimeHandler:  c.hdlrs.realtime,
	})
}

// GetEngine returns the gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.container.engine
}
