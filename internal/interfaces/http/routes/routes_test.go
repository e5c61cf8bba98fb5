package routes

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/accesshub/accesshub/internal/interfaces/http/handlers"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func registeredRoutes(engine *gin.Engine) map[string]bool {
	out := make(map[string]bool)
	for _, r := range engine.Routes() {
		out[r.Method+" "+r.Path] = true
	}
	return out
}

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	engine := gin.New()
	log := logger.NewNop()

	SetupDeviceRoutes(engine, &DeviceRouteConfig{
		DeviceHandler: handlers.NewDeviceHandler(handlers.DeviceUseCases{}, log),
	})
	SetupMonitoringRoutes(engine, &MonitoringRouteConfig{
		MonitoringHandler: handlers.NewMonitoringHandler(nil, log),
	})
	SetupAccessLogRoutes(engine, &AccessLogRouteConfig{
		AccessLogHandler: handlers.NewAccessLogHandler(nil, log),
		RealtimeHandler:  handlers.NewRealtimeHandler(nil, nil, handlers.RealtimeConfig{}, log),
	})

	routes := registeredRoutes(engine)
	expected := []string{
		http.MethodGet + " /devices/status",
		http.MethodPost + " /devices/:id/connect",
		http.MethodPost + " /devices/:id/disconnect",
		http.MethodGet + " /devices/:id/logs",
		http.MethodGet + " /devices/:id/status",
		http.MethodGet + " /devices/:id/users",
		http.MethodGet + " /devices/:id/groups",
		http.MethodPost + " /devices/:id/sync",
		http.MethodPost + " /devices/:id/enable",
		http.MethodPost + " /devices/:id/disable",
		http.MethodPost + " /devices/:id/maintenance",
		http.MethodGet + " /devices/:id/audit-logs",
		http.MethodPost + " /monitoring/start",
		http.MethodPost + " /monitoring/stop",
		http.MethodGet + " /monitoring/status",
		http.MethodGet + " /access-logs",
		http.MethodGet + " /ws/access-logs",
	}
	for _, route := range expected {
		assert.True(t, routes[route], "missing route %s", route)
	}
	assert.Len(t, routes, len(expected))
}
