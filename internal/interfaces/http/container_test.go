package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/accesshub/accesshub/internal/infrastructure/config"
	"github.com/accesshub/accesshub/internal/infrastructure/migration"
	"github.com/accesshub/accesshub/internal/interfaces/http/handlers/testutil"
	sharedConfig "github.com/accesshub/accesshub/internal/shared/config"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

var containerDBSeq atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	return &config.Config{
		Server: sharedConfig.ServerConfig{Host: "127.0.0.1", Port: 8080, Mode: "test"},
		Redis:  sharedConfig.RedisConfig{Enabled: true, Host: mr.Host(), Port: port},
		Monitoring: sharedConfig.MonitoringConfig{
			SweepInterval:      time.Minute,
			MaxParallel:        2,
			BackoffInitial:     time.Second,
			BackoffMax:         time.Minute,
			SessionIdleTimeout: time.Hour,
			CleanupInterval:    time.Minute,
			StatisticsInterval: time.Minute,
		},
		Realtime: sharedConfig.RealtimeConfig{
			SnapshotSize: 10,
			PushInterval: time.Second,
		},
		DeviceDefaults: sharedConfig.DeviceDefaults{
			ConnectionTimeout:       time.Second,
			RequestTimeout:          time.Second,
			MaxReconnectionAttempts: 3,
			TokenTTL:                time.Minute,
		},
	}
}

func newTestContainer(t *testing.T, cfg *config.Config) (*Container, *gin.Engine) {
	t.Helper()

	dsn := fmt.Sprintf("file:container_test_%d?mode=memory&cache=shared", containerDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	manager := migration.NewManagerWithStrategy(migration.NewGormAutoMigrateStrategy(logger.NewNop()), logger.NewNop())
	require.NoError(t, manager.Migrate(db))

	c, err := NewContainer(db, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})

	router := NewRouter(c)
	router.SetupRoutes()
	return c, router.GetEngine()
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

func TestContainer_HealthReportsAllProbes(t *testing.T) {
	_, engine := newTestContainer(t, newTestConfig(t))

	w := serve(engine, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, map[string]string{"database": "up", "redis": "up"}, health.Checks)
}

func TestContainer_WithoutRedisUsesLocalBus(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Redis.Enabled = false
	c, engine := newTestContainer(t, cfg)

	assert.Nil(t, c.redis)
	w := serve(engine, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")
}

func TestContainer_SeedDevicesShowsInMonitoringStatus(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Devices = []sharedConfig.SeedDevice{
		{Name: "Main entrance", Address: "127.0.0.1", Port: 1, Login: "admin", Password: "secret", IsPrimary: true},
		{Name: "Loading dock", Address: "127.0.0.1", Port: 2, Login: "admin", Password: "secret"},
	}
	c, engine := newTestContainer(t, cfg)

	require.NoError(t, c.SeedDevices(context.Background()))
	// Seeding is an upsert by name.
	require.NoError(t, c.SeedDevices(context.Background()))

	w := serve(engine, http.MethodGet, "/monitoring/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	var status struct {
		Running      bool  `json:"running"`
		DevicesTotal int64 `json:"devices_total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.False(t, status.Running)
	assert.Equal(t, int64(2), status.DevicesTotal)
}

func TestContainer_MonitoringStartStop(t *testing.T) {
	_, engine := newTestContainer(t, newTestConfig(t))

	w := serve(engine, http.MethodPost, "/monitoring/start")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Monitoring started")

	w = serve(engine, http.MethodPost, "/monitoring/start")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Monitoring already running")

	w = serve(engine, http.MethodPost, "/monitoring/stop")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Monitoring stopped")
}

func TestContainer_UnknownDeviceIsNotFound(t *testing.T) {
	_, engine := newTestContainer(t, newTestConfig(t))

	w := serve(engine, http.MethodGet, "/devices/999/status")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(engine, http.MethodPost, "/devices/not-an-id/connect")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContainer_ExposesMetrics(t *testing.T) {
	_, engine := newTestContainer(t, newTestConfig(t))

	w := serve(engine, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestContainer_StoredAccessLogsStartEmpty(t *testing.T) {
	_, engine := newTestContainer(t, newTestConfig(t))

	w := serve(engine, http.MethodGet, "/access-logs?page=1&page_size=10")
	require.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	var list testutil.ListData
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Equal(t, int64(0), list.Total)
}
