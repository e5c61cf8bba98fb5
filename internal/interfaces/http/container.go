package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/application/realtime"
	"github.com/accesshub/accesshub/internal/infrastructure/config"
	"github.com/accesshub/accesshub/internal/infrastructure/metrics"
	"github.com/accesshub/accesshub/internal/infrastructure/pubsub"
	"github.com/accesshub/accesshub/internal/infrastructure/scheduler"
	"github.com/accesshub/accesshub/internal/infrastructure/services"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// Container holds all infrastructure components, repositories, use cases,
// handlers and background services. It wires everything together and owns
// graceful termination.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	repos *repositories
	ucs   *allUseCases
	hdlrs *allHandlers

	// Monitoring
	recorder  *metrics.Recorder
	monitor   *monitoring.Engine
	employees *monitoring.EmployeeSyncer

	// Realtime
	hub         *services.RealtimeHub
	broadcaster *realtime.Broadcaster
	eventBus    pubsub.LogEventBus

	// Background services
	schedulerManager *scheduler.SchedulerManager
	backgroundCancel context.CancelFunc
	backgroundMu     sync.Mutex
}

// NewContainer creates a Container with all dependencies wired together.
func NewContainer(db *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
	}

	// Section 1: Infrastructure - Redis, credential cipher, repositories
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// Section 2: Monitoring - transport factory, engine, log observers
	c.initMonitoring()

	// Section 3: Use cases
	c.initUseCases()

	// Section 4: Scheduler jobs
	if err := c.initScheduler(); err != nil {
		return nil, err
	}

	// Section 5: Handlers
	c.initHandlers()

	return c, nil
}

// Engine returns the monitoring engine.
func (c *Container) Engine() *monitoring.Engine {
	return c.monitor
}

// SeedDevices registers the devices declared in configuration.
func (c *Container) SeedDevices(ctx context.Context) error {
	if len(c.cfg.Devices) == 0 {
		return nil
	}
	if _, err := c.ucs.seedDevices.Execute(ctx, seedDevicesFromConfig(c.cfg)); err != nil {
		return fmt.Errorf("failed to seed devices: %w", err)
	}
	return nil
}

// Start launches the background services: the cross-instance event relay,
// the scheduler and, when configured, the monitoring loop.
func (c *Container) Start(ctx context.Context) {
	c.backgroundMu.Lock()
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.backgroundCancel = cancel
	c.backgroundMu.Unlock()

	c.startEventRelay(bgCtx)
	c.schedulerManager.Start()

	if c.cfg.Monitoring.AutoStart {
		c.ucs.monitoringControl.Start(bgCtx)
		c.log.Infow("monitoring started automatically",
			"sweep_interval", c.cfg.Monitoring.SweepInterval,
			"max_parallel", c.cfg.Monitoring.MaxParallel,
		)
	}
}

// Shutdown stops the background services in reverse start order and waits
// for an in-flight sweep until ctx ends.
func (c *Container) Shutdown(ctx context.Context) error {
	if err := c.schedulerManager.Stop(); err != nil {
		c.log.Warnw("failed to stop scheduler", "error", err)
	}

	engineErr := c.monitor.Shutdown(ctx)

	c.hub.Shutdown()

	c.backgroundMu.Lock()
	if c.backgroundCancel != nil {
		c.backgroundCancel()
		c.backgroundCancel = nil
	}
	c.backgroundMu.Unlock()

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnw("failed to close redis client", "error", err)
		}
	}
	return engineErr
}
