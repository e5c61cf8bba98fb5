package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/accesshub/accesshub/internal/application/device/usecases"
	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/application/realtime"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/config"
	"github.com/accesshub/accesshub/internal/infrastructure/deviceclient"
	"github.com/accesshub/accesshub/internal/infrastructure/metrics"
	"github.com/accesshub/accesshub/internal/infrastructure/pubsub"
	"github.com/accesshub/accesshub/internal/infrastructure/scheduler"
	"github.com/accesshub/accesshub/internal/infrastructure/security"
	"github.com/accesshub/accesshub/internal/infrastructure/services"
	"github.com/accesshub/accesshub/internal/shared/goroutine"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// ============================================================
// Section 1: Infrastructure - Redis, credential cipher, repositories
// ============================================================

func (c *Container) initInfrastructure() error {
	if c.cfg.Redis.Enabled {
		client, err := initRedis(c.cfg, c.log)
		if err != nil {
			return err
		}
		c.redis = client
	}

	cipher, err := security.NewCredentialCipher(c.cfg.Security.CredentialKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}
	if !cipher.Enabled() {
		c.log.Warnw("no credential key configured, device passwords are stored unencrypted")
	}

	c.repos = newRepositories(c.db, cipher, c.log)
	c.recorder = metrics.NewRecorder()
	return nil
}

// initRedis creates and tests the Redis client connection.
func initRedis(cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Infow("Redis connection established successfully", "addr", cfg.Redis.GetAddr())
	return client, nil
}

// ============================================================
// Section 2: Monitoring - transport factory, engine, log observers
// ============================================================

func (c *Container) initMonitoring() {
	cfg := c.cfg
	log := c.log

	c.hub = services.NewRealtimeHub(log.Named("realtime.hub"), nil)
	if c.redis != nil {
		c.eventBus = pubsub.NewRedisLogEventBus(c.redis, c.hub.Broadcast, log.Named("pubsub.log_events"))
	} else {
		c.eventBus = pubsub.NewLocalLogEventBus(c.hub.Broadcast)
	}
	c.broadcaster = realtime.NewBroadcaster(c.repos.logStore, realtime.BroadcasterConfig{
		SnapshotSize: cfg.Realtime.SnapshotSize,
		PushInterval: cfg.Realtime.PushInterval,
	}, log.Named("realtime.broadcaster"))

	c.employees = monitoring.NewEmployeeSyncer(c.repos.employeeRepo, log.Named("employees"))
	clients := deviceclient.NewFactory(cfg.DeviceDefaults.TokenTTL, log.Named("deviceclient"))

	c.monitor = monitoring.NewEngine(monitoring.EngineConfig{
		Monitor: monitoring.MonitorConfig{
			PrimaryOnly:    cfg.Monitoring.PrimaryOnly,
			MaxParallel:    cfg.Monitoring.MaxParallel,
			BackoffInitial: cfg.Monitoring.BackoffInitial,
			BackoffMax:     cfg.Monitoring.BackoffMax,
		},
		SessionIdleTimeout: cfg.Monitoring.SessionIdleTimeout,
	}, monitoring.Dependencies{
		Devices:  c.repos.deviceRepo,
		Sessions: c.repos.sessionRepo,
		Logs:     c.repos.logStore,
		Audits:   c.repos.auditRepo,
		Factory: func(d *device.Device) monitoring.DeviceTransport {
			return clients.New(d)
		},
		Recorder: c.recorder,
		Observers: []monitoring.LogObserver{
			realtime.NewLogFanout(c.eventBus, log.Named("realtime.fanout")),
			c.employees,
			c.recorder,
		},
		Logger: log.Named("monitoring"),
	})
}

// startEventRelay relays events published by other instances into the local hub.
func (c *Container) startEventRelay(ctx context.Context) {
	bus := c.eventBus
	log := c.log
	goroutine.SafeGo(log, "log-event-relay", func() {
		if err := bus.Subscribe(ctx, c.hub.Broadcast); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnw("log event relay stopped", "error", err)
		}
	})
}

// ============================================================
// Section 4: Scheduler jobs
// ============================================================

func (c *Container) initScheduler() error {
	mgr, err := scheduler.NewSchedulerManager(c.log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	mon := c.cfg.Monitoring
	if err := mgr.RegisterMonitoringSweep(mon.SweepInterval,
		usecases.NewMonitoringSweepJob(c.monitor.Monitor(), c.log.Named("job.sweep"))); err != nil {
		return err
	}
	if err := mgr.RegisterSessionCleanup(mon.CleanupInterval,
		usecases.NewSessionCleanupJob(c.monitor)); err != nil {
		return err
	}
	if err := mgr.RegisterStatistics(mon.StatisticsInterval,
		usecases.NewIngestionStatisticsJob(c.repos.deviceRepo, c.repos.logStore, c.recorder, c.log.Named("job.statistics"))); err != nil {
		return err
	}

	c.schedulerManager = mgr
	return nil
}

// seedDevicesFromConfig converts the configured device list.
func seedDevicesFromConfig(cfg *config.Config) []usecases.SeedDevice {
	seeds := make([]usecases.SeedDevice, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		seeds = append(seeds, usecases.SeedDevice{
			Name:                    d.Name,
			Address:                 d.Address,
			Port:                    d.Port,
			UseHTTPS:                d.UseHTTPS,
			Login:                   d.Login,
			Password:                d.Password,
			IsPrimary:               d.IsPrimary,
			MaxReconnectionAttempts: d.MaxReconnectionAttempts,
		})
	}
	return seeds
}
