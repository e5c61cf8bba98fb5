package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	sharedConfig "github.com/accesshub/accesshub/internal/shared/config"
)

type Config struct {
	Server         sharedConfig.ServerConfig     `mapstructure:"server"`
	Database       sharedConfig.DatabaseConfig   `mapstructure:"database"`
	Logger         sharedConfig.LoggerConfig     `mapstructure:"logger"`
	Redis          sharedConfig.RedisConfig      `mapstructure:"redis"`
	Monitoring     sharedConfig.MonitoringConfig `mapstructure:"monitoring"`
	Realtime       sharedConfig.RealtimeConfig   `mapstructure:"realtime"`
	DeviceDefaults sharedConfig.DeviceDefaults   `mapstructure:"device_defaults"`
	Security       sharedConfig.SecurityConfig   `mapstructure:"security"`
	Devices        []sharedConfig.SeedDevice     `mapstructure:"devices" validate:"dive"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// configPath overrides the search path when non-empty. A missing config file
// is tolerated so the service can run purely from ACCESSHUB_* variables.
func Load(env, configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("ACCESSHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", mapEnvToMode(env))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Validate checks struct level constraints of a loaded configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func mapEnvToMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timezone", "UTC")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "accesshub.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.migration_strategy", "auto")
	v.SetDefault("database.scripts_path", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("monitoring.auto_start", true)
	v.SetDefault("monitoring.sweep_interval", "30s")
	v.SetDefault("monitoring.primary_only", false)
	v.SetDefault("monitoring.max_parallel", 4)
	v.SetDefault("monitoring.backoff_initial", "30s")
	v.SetDefault("monitoring.backoff_max", "10m")
	v.SetDefault("monitoring.session_idle_timeout", "30m")
	v.SetDefault("monitoring.cleanup_interval", "5m")
	v.SetDefault("monitoring.statistics_interval", "15m")

	v.SetDefault("realtime.snapshot_size", 20)
	v.SetDefault("realtime.push_interval", "1s")
	v.SetDefault("realtime.write_wait", "10s")
	v.SetDefault("realtime.pong_wait", "60s")
	v.SetDefault("realtime.ping_period", "30s")

	v.SetDefault("device_defaults.connection_timeout", "10s")
	v.SetDefault("device_defaults.request_timeout", "30s")
	v.SetDefault("device_defaults.max_reconnection_attempts", 3)
	v.SetDefault("device_defaults.token_ttl", "30m")

	v.SetDefault("security.credential_key", "")
}
