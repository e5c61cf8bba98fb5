package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host" validate:"required"`
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	Mode           string   `mapstructure:"mode" validate:"oneof=debug release test"`
	Timezone       string   `mapstructure:"timezone"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver            string `mapstructure:"driver" validate:"oneof=mysql sqlite"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database" validate:"required"`
	MaxIdleConns      int    `mapstructure:"max_idle_conns"`
	MaxOpenConns      int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime   int    `mapstructure:"conn_max_lifetime"`
	MigrationStrategy string `mapstructure:"migration_strategy" validate:"oneof=goose golang_migrate auto"`
	ScriptsPath       string `mapstructure:"scripts_path"`
}

// GetDSN returns the driver specific data source name. For sqlite the
// database field is the file path (or ":memory:").
func (d *DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.Database
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true&loc=UTC&multiStatements=true",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MonitoringConfig controls the sweep loop and its housekeeping jobs.
type MonitoringConfig struct {
	AutoStart          bool          `mapstructure:"auto_start"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" validate:"min=1s"`
	PrimaryOnly        bool          `mapstructure:"primary_only"`
	MaxParallel        int           `mapstructure:"max_parallel" validate:"min=1"`
	BackoffInitial     time.Duration `mapstructure:"backoff_initial"`
	BackoffMax         time.Duration `mapstructure:"backoff_max"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	StatisticsInterval time.Duration `mapstructure:"statistics_interval"`
}

type RealtimeConfig struct {
	SnapshotSize int           `mapstructure:"snapshot_size" validate:"min=1,max=500"`
	PushInterval time.Duration `mapstructure:"push_interval" validate:"min=100ms"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
}

// DeviceDefaults are applied to devices that leave the corresponding field unset.
type DeviceDefaults struct {
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	MaxReconnectionAttempts int           `mapstructure:"max_reconnection_attempts" validate:"min=1"`
	TokenTTL                time.Duration `mapstructure:"token_ttl"`
}

type SecurityConfig struct {
	// CredentialKey is a hex encoded 32 byte key used to seal device passwords.
	CredentialKey string `mapstructure:"credential_key" validate:"omitempty,hexadecimal,len=64"`
}

// SeedDevice describes a device registered at startup when absent.
type SeedDevice struct {
	Name                    string `mapstructure:"name" validate:"required"`
	Address                 string `mapstructure:"address" validate:"required"`
	Port                    int    `mapstructure:"port" validate:"min=1,max=65535"`
	UseHTTPS                bool   `mapstructure:"use_https"`
	Login                   string `mapstructure:"login"`
	Password                string `mapstructure:"password"`
	IsPrimary               bool   `mapstructure:"is_primary"`
	MaxReconnectionAttempts int    `mapstructure:"max_reconnection_attempts"`
}
