package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load("", path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Monitoring.SweepInterval)
	assert.Equal(t, 20, cfg.Realtime.SnapshotSize)
	assert.Equal(t, time.Second, cfg.Realtime.PushInterval)
	assert.Equal(t, 3, cfg.DeviceDefaults.MaxReconnectionAttempts)
	assert.Same(t, cfg, Get())
}

func TestLoad_EnvOverridesMode(t *testing.T) {
	path := writeConfig(t, "server:\n  mode: debug\n")

	cfg, err := Load("production", path)
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Server.Mode)
}

func TestLoad_SeedDevices(t *testing.T) {
	path := writeConfig(t, `
devices:
  - name: lobby
    address: 10.0.0.5
    port: 80
    login: admin
    password: secret
    is_primary: true
`)

	cfg, err := Load("", path)
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, "lobby", cfg.Devices[0].Name)
	assert.True(t, cfg.Devices[0].IsPrimary)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad driver", "database:\n  driver: oracle\n"},
		{"zero parallelism", "monitoring:\n  max_parallel: 0\n"},
		{"sweep too fast", "monitoring:\n  sweep_interval: 10ms\n"},
		{"short credential key", "security:\n  credential_key: abcd\n"},
		{"seed without address", "devices:\n  - name: x\n    port: 80\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
