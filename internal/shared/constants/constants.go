package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// Default pagination
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 200

	HeaderXRequestID = "X-Request-ID"

	ContextKeyRequestID = "request_id"

	// Database table names
	TableDevices        = "devices"
	TableDeviceSessions = "device_sessions"
	TableSyncCursors    = "device_sync_cursors"
	TableAccessLogs     = "access_logs"
	TableAuditLogs      = "device_audit_logs"
	TableEmployees      = "employees"

	// Redis keys
	RedisKeyDeviceStatus  = "accesshub:device:status:"
	RedisChannelAccessLog = "accesshub:access_logs"
)
