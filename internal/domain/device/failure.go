package device

// FailureKind classifies why a device operation did not succeed.
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureDisabled            FailureKind = "disabled"
	FailureTimeout             FailureKind = "timeout"
	FailureConnection          FailureKind = "connection"
	FailureProtocol            FailureKind = "protocol"
	FailureAuth                FailureKind = "auth"
	FailureAuthExpired         FailureKind = "auth_expired"
	FailurePersistence         FailureKind = "persistence"
	FailureNotFound            FailureKind = "not_found"
	FailureDisabledByThreshold FailureKind = "disabled_by_threshold"
	FailureInternal            FailureKind = "internal"
)

// Retryable reports whether the next sweep may reasonably succeed without
// operator action.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureConnection, FailureAuthExpired, FailurePersistence:
		return true
	}
	return false
}

// CountsTowardThreshold reports whether the failure increments the device
// error_count. Expired tokens only force re-authentication and storage
// failures are not the device's fault.
func (k FailureKind) CountsTowardThreshold() bool {
	switch k {
	case FailureTimeout, FailureConnection, FailureProtocol, FailureAuth:
		return true
	}
	return false
}

// Severity is the audit severity recorded for the failure.
func (k FailureKind) Severity() Severity {
	switch k {
	case FailureNone, FailureDisabled, FailureAuthExpired:
		return SeverityInfo
	case FailureTimeout, FailureConnection, FailureNotFound:
		return SeverityWarning
	case FailureDisabledByThreshold:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// AuditCategory is the audit category recorded for the failure.
func (k FailureKind) AuditCategory() AuditCategory {
	switch k {
	case FailureAuth, FailureAuthExpired:
		return AuditAuth
	case FailureTimeout, FailureConnection:
		return AuditConnection
	case FailureDisabled, FailureDisabledByThreshold:
		return AuditMaintenance
	default:
		return AuditError
	}
}

// Outcome is the result of a connection level operation. Failures are
// values, not errors, so a sweep can aggregate them.
type Outcome struct {
	Success bool        `json:"success"`
	Kind    FailureKind `json:"kind,omitempty"`
	Message string      `json:"message"`
}

func Succeeded(message string) Outcome {
	return Outcome{Success: true, Message: message}
}

func Failed(kind FailureKind, message string) Outcome {
	return Outcome{Kind: kind, Message: message}
}
