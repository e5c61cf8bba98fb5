package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureKindClassification(t *testing.T) {
	tests := []struct {
		kind      FailureKind
		retryable bool
		counts    bool
		severity  Severity
	}{
		{FailureTimeout, true, true, SeverityWarning},
		{FailureConnection, true, true, SeverityWarning},
		{FailureProtocol, false, true, SeverityError},
		{FailureAuth, false, true, SeverityError},
		{FailureAuthExpired, true, false, SeverityInfo},
		{FailurePersistence, true, false, SeverityError},
		{FailureDisabled, false, false, SeverityInfo},
		{FailureDisabledByThreshold, false, false, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
			assert.Equal(t, tt.counts, tt.kind.CountsTowardThreshold())
			assert.Equal(t, tt.severity, tt.kind.Severity())
		})
	}
}

func TestEventType(t *testing.T) {
	assert.True(t, EventAccessDenied.IsDenied())
	assert.False(t, EventAccessGranted.IsDenied())
	assert.Equal(t, "access_granted", EventAccessGranted.String())
	assert.Equal(t, "event_42", EventType(42).String())
}

func TestOutcome(t *testing.T) {
	ok := Succeeded("connected")
	assert.True(t, ok.Success)
	assert.Equal(t, FailureNone, ok.Kind)

	bad := Failed(FailureTimeout, "timed out")
	assert.False(t, bad.Success)
	assert.Equal(t, FailureTimeout, bad.Kind)
}
