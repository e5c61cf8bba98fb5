package deviceprotocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginResponse_SessionToken(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"session":"a"}`, "a"},
		{`{"token":"b"}`, "b"},
		{`{"session_id":"c"}`, "c"},
		{`{"success":true}`, ""},
	}

	for _, tt := range tests {
		var r LoginResponse
		require.NoError(t, json.Unmarshal([]byte(tt.body), &r))
		assert.Equal(t, tt.want, r.SessionToken(), tt.body)
	}
}

func TestIsSessionError(t *testing.T) {
	assert.True(t, IsSessionError("SESSION_EXPIRED", ""))
	assert.True(t, IsSessionError("", "Session has expired"))
	assert.True(t, IsSessionError("", "invalid session id"))
	assert.True(t, IsSessionError("", "Unauthorized"))
	assert.False(t, IsSessionError("busy", "device busy"))
}

func TestEnvelope(t *testing.T) {
	var e Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"error":"locked"}`), &e))
	assert.True(t, e.Failed())
	assert.Equal(t, "locked", e.Reason())

	var ok Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"data":[]}`), &ok))
	assert.False(t, ok.Failed())
}
