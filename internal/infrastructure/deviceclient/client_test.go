package deviceclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

type fakeTerminal struct {
	login     http.HandlerFunc
	logs      http.HandlerFunc
	status    http.HandlerFunc
	users     http.HandlerFunc
	groups    http.HandlerFunc
	lastAfter atomic.Value
}

func (f *fakeTerminal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.HandlerFunc
	switch r.URL.Path {
	case deviceprotocol.PathLogin:
		h = f.login
	case deviceprotocol.PathLogs:
		f.lastAfter.Store(r.URL.Query().Get(deviceprotocol.ParamAfter))
		h = f.logs
	case deviceprotocol.PathStatus:
		h = f.status
	case deviceprotocol.PathUsers:
		h = f.users
	case deviceprotocol.PathGroups:
		h = f.groups
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func requireSession(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(deviceprotocol.ParamSession) != token {
			jsonHandler(http.StatusUnauthorized, `{"success":false,"code":"invalid_session"}`)(w, r)
			return
		}
		next(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeTerminal, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(Config{
		DeviceID:          7,
		BaseURL:           srv.URL,
		Login:             "admin",
		Password:          "secret",
		ConnectionTimeout: time.Second,
		RequestTimeout:    time.Second,
	}, logger.NewNop(), opts...)
}

func failureKind(t *testing.T, err error) device.FailureKind {
	t.Helper()
	var ce *Error
	require.True(t, errors.As(err, &ce), "expected *Error, got %v", err)
	return ce.Kind
}

func TestAuthenticate_TokenFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"session", `{"session":"s1"}`, "s1"},
		{"token", `{"success":true,"token":"t1"}`, "t1"},
		{"session_id", `{"session_id":"i1","expires_in":60}`, "i1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeTerminal{login: jsonHandler(http.StatusOK, tt.body)})

			require.NoError(t, c.Authenticate(context.Background()))
			assert.True(t, c.IsConnected())
			assert.Equal(t, tt.want, c.Token())
		})
	}
}

func TestAuthenticate_PostsCredentials(t *testing.T) {
	var got deviceprotocol.LoginRequest
	c := newTestClient(t, &fakeTerminal{login: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		jsonHandler(http.StatusOK, `{"session":"x"}`)(w, r)
	}})

	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, deviceprotocol.LoginRequest{Login: "admin", Password: "secret"}, got)
}

func TestAuthenticate_CookieFallback(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{login: func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "cookie-token"})
		jsonHandler(http.StatusOK, `{"success":true}`)(w, r)
	}})

	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, "cookie-token", c.Token())
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    device.FailureKind
	}{
		{"success without token", jsonHandler(http.StatusOK, `{"success":true}`), device.FailureProtocol},
		{"refused", jsonHandler(http.StatusOK, `{"success":false,"error":"bad password"}`), device.FailureAuth},
		{"401", jsonHandler(http.StatusUnauthorized, `{}`), device.FailureAuth},
		{"500", jsonHandler(http.StatusInternalServerError, `oops`), device.FailureProtocol},
		{"202 with token", jsonHandler(http.StatusAccepted, `{"session":"s1"}`), device.FailureProtocol},
		{"not json", jsonHandler(http.StatusOK, `<html>`), device.FailureProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeTerminal{login: tt.handler})

			err := c.Authenticate(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.kind, failureKind(t, err))
			assert.False(t, c.IsConnected())
		})
	}
}

func TestAuthenticate_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, &fakeTerminal{login: func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}})
	c.cfg.ConnectionTimeout = 50 * time.Millisecond

	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, device.FailureTimeout, failureKind(t, err))
}

func TestAuthenticate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Config{BaseURL: base, ConnectionTimeout: time.Second}, logger.NewNop())
	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, device.FailureConnection, failureKind(t, err))
}

func TestIsConnected_ExpiresWithTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := newTestClient(t, &fakeTerminal{login: jsonHandler(http.StatusOK, `{"session":"s","expires_in":60}`)}, WithClock(clock))

	require.NoError(t, c.Authenticate(context.Background()))
	assert.True(t, c.IsConnected())

	now = now.Add(61 * time.Second)
	assert.False(t, c.IsConnected())
	assert.Empty(t, c.Token())
}

func TestFetchAccessLogs(t *testing.T) {
	bodies := map[string]string{
		"bare array": `[{"id":6,"user_id":"u1","event_type":1,"time":"2024-05-01 08:00:00","door":"north"},
			{"id":7,"user_id":42,"event_type":2,"time":"2024-05-01T08:01:00Z"}]`,
		"envelope": `{"success":true,"data":[{"log_id":"6","user":"u1","event":1,"timestamp":1714550400,"door":"north"},
			{"id":7,"user_id":"42","type":"2","datetime":"2024-05-01T08:01:00Z"}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			f := &fakeTerminal{
				login: jsonHandler(http.StatusOK, `{"session":"tok"}`),
				logs:  requireSession("tok", jsonHandler(http.StatusOK, body)),
			}
			c := newTestClient(t, f)
			require.NoError(t, c.Authenticate(context.Background()))

			entries, err := c.FetchAccessLogs(context.Background(), 5)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			assert.Equal(t, "5", f.lastAfter.Load())
			assert.Equal(t, int64(6), entries[0].DeviceLogID)
			assert.Equal(t, uint(7), entries[0].DeviceID)
			assert.Equal(t, "u1", entries[0].UserID)
			assert.Equal(t, device.EventAccessGranted, entries[0].EventType)
			assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), entries[0].EventTime)
			assert.Equal(t, "north", entries[0].Details["door"])

			assert.Equal(t, "42", entries[1].UserID)
			assert.Equal(t, device.EventAccessDenied, entries[1].EventType)
		})
	}
}

func TestFetchAccessLogs_EmptyEnvelope(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{
		login: jsonHandler(http.StatusOK, `{"session":"tok"}`),
		logs:  jsonHandler(http.StatusOK, `{"success":true}`),
	})
	require.NoError(t, c.Authenticate(context.Background()))

	entries, err := c.FetchAccessLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchAccessLogs_MissingID(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{
		login: jsonHandler(http.StatusOK, `{"session":"tok"}`),
		logs:  jsonHandler(http.StatusOK, `[{"user_id":"u1"}]`),
	})
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.FetchAccessLogs(context.Background(), 0)
	assert.Equal(t, device.FailureProtocol, failureKind(t, err))
}

func TestFetch_AuthExpiredDropsToken(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 401", jsonHandler(http.StatusUnauthorized, `{}`)},
		{"envelope code", jsonHandler(http.StatusOK, `{"success":false,"code":"session_expired"}`)},
		{"envelope message", jsonHandler(http.StatusOK, `{"success":false,"error":"Session expired, please log in"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeTerminal{
				login:  jsonHandler(http.StatusOK, `{"session":"tok"}`),
				status: tt.handler,
			})
			require.NoError(t, c.Authenticate(context.Background()))

			_, err := c.FetchStatus(context.Background())
			require.Error(t, err)
			assert.Equal(t, device.FailureAuthExpired, failureKind(t, err))
			assert.False(t, c.IsConnected())
		})
	}
}

func TestFetch_DeviceErrorIsProtocol(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{
		login:  jsonHandler(http.StatusOK, `{"session":"tok"}`),
		status: jsonHandler(http.StatusOK, `{"success":false,"error":"busy"}`),
	})
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.FetchStatus(context.Background())
	assert.Equal(t, device.FailureProtocol, failureKind(t, err))
	assert.True(t, c.IsConnected())
}

func TestFetch_NonOKStatusIsProtocol(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c := newTestClient(t, &fakeTerminal{
				login:  jsonHandler(http.StatusOK, `{"session":"tok"}`),
				groups: jsonHandler(status, `{"success":true,"data":[]}`),
			})
			require.NoError(t, c.Authenticate(context.Background()))

			_, err := c.FetchGroups(context.Background())
			require.Error(t, err)
			assert.Equal(t, device.FailureProtocol, failureKind(t, err))
			assert.True(t, c.IsConnected())
		})
	}
}

func TestFetch_RequiresToken(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{})

	_, err := c.FetchUsers(context.Background())
	assert.Equal(t, device.FailureAuthExpired, failureKind(t, err))
}

func TestFetchStatusUsersGroups(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{
		login:  jsonHandler(http.StatusOK, `{"session":"tok"}`),
		status: requireSession("tok", jsonHandler(http.StatusOK, `{"door":"closed","uptime":3600}`)),
		users:  requireSession("tok", jsonHandler(http.StatusOK, `{"success":true,"data":[{"id":1,"name":"Ann","group_id":"g1","card":"C-1"},{"name":"no id"}]}`)),
		groups: requireSession("tok", jsonHandler(http.StatusOK, `[{"id":"g1","name":"Staff"}]`)),
	})
	require.NoError(t, c.Authenticate(context.Background()))
	ctx := context.Background()

	status, err := c.FetchStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "closed", status["door"])
	assert.Equal(t, int64(3600), status["uptime"])

	users, err := c.FetchUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []deviceprotocol.User{{ID: "1", Name: "Ann", GroupID: "g1", CardNumber: "C-1"}}, users)

	groups, err := c.FetchGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []deviceprotocol.Group{{ID: "g1", Name: "Staff"}}, groups)
}

func TestDisconnect(t *testing.T) {
	c := newTestClient(t, &fakeTerminal{login: jsonHandler(http.StatusOK, `{"session":"tok"}`)})
	require.NoError(t, c.Authenticate(context.Background()))

	c.Disconnect()
	assert.False(t, c.IsConnected())
	c.Close()
}

func TestNewFromDevice(t *testing.T) {
	d, err := device.NewDevice(device.Params{Name: "g", Address: "10.1.1.1", Port: 443, UseHTTPS: true, Login: "l"}, time.Now())
	require.NoError(t, err)

	c := NewFromDevice(d, time.Minute, logger.NewNop())
	assert.Equal(t, "https://10.1.1.1:443", c.cfg.BaseURL)
	assert.Equal(t, defaultConnectionTimeout, c.cfg.ConnectionTimeout)
	assert.Equal(t, time.Minute, c.cfg.TokenTTL)
}
