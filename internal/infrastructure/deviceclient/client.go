// Package deviceclient implements the HTTP session protocol of access-control
// terminals. A Client holds at most one session token and never touches
// persistence.
package deviceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/utils/logutil"
)

const (
	maxBodyBytes    = 8 << 20
	maxErrorBodyLen = 200

	defaultConnectionTimeout = 10 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	defaultTokenTTL          = 30 * time.Minute
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes one device endpoint.
type Config struct {
	DeviceID          uint
	BaseURL           string
	Login             string
	Password          string
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
	// TokenTTL bounds a token's lifetime when login does not report expires_in.
	TokenTTL time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to a single device.
type Client struct {
	cfg    Config
	http   HTTPClient
	now    func() time.Time
	logger logger.Interface

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func New(cfg Config, log logger.Interface, opts ...Option) *Client {
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = defaultConnectionTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	c := &Client{
		cfg:    cfg,
		now:    time.Now,
		logger: log.With("device_id", cfg.DeviceID),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(cfg)
	}
	return c
}

// NewFromDevice builds a client for d's current endpoint and credentials.
func NewFromDevice(d *device.Device, tokenTTL time.Duration, log logger.Interface, opts ...Option) *Client {
	return New(Config{
		DeviceID:          d.ID(),
		BaseURL:           d.BaseURL(),
		Login:             d.Login(),
		Password:          d.Password(),
		ConnectionTimeout: d.ConnectionTimeout(),
		RequestTimeout:    d.RequestTimeout(),
		TokenTTL:          tokenTTL,
	}, log, opts...)
}

// Factory builds clients that share a token lifetime and options.
type Factory struct {
	tokenTTL time.Duration
	logger   logger.Interface
	opts     []Option
}

func NewFactory(tokenTTL time.Duration, log logger.Interface, opts ...Option) *Factory {
	return &Factory{tokenTTL: tokenTTL, logger: log, opts: opts}
}

// New builds a client for the current endpoint of d.
func (f *Factory) New(d *device.Device) *Client {
	return NewFromDevice(d, f.tokenTTL, f.logger, f.opts...)
}

func newHTTPClient(cfg Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: cfg.ConnectionTimeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectionTimeout,
			ResponseHeaderTimeout: cfg.RequestTimeout,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Authenticate logs in and stores the issued token. A previous token is
// discarded whether or not the login succeeds.
func (c *Client) Authenticate(ctx context.Context) error {
	const op = "authenticate"
	c.dropToken()

	body, err := json.Marshal(deviceprotocol.LoginRequest{Login: c.cfg.Login, Password: c.cfg.Password})
	if err != nil {
		return newError(op, device.FailureInternal, 0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+deviceprotocol.PathLogin, bytes.NewReader(body))
	if err != nil {
		return newError(op, device.FailureInternal, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(ctx, op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return newError(op, device.FailureAuth, resp.StatusCode, fmt.Errorf("credentials rejected"))
	}
	if resp.StatusCode != http.StatusOK {
		return newError(op, device.FailureProtocol, resp.StatusCode, fmt.Errorf("unexpected status: %s", logutil.TruncateForLog(string(bytes.TrimSpace(raw)), maxErrorBodyLen)))
	}

	var lr deviceprotocol.LoginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return newError(op, device.FailureProtocol, resp.StatusCode, fmt.Errorf("decode login response: %w", err))
	}
	if lr.Success != nil && !*lr.Success {
		reason := lr.Error
		if reason == "" {
			reason = lr.Message
		}
		return newError(op, device.FailureAuth, resp.StatusCode, fmt.Errorf("login refused: %s", reason))
	}

	token := lr.SessionToken()
	if token == "" && lr.Succeeded() {
		token = sessionCookie(resp)
	}
	if token == "" {
		return newError(op, device.FailureProtocol, resp.StatusCode, errNoToken)
	}

	ttl := c.cfg.TokenTTL
	if lr.ExpiresIn > 0 {
		ttl = time.Duration(lr.ExpiresIn) * time.Second
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	c.mu.Unlock()

	c.logger.Debugw("device session established", "expires_in", ttl.String())
	return nil
}

func sessionCookie(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		for _, name := range deviceprotocol.SessionCookieNames {
			if ck.Name == name && ck.Value != "" {
				return ck.Value
			}
		}
	}
	return ""
}

// IsConnected reports whether a non-expired token is held. It performs no I/O.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.now().Before(c.expiresAt)
}

// Token returns the current session token, or "" when not connected.
func (c *Client) Token() string {
	if !c.IsConnected() {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Disconnect forgets the token. Devices expose no logout resource.
func (c *Client) Disconnect() {
	c.dropToken()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.dropToken()
	if hc, ok := c.http.(*http.Client); ok {
		hc.CloseIdleConnections()
	}
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// FetchAccessLogs returns the records with id greater than afterID, as
// delivered by the device (no ordering or dedupe guarantees).
func (c *Client) FetchAccessLogs(ctx context.Context, afterID int64) ([]device.LogEntry, error) {
	const op = "fetch_access_logs"
	items, err := c.getList(ctx, op, deviceprotocol.PathLogs, url.Values{
		deviceprotocol.ParamAfter: {strconv.FormatInt(afterID, 10)},
	})
	if err != nil {
		return nil, err
	}
	entries, err := parseLogRecords(c.cfg.DeviceID, items)
	if err != nil {
		return nil, newError(op, device.FailureProtocol, 0, err)
	}
	return entries, nil
}

// FetchStatus returns the device status document.
func (c *Client) FetchStatus(ctx context.Context) (map[string]any, error) {
	const op = "fetch_status"
	raw, err := c.get(ctx, op, deviceprotocol.PathStatus, nil, false)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, newError(op, device.FailureProtocol, 0, err)
	}
	for k, v := range obj {
		obj[k] = normalize(v)
	}
	return obj, nil
}

func (c *Client) FetchUsers(ctx context.Context) ([]deviceprotocol.User, error) {
	items, err := c.getList(ctx, "fetch_users", deviceprotocol.PathUsers, nil)
	if err != nil {
		return nil, err
	}
	return parseUsers(items), nil
}

func (c *Client) FetchGroups(ctx context.Context) ([]deviceprotocol.Group, error) {
	items, err := c.getList(ctx, "fetch_groups", deviceprotocol.PathGroups, nil)
	if err != nil {
		return nil, err
	}
	return parseGroups(items), nil
}

func (c *Client) getList(ctx context.Context, op, path string, query url.Values) ([]map[string]any, error) {
	raw, err := c.get(ctx, op, path, query, true)
	if err != nil {
		return nil, err
	}
	items, err := decodeObjects(raw)
	if err != nil {
		return nil, newError(op, device.FailureProtocol, 0, err)
	}
	return items, nil
}

// get performs an authenticated GET and returns the unwrapped payload. An
// auth-expired answer drops the token; the caller decides whether to
// re-authenticate.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, wantList bool) (json.RawMessage, error) {
	token := c.Token()
	if token == "" {
		return nil, newError(op, device.FailureAuthExpired, 0, errNotConnected)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set(deviceprotocol.ParamSession, token)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, newError(op, device.FailureInternal, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(ctx, op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.dropToken()
		return nil, newError(op, device.FailureAuthExpired, resp.StatusCode, fmt.Errorf("session rejected"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(op, device.FailureProtocol, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", logutil.TruncateForLog(string(bytes.TrimSpace(body)), maxErrorBodyLen)))
	}

	payload, failed, err := unwrapData(body, wantList)
	if err != nil {
		return nil, newError(op, device.FailureProtocol, resp.StatusCode, err)
	}
	if failed != nil {
		if deviceprotocol.IsSessionError(failed.Code, failed.Reason()) {
			c.dropToken()
			return nil, newError(op, device.FailureAuthExpired, resp.StatusCode, fmt.Errorf("session expired: %s", failed.Reason()))
		}
		return nil, newError(op, device.FailureProtocol, resp.StatusCode, fmt.Errorf("device error: %s", failed.Reason()))
	}
	return payload, nil
}
