// Package deviceprotocol defines the HTTP resources and payloads spoken by
// access-control terminals.
package deviceprotocol

import (
	"encoding/json"
	"strings"
)

// Resource paths relative to the device base URL.
const (
	PathLogin  = "/login"
	PathLogs   = "/logs"
	PathStatus = "/status"
	PathUsers  = "/users"
	PathGroups = "/groups"
)

// Query parameters.
const (
	ParamSession = "session"
	ParamAfter   = "after"
)

// SessionCookieNames are accepted when a login succeeds without a token field.
var SessionCookieNames = []string{"session", "sessionid", "SESSIONID"}

// LoginRequest is posted to PathLogin.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResponse covers the token field spellings seen across firmware versions.
type LoginResponse struct {
	Success   *bool  `json:"success,omitempty"`
	Session   string `json:"session,omitempty"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SessionToken returns the first non-empty token field.
func (r LoginResponse) SessionToken() string {
	for _, t := range []string{r.Session, r.Token, r.SessionID} {
		if t != "" {
			return t
		}
	}
	return ""
}

// Succeeded reports an explicit success flag.
func (r LoginResponse) Succeeded() bool {
	return r.Success != nil && *r.Success
}

// Envelope wraps data responses on newer firmware. Older firmware answers
// with the bare payload.
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Failed reports an explicit success=false.
func (e Envelope) Failed() bool {
	return e.Success != nil && !*e.Success
}

// Reason returns the most specific failure description available.
func (e Envelope) Reason() string {
	for _, s := range []string{e.Error, e.Message, e.Code} {
		if s != "" {
			return s
		}
	}
	return "device reported failure"
}

var sessionErrorCodes = map[string]struct{}{
	"session_expired": {},
	"invalid_session": {},
	"not_logged_in":   {},
	"unauthorized":    {},
	"token_expired":   {},
}

// IsSessionError reports whether a failure code or message indicates that
// the session token is no longer valid.
func IsSessionError(code, message string) bool {
	if _, ok := sessionErrorCodes[strings.ToLower(code)]; ok {
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "session") && (strings.Contains(m, "expired") || strings.Contains(m, "invalid")) ||
		strings.Contains(m, "not logged in") ||
		strings.Contains(m, "unauthorized")
}

// User is a person record as listed by a device.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GroupID    string `json:"group_id,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
}

// Group is an access group as listed by a device.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Log record field aliases, in lookup order.
var (
	LogIDKeys        = []string{"id", "log_id", "record_id"}
	LogUserKeys      = []string{"user_id", "user", "employee_id"}
	LogEventKeys     = []string{"event_type", "event", "type"}
	LogTimeKeys      = []string{"event_time", "time", "timestamp", "datetime"}
	UserIDKeys       = []string{"id", "user_id"}
	UserNameKeys     = []string{"name", "full_name"}
	UserGroupKeys    = []string{"group_id", "group"}
	UserCardKeys     = []string{"card_number", "card"}
	GroupIDKeys      = []string{"id", "group_id"}
	GroupNameKeys    = []string{"name", "title"}
	DeviceTimeLayout = "2006-01-02 15:04:05"
)
