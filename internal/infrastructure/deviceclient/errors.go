package deviceclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/accesshub/accesshub/internal/domain/device"
)

var (
	errNoToken        = errors.New("login succeeded without a session token")
	errNotConnected   = errors.New("not authenticated")
	errUnexpectedBody = errors.New("unexpected response body")
)

// Error is returned by every Client operation that fails.
type Error struct {
	Op         string
	Kind       device.FailureKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (http %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FailureKind lets callers classify the error without importing this package.
func (e *Error) FailureKind() device.FailureKind {
	return e.Kind
}

func newError(op string, kind device.FailureKind, status int, err error) *Error {
	return &Error{Op: op, Kind: kind, StatusCode: status, Err: err}
}

// transportError classifies a failure of http.Client.Do.
func transportError(ctx context.Context, op string, err error) *Error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return newError(op, device.FailureInternal, 0, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(op, device.FailureTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(op, device.FailureTimeout, 0, err)
	}
	return newError(op, device.FailureConnection, 0, err)
}
