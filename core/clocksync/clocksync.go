// Package clocksync estimates the server's clock from a client's one.
//
// Every server response carrying the server time re-anchors the estimate, which absorbs both clock skew
// and request latency jitter. The estimate is only meant for display timing.
package clocksync

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// HeaderServerTime is set by the API on every response.
const HeaderServerTime = "X-Server-Time"

// ErrStaleClockOffset is returned when a server timestamp is missing or malformed: the previous offset is kept.
var ErrStaleClockOffset = errors.New("stale clock offset")

// Clock tracks offset = local time - server time. It is safe for concurrent use.
type Clock struct {
	mu       sync.RWMutex
	offset   time.Duration
	anchored bool
	localNow func() time.Time
}

// New returns a Clock reading local time from `localNow` (time.Now if nil), with a zero offset.
func New(localNow func() time.Time) *Clock {
	if localNow == nil {
		localNow = time.Now
	}
	return &Clock{localNow: localNow}
}

// Anchor re-computes the offset from an authoritative server time.
func (c *Clock) Anchor(serverTime time.Time) error {
	if serverTime.IsZero() {
		return ErrStaleClockOffset
	}
	local := c.localNow()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = local.Sub(serverTime)
	c.anchored = true
	return nil
}

// AnchorString parses an RFC 3339 server timestamp and anchors on it.
func (c *Clock) AnchorString(serverTime string) error {
	st, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(serverTime))
	if err != nil {
		return errors.Wrapf(ErrStaleClockOffset, "parsing server time %q", serverTime)
	}
	return c.Anchor(st)
}

// AnchorHeader anchors on the X-Server-Time response header.
func (c *Clock) AnchorHeader(h http.Header) error {
	return c.AnchorString(h.Get(HeaderServerTime))
}

// Now returns the estimated server time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	offset := c.offset
	c.mu.RUnlock()
	return c.localNow().Add(-offset)
}

func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Anchored reports whether the clock was anchored at least once.
func (c *Clock) Anchored() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.anchored
}

// IsStale reports whether `err` is (or wraps) ErrStaleClockOffset.
func IsStale(err error) bool {
	return errors.Cause(err) == ErrStaleClockOffset
}
