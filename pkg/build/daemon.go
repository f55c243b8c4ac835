package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/grovetools/uireload/errors"
	"github.com/sirupsen/logrus"
)

// DefaultDialTimeout bounds the connection attempt to the daemon.
const DefaultDialTimeout = 250 * time.Millisecond

// maxResponseSize caps how much of a daemon reply is read.
const maxResponseSize = 1 << 20

// DaemonBuilder asks a running build daemon for a build.
type DaemonBuilder struct {
	addr        string
	target      string
	dialTimeout time.Duration
	logger      *logrus.Entry
}

// NewDaemonBuilder returns a client for the daemon at addr.
func NewDaemonBuilder(addr, target string, dialTimeout time.Duration, logger *logrus.Entry) *DaemonBuilder {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &DaemonBuilder{
		addr:        addr,
		target:      target,
		dialTimeout: dialTimeout,
		logger:      logger,
	}
}

// Addr returns the daemon address.
func (d *DaemonBuilder) Addr() string { return d.addr }

// Build sends one build request. Any failure to get a verdict from the daemon
// is reported as DAEMON_UNAVAILABLE; a verdict of failure is BUILD_FAILURE.
func (d *DaemonBuilder) Build(ctx context.Context, stem string) error {
	dialer := net.Dialer{Timeout: d.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return errors.DaemonUnavailable(d.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock the read if ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	resp, err := exchange(conn, Request{Dynamic: true, Target: d.target, OutputName: stem})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.DaemonUnavailable(d.addr, err)
	}

	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "daemon reported failure"
		}
		return errors.BuildFailure(stem, fmt.Errorf("%s", reason)).WithDetail("strategy", string(StrategyDaemon))
	}

	d.logger.WithField("stem", stem).Debug("Daemon build succeeded")
	return nil
}

// exchange writes req, half-closes the write side and reads the reply to EOF.
func exchange(conn net.Conn, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return nil, fmt.Errorf("half-close: %w", err)
		}
	}

	body, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response %q: %w", truncate(string(body), 120), err)
	}
	return &resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
