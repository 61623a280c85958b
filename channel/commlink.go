package channel

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Backoff steps: serial links come back faster than TCP.
const (
	SerialBackoffStep = 30 * time.Second
	TCPBackoffStep    = 60 * time.Second

	// readTimeout is the deadline applied to blocking reads so the
	// receive loop re-checks cancellation.  Deactivation can therefore
	// lag by up to one timeout period.
	readTimeout = 30 * time.Second
)

// CommLink is the connection-management loop a transport channel owns:
// dial, serve until the link drops, back off linearly and retry.  A link
// has no identity across reconnects; the connection is recreated on every
// attempt.
type CommLink struct {
	Log         *log.Logger
	Dial        func(ctx context.Context) (io.ReadWriteCloser, error)
	Serve       func(ctx context.Context, conn io.ReadWriteCloser) error
	MaxRetries  int // 0 = unlimited
	BackoffStep time.Duration
	Ceiling     time.Duration // backoff cap
	OnFailed    func()        // failover hook, called once on FAILED

	mu   sync.Mutex
	conn io.ReadWriteCloser
}

// Run drives the retry state machine until the context is canceled or
// retries are exhausted.  setState publishes lifecycle transitions to the
// owning channel.
func (l *CommLink) Run(ctx context.Context, setState func(State)) {
	retries := 0
	for {
		if ctx.Err() != nil {
			setState(Off)
			return
		}
		setState(Starting)

		conn, err := l.Dial(ctx)
		if err != nil {
			retries++
			if unknownHost(err) && retries >= 2 {
				// Misconfiguration, not a transient: one extra attempt
				// was already made, give up.
				l.Log.Error("unknown host, giving up", "err", err)
				l.fail(setState)
				return
			}
			if l.MaxRetries > 0 && retries >= l.MaxRetries {
				l.Log.Error("retries exhausted", "retries", retries, "err", err)
				l.fail(setState)
				return
			}
			wait := time.Duration(retries) * l.BackoffStep
			if l.Ceiling > 0 && wait > l.Ceiling {
				wait = l.Ceiling
			}
			l.Log.Warn("connect failed", "retry", retries, "wait", wait, "err", err)
			select {
			case <-ctx.Done():
				setState(Off)
				return
			case <-time.After(wait):
			}
			continue
		}

		l.setConn(conn)
		setState(Running)
		retries = 0

		err = l.Serve(ctx, conn)
		conn.Close()
		l.setConn(nil)

		if ctx.Err() != nil {
			setState(Off)
			return
		}
		// IO errors fall back to the retry cycle, never straight to
		// FAILED.
		l.Log.Warn("link dropped", "err", err)
	}
}

func (l *CommLink) fail(setState func(State)) {
	setState(Failed)
	if l.OnFailed != nil {
		l.OnFailed()
	}
}

func (l *CommLink) setConn(c io.ReadWriteCloser) {
	l.mu.Lock()
	l.conn = c
	l.mu.Unlock()
}

// Conn returns the live connection, or nil while connecting.
func (l *CommLink) Conn() io.ReadWriteCloser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Close tears down the live connection so a blocked read returns.  Used
// by Deactivate alongside context cancellation.
func (l *CommLink) Close() {
	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.mu.Unlock()
}

func unknownHost(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// deadliner is implemented by net.Conn; serial links emulate it through
// their driver read timeout.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// armDeadline pushes the read deadline forward when the connection
// supports it.
func armDeadline(conn io.ReadWriteCloser) {
	if d, ok := conn.(deadliner); ok {
		d.SetReadDeadline(time.Now().Add(readTimeout))
	}
}
