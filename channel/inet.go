package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// SoftwareID is sent in the APRS-IS login line.
const SoftwareID = "aprsd-go 1.0"

// InetChannel is an APRS-IS client: it logs in to an internet feed and
// exchanges packets in the TNC2 text line format.
type InetChannel struct {
	base
	link *CommLink

	addr       string
	user       string
	pass       string
	filterSpec string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewInetChannel builds the channel from channel.<id>.* configuration.
// A missing host is a configuration error and yields nil.
func NewInetChannel(d *Deps, id string) Channel {
	host := d.Cfg.Str("channel."+id+".host", "")
	if host == "" {
		d.Log.Error("channel missing required host", "channel", id)
		return nil
	}
	port := d.Cfg.Int("channel."+id+".port", 14580)

	c := &InetChannel{
		base:       newBase(id, d),
		addr:       net.JoinHostPort(host, strconv.Itoa(port)),
		user:       d.Cfg.Str("channel."+id+".user", d.Cfg.Str("default.mycall", "NOCALL")),
		pass:       d.Cfg.Str("channel."+id+".pass", "-1"),
		filterSpec: d.Cfg.Str("channel."+id+".filter", ""),
	}
	c.link = &CommLink{
		Log:         c.log,
		Dial:        c.dial,
		Serve:       c.serve,
		MaxRetries:  d.Cfg.Int("channel."+id+".retry", 0),
		BackoffStep: TCPBackoffStep,
		Ceiling:     time.Duration(d.Cfg.Int("channel."+id+".retry.time", 30)) * time.Minute,
		OnFailed:    failoverHook(d, id),
	}
	return c
}

func (c *InetChannel) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	var dialer net.Dialer
	dialer.Timeout = 15 * time.Second
	return dialer.DialContext(ctx, "tcp", c.addr)
}

func (c *InetChannel) serve(ctx context.Context, conn io.ReadWriteCloser) error {
	login := fmt.Sprintf("user %s pass %s vers %s", c.user, c.pass, SoftwareID)
	if c.filterSpec != "" {
		login += " filter " + c.filterSpec
	}
	if _, err := io.WriteString(conn, login+"\r\n"); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	lr := newLineReader(conn)
	for {
		armDeadline(conn)
		line, err := lr.ReadLine()
		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			return err
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := aprs.ParseTNC2(line)
		if err != nil {
			c.log.Debug("bad line", "line", line, "err", err)
			continue
		}
		c.packetReceived(p)
	}
}

func (c *InetChannel) Activate(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.link.Run(ctx, c.setState)
	}()
}

func (c *InetChannel) Deactivate() {
	if c.cancel != nil {
		c.cancel()
	}
	c.link.Close()
	if c.done != nil {
		<-c.done
	}
}

func (c *InetChannel) SendPacket(p *aprs.Packet) error {
	if c.State() != Running {
		return fmt.Errorf("channel %s not running", c.ident)
	}
	conn := c.link.Conn()
	if conn == nil {
		return fmt.Errorf("channel %s has no connection", c.ident)
	}
	if _, err := io.WriteString(conn, p.String()+"\r\n"); err != nil {
		return err
	}
	c.sentCnt.Add(1)
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// failoverHook returns the FAILED transition hook: it activates the
// configured failover channel in place of the failed one.
func failoverHook(d *Deps, id string) func() {
	name := d.Cfg.Str("channel."+id+".failover", "")
	if name == "" || d.Mgr == nil {
		return nil
	}
	return func() {
		d.Mgr.activateFailover(id, name)
	}
}
