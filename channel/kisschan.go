package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
	"github.com/PolaricServer/aprsd-go/kiss"
)

// kissChannel is the shared body of the two KISS transports: a CommLink
// feeding the KISS stream decoder.  TcpKissChannel and KissTncChannel
// differ only in how they dial.
type kissChannel struct {
	base
	link *CommLink

	cancel context.CancelFunc
	done   chan struct{}
}

func (c *kissChannel) serve(ctx context.Context, conn io.ReadWriteCloser) error {
	dec := kiss.NewDecoder(conn)
	for {
		armDeadline(conn)
		p, err := dec.Next()
		if err != nil {
			if errors.Is(err, kiss.ErrTimeout) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			return err
		}
		c.packetReceived(p)
	}
}

func (c *kissChannel) Activate(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.link.Run(ctx, c.setState)
	}()
}

func (c *kissChannel) Deactivate() {
	if c.cancel != nil {
		c.cancel()
	}
	c.link.Close()
	if c.done != nil {
		<-c.done
	}
}

func (c *kissChannel) SendPacket(p *aprs.Packet) error {
	if c.State() != Running {
		return fmt.Errorf("channel %s not running", c.ident)
	}
	conn := c.link.Conn()
	if conn == nil {
		return fmt.Errorf("channel %s has no connection", c.ident)
	}
	if err := kiss.NewEncoder(conn).Write(p); err != nil {
		return err
	}
	c.sentCnt.Add(1)
	return nil
}

// TcpKissChannel talks KISS to a TNC behind a TCP socket (a network TNC
// or a soundmodem's KISS port).
type TcpKissChannel struct {
	kissChannel
}

func NewTcpKissChannel(d *Deps, id string) Channel {
	host := d.Cfg.Str("channel."+id+".host", "")
	if host == "" {
		d.Log.Error("channel missing required host", "channel", id)
		return nil
	}
	addr := net.JoinHostPort(host, strconv.Itoa(d.Cfg.Int("channel."+id+".port", 8001)))

	c := &TcpKissChannel{kissChannel{base: newBase(id, d)}}
	c.link = &CommLink{
		Log: c.log,
		Dial: func(ctx context.Context) (io.ReadWriteCloser, error) {
			var dialer net.Dialer
			dialer.Timeout = 15 * time.Second
			return dialer.DialContext(ctx, "tcp", addr)
		},
		Serve:       c.serve,
		MaxRetries:  d.Cfg.Int("channel."+id+".retry", 0),
		BackoffStep: TCPBackoffStep,
		Ceiling:     time.Duration(d.Cfg.Int("channel."+id+".retry.time", 30)) * time.Minute,
		OnFailed:    failoverHook(d, id),
	}
	return c
}

// KissTncChannel talks KISS to a TNC on a serial port.
type KissTncChannel struct {
	kissChannel
}

func NewKissTncChannel(d *Deps, id string) Channel {
	device := d.Cfg.Str("channel."+id+".port", "")
	if device == "" {
		d.Log.Error("channel missing required serial port", "channel", id)
		return nil
	}
	baud := d.Cfg.Int("channel."+id+".baud", 9600)

	c := &KissTncChannel{kissChannel{base: newBase(id, d)}}
	c.link = &CommLink{
		Log: c.log,
		Dial: func(ctx context.Context) (io.ReadWriteCloser, error) {
			return openSerial(device, baud)
		},
		Serve:       c.serve,
		MaxRetries:  d.Cfg.Int("channel."+id+".retry", 0),
		BackoffStep: SerialBackoffStep,
		Ceiling:     time.Duration(d.Cfg.Int("channel."+id+".retry.time", 30)) * time.Minute,
		OnFailed:    failoverHook(d, id),
	}
	return c
}
