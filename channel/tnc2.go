package channel

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// Tnc2Channel reads a TNC in converse/monitor mode over a serial port:
// one TNC2-format text line per packet.  Useful for older TNCs that
// cannot be put in KISS mode.
type Tnc2Channel struct {
	base
	link *CommLink

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTnc2Channel(d *Deps, id string) Channel {
	device := d.Cfg.Str("channel."+id+".port", "")
	if device == "" {
		d.Log.Error("channel missing required serial port", "channel", id)
		return nil
	}
	baud := d.Cfg.Int("channel."+id+".baud", 9600)

	c := &Tnc2Channel{base: newBase(id, d)}
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

func (c *Tnc2Channel) serve(ctx context.Context, conn io.ReadWriteCloser) error {
	lr := newLineReader(conn)
	for {
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
		if line == "" {
			continue
		}
		p, err := aprs.ParseTNC2(line)
		if err != nil {
			c.log.Debug("bad monitor line", "line", line, "err", err)
			continue
		}
		c.packetReceived(p)
	}
}

func (c *Tnc2Channel) Activate(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.link.Run(ctx, c.setState)
	}()
}

func (c *Tnc2Channel) Deactivate() {
	if c.cancel != nil {
		c.cancel()
	}
	c.link.Close()
	if c.done != nil {
		<-c.done
	}
}

func (c *Tnc2Channel) SendPacket(p *aprs.Packet) error {
	if c.State() != Running {
		return fmt.Errorf("channel %s not running", c.ident)
	}
	conn := c.link.Conn()
	if conn == nil {
		return fmt.Errorf("channel %s has no connection", c.ident)
	}
	if _, err := io.WriteString(conn, p.String()+"\r"); err != nil {
		return err
	}
	c.sentCnt.Add(1)
	return nil
}
