package channel

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// Router composes member channels into one logical relay: whatever
// arrives on one member goes out on all the others, never back to its
// origin, and on to the router's own receivers.
type Router struct {
	base
	d *Deps

	memberNames []string
	allow       *regexp.Regexp

	mu2     sync.Mutex
	members []Channel
}

// NewRouter builds a router over the channels named in
// channel.<id>.channels (comma separated).  channel.<id>.rfilter, when
// set, is a regular expression the rendered packet must match to be
// relayed.
func NewRouter(d *Deps, id string) Channel {
	names := strings.Split(d.Cfg.Str("channel."+id+".channels", ""), ",")
	r := &Router{base: newBase(id, d), d: d}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			r.memberNames = append(r.memberNames, n)
		}
	}
	if len(r.memberNames) == 0 {
		d.Log.Error("router has no member channels", "channel", id)
		return nil
	}
	if expr := d.Cfg.Str("channel."+id+".rfilter", ""); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			d.Log.Error("bad router rfilter", "channel", id, "err", err)
			return nil
		}
		r.allow = re
	}
	return r
}

// Activate resolves member names to live instances and installs the
// router as their receiver.  Members are marked in-router so they skip
// their default receiver wiring.
func (r *Router) Activate(ctx context.Context) {
	r.mu2.Lock()
	r.members = r.members[:0]
	for _, name := range r.memberNames {
		m := r.d.Mgr.Get(name)
		if m == nil {
			r.log.Warn("router member not found", "member", name)
			continue
		}
		m.setInRouter(true)
		m.AddReceiver(r)
		r.members = append(r.members, m)
	}
	r.mu2.Unlock()
	r.setState(Running)
}

func (r *Router) Deactivate() {
	r.setState(Off)
}

// ReceivePacket relays a packet arriving on one member to every other
// member, then to the router's own receivers (typically the parser).
// The sent counter increments once per fan-out round.
func (r *Router) ReceivePacket(p *aprs.Packet, dup bool) {
	if p == nil || dup {
		return
	}
	if r.State() != Running {
		return
	}
	if r.allow != nil && !r.allow.MatchString(p.String()) {
		return
	}

	r.fanOut(p)

	r.mu.Lock()
	receivers := append([]Receiver(nil), r.receivers...)
	r.mu.Unlock()
	for _, rcv := range receivers {
		rcv.ReceivePacket(p, false)
	}
}

// SendPacket injects a locally generated packet into every member.
func (r *Router) SendPacket(p *aprs.Packet) error {
	if r.State() != Running {
		return fmt.Errorf("channel %s not running", r.ident)
	}
	r.fanOut(p)
	return nil
}

func (r *Router) fanOut(p *aprs.Packet) {
	r.mu2.Lock()
	members := append([]Channel(nil), r.members...)
	r.mu2.Unlock()

	for _, m := range members {
		if p.Source != nil && m.Ident() == p.Source.Ident() {
			// Never echo back to the origin.
			continue
		}
		if err := m.SendPacket(p); err != nil {
			r.log.Debug("relay failed", "member", m.Ident(), "err", err)
		}
	}
	r.sentCnt.Add(1)
}
