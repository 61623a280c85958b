// Package channel is the transport layer: every way packets enter or
// leave the server is a Channel.  Variants share a CommLink helper for
// reconnect/backoff and a common receiver fan-out; the Router and the
// APRS-IS server are channels too.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/PolaricServer/aprsd-go/aprs"
	"github.com/PolaricServer/aprsd-go/config"
	"github.com/PolaricServer/aprsd-go/dedupe"
	"github.com/PolaricServer/aprsd-go/filter"
)

// State is the channel lifecycle.
type State int32

const (
	Off State = iota
	Starting
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Receiver consumes packets delivered by a channel, in arrival order.
// Delivery is a synchronous push: a slow receiver stalls the channel's
// read loop.
type Receiver interface {
	ReceivePacket(p *aprs.Packet, dup bool)
}

// Channel is the capability set every transport variant implements.
type Channel interface {
	Ident() string
	Activate(ctx context.Context)
	Deactivate()
	SendPacket(p *aprs.Packet) error
	State() State
	AddReceiver(r Receiver)

	// setInRouter suppresses the channel's default receiver wiring when a
	// router takes ownership of it.
	setInRouter(bool)
	inRouter() bool
}

// Deps is the shared state channels are constructed with: configuration,
// logging, the cross-channel duplicate filter and the manager for
// failover resolution.  Explicitly injected, never ambient.
type Deps struct {
	Cfg *config.Config
	Log *log.Logger
	Dup *dedupe.Filter
	Mgr *Manager

	// Points resolves tracked-point positions for client f/ filters.
	Points filter.PointResolver
}

// HeardEntry records when and over which path a station was last heard.
type HeardEntry struct {
	When time.Time
	Path string
}

// base carries the state common to all channel variants: identity,
// lifecycle state, counters, the heard map and the receiver list.
// Counters are written only by the channel's own loop; readers use
// atomic loads.
type base struct {
	ident string
	log   *log.Logger
	dup   *dedupe.Filter

	state    atomic.Int32
	routed   atomic.Bool
	heardPkt atomic.Int64
	dupCnt   atomic.Int64
	sentCnt  atomic.Int64

	mu        sync.Mutex
	receivers []Receiver
	heard     map[string]HeardEntry
}

func newBase(ident string, d *Deps) base {
	return base{
		ident: ident,
		log:   d.Log.WithPrefix("chan." + ident),
		dup:   d.Dup,
		heard: map[string]HeardEntry{},
	}
}

func (b *base) Ident() string { return b.ident }

func (b *base) State() State { return State(b.state.Load()) }

func (b *base) setState(s State) {
	if b.state.Swap(int32(s)) != int32(s) {
		b.log.Info("channel state", "state", s)
	}
}

func (b *base) AddReceiver(r Receiver) {
	b.mu.Lock()
	b.receivers = append(b.receivers, r)
	b.mu.Unlock()
}

func (b *base) setInRouter(v bool) { b.routed.Store(v) }
func (b *base) inRouter() bool     { return b.routed.Load() }

// Heard returns a snapshot of the heard map.  Entries are never
// time-evicted; RemoveHeard is the manual eviction hook.
func (b *base) Heard() map[string]HeardEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]HeardEntry, len(b.heard))
	for k, v := range b.heard {
		out[k] = v
	}
	return out
}

func (b *base) RemoveHeard(call string) {
	b.mu.Lock()
	delete(b.heard, call)
	b.mu.Unlock()
}

// HeardCount is the number of distinct stations heard.
func (b *base) HeardCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heard)
}

func (b *base) HeardPackets() int64 { return b.heardPkt.Load() }
func (b *base) Duplicates() int64   { return b.dupCnt.Load() }
func (b *base) Sent() int64         { return b.sentCnt.Load() }

// packetReceived is the common inbound path: stamp the source, update the
// heard map and counters, gate through the duplicate filter, fan out.
func (b *base) packetReceived(p *aprs.Packet) {
	p.Source = b
	b.heardPkt.Add(1)

	b.mu.Lock()
	b.heard[p.From] = HeardEntry{When: time.Now(), Path: p.PathString()}
	receivers := append([]Receiver(nil), b.receivers...)
	b.mu.Unlock()

	isDup := false
	if b.dup != nil {
		key := dedupe.Key(p)
		isDup = b.dup.Contains(key)
		b.dup.Add(key)
	}
	if isDup {
		b.dupCnt.Add(1)
	}

	for _, r := range receivers {
		r.ReceivePacket(p, isDup)
	}
}
