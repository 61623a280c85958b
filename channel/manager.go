package channel

import (
	"context"
	"sync"
)

// Factory builds a channel variant from configuration.  It returns nil
// when the configuration is unusable; the manager logs and carries on
// without that channel.
type Factory func(d *Deps, id string) Channel

// Manager is the registry of named channels and the lookup table from
// configured type names to constructors.  Instantiation failures are
// never fatal to the whole system.
type Manager struct {
	d *Deps

	mu       sync.Mutex
	classes  map[string]Factory
	channels map[string]Channel
	backups  []string
	ctx      context.Context
}

func NewManager(d *Deps) *Manager {
	m := &Manager{
		d:        d,
		classes:  map[string]Factory{},
		channels: map[string]Channel{},
		ctx:      context.Background(),
	}
	d.Mgr = m
	return m
}

// RegisterDefaults installs the built-in channel types under their
// configuration names.
func (m *Manager) RegisterDefaults() {
	m.AddClass("APRSIS", NewInetChannel)
	m.AddClass("APRSIS-SRV", NewInetSrvChannel)
	m.AddClass("TCPKISS", NewTcpKissChannel)
	m.AddClass("KISS", NewKissTncChannel)
	m.AddClass("TNC2", NewTnc2Channel)
	m.AddClass("NMEA", NewNmeaRadioChannel)
	m.AddClass("ROUTER", NewRouter)
}

func (m *Manager) AddClass(typeName string, f Factory) {
	m.mu.Lock()
	m.classes[typeName] = f
	m.mu.Unlock()
}

// NewInstance builds the channel configured under channel.<id>.type and
// registers it by id.  A failure is logged and yields nil; other
// channels keep operating.
func (m *Manager) NewInstance(id string) Channel {
	typeName := m.d.Cfg.Str("channel."+id+".type", "")
	m.mu.Lock()
	f, ok := m.classes[typeName]
	m.mu.Unlock()
	if !ok {
		m.d.Log.Error("unknown channel type", "channel", id, "type", typeName)
		return nil
	}
	c := f(m.d, id)
	if c == nil {
		m.d.Log.Error("channel instantiation failed", "channel", id, "type", typeName)
		return nil
	}
	m.mu.Lock()
	m.channels[id] = c
	m.mu.Unlock()
	return c
}

// Get resolves a name to a live channel, or nil.
func (m *Manager) Get(name string) Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[name]
}

// Channels returns the registered channels.
func (m *Manager) Channels() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	return out
}

// AddBackup registers a channel kept inactive until some primary fails.
func (m *Manager) AddBackup(name string) {
	m.mu.Lock()
	m.backups = append(m.backups, name)
	m.mu.Unlock()
	if m.Get(name) == nil {
		m.NewInstance(name)
	}
}

// ActivateAll instantiates (when needed) and activates the named
// channels.  The context is retained so failover activations inherit it.
func (m *Manager) ActivateAll(ctx context.Context, ids []string) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	for _, id := range ids {
		c := m.Get(id)
		if c == nil {
			c = m.NewInstance(id)
		}
		if c != nil {
			c.Activate(ctx)
		}
	}
}

// DeactivateAll stops every registered channel.
func (m *Manager) DeactivateAll() {
	for _, c := range m.Channels() {
		c.Deactivate()
	}
}

// activateFailover brings up the failover channel configured for a
// channel that just entered FAILED.  There is no automatic un-failover.
func (m *Manager) activateFailover(failed, name string) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	c := m.Get(name)
	if c == nil {
		c = m.NewInstance(name)
	}
	if c == nil {
		m.d.Log.Error("failover channel unavailable", "failed", failed, "failover", name)
		return
	}
	if c.State() == Off {
		m.d.Log.Warn("activating failover channel", "failed", failed, "failover", name)
		c.Activate(ctx)
	}
}
