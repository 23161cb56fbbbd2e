// Package manager tracks the set of known hubs: it accepts observations
// from an external scanner, decides which devices are LEGO hubs, owns hub
// lifecycle (add, lost-timeout removal), and remembers BLE devices that
// exposed no usable protocol so the line transport can claim them instead.
package manager

import (
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/hublink/hub"
	"github.com/srg/hublink/internal/bytesx"
	"github.com/srg/hublink/internal/ringchan"
)

// Observation is one external scanner sighting of a device.
type Observation struct {
	Identifier       string
	Name             string
	Services         []string
	ManufacturerData []byte
	RSSI             int16
}

// ObservationFromAdvertisement adapts a go-ble advertisement.
func ObservationFromAdvertisement(adv ble.Advertisement) Observation {
	obs := Observation{
		Identifier:       adv.Addr().String(),
		Name:             adv.LocalName(),
		ManufacturerData: adv.ManufacturerData(),
		RSSI:             int16(adv.RSSI()),
	}
	for _, u := range adv.Services() {
		obs.Services = append(obs.Services, strings.ToLower(u.String()))
	}
	return obs
}

// legoServices is the advertised service set that identifies a LEGO hub,
// keyed in normalized form.
var legoServices = map[string]struct{}{
	hub.NormalizeUUID(hub.LWP3ServiceUUID):      {},
	hub.NormalizeUUID(hub.SpikeServiceUUID):     {},
	hub.NormalizeUUID(hub.LegacyHubServiceUUID): {},
}

// legoNameMarkers are name substrings that identify a LEGO hub when neither
// an advertised service nor the manufacturer ID matched.
var legoNameMarkers = []string{"LEGO", "Technic", "SPIKE"}

// IsLEGO reports whether an observation looks like a LEGO hub: a known
// advertised service, the LEGO manufacturer ID, or a telltale name.
func IsLEGO(obs Observation) bool {
	for _, svc := range obs.Services {
		if _, ok := legoServices[hub.NormalizeUUID(svc)]; ok {
			return true
		}
	}
	if id, ok := bytesx.Uint16(obs.ManufacturerData, 0); ok && id == hub.LEGOCompanyID {
		return true
	}
	for _, marker := range legoNameMarkers {
		if strings.Contains(obs.Name, marker) {
			return true
		}
	}
	return false
}

// EventType marks what changed about a tracked hub.
type EventType int

// Manager events
const (
	HubAdded EventType = iota
	HubUpdated
	HubRemoved
)

// Event is one hub lifecycle notification.
type Event struct {
	Type EventType
	Hub  *hub.Hub
}

// HubFactory creates the hub runtime (and its transport) for an accepted
// observation. It keeps the manager transport-agnostic.
type HubFactory func(identifier, name string) *hub.Hub

// Options configures the manager. Zero values take the struct tag defaults.
type Options struct {
	// LostTimeout removes hubs unseen by the scanner for this long and not
	// currently connected.
	LostTimeout time.Duration `default:"10s"`
	// TickInterval is the lost-hub sweep period.
	TickInterval time.Duration `default:"500ms"`
	// EventBufferSize bounds the lifecycle event queue.
	EventBufferSize int `default:"32"`
}

// Manager owns the identifier-to-hub map. One instance per process is
// typical, passed through the API surface rather than shared globally.
type Manager struct {
	logger  *logrus.Logger
	opts    Options
	factory HubFactory

	mu   sync.Mutex
	hubs *orderedmap.OrderedMap[string, *hub.Hub]

	// noProtocol remembers identifiers that connected over BLE but exposed
	// no usable protocol. Keyed lookups happen on the observation path and
	// writes on per-hub event goroutines.
	noProtocol *hashmap.Map[string, struct{}]

	events   *ringchan.Ring[Event]
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a manager. The factory is required; opts and logger may be
// nil.
func New(factory HubFactory, opts *Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &Options{}
	}
	defaults.SetDefaults(opts)
	return &Manager{
		logger:     logger,
		opts:       *opts,
		factory:    factory,
		hubs:       orderedmap.New[string, *hub.Hub](),
		noProtocol: hashmap.New[string, struct{}](),
		events:     ringchan.New[Event](opts.EventBufferSize),
		done:       make(chan struct{}),
	}
}

// Events returns the lifecycle event channel, closed by Stop.
func (m *Manager) Events() <-chan Event { return m.events.C() }

// Start launches the lost-hub sweep.
func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// Stop ends the sweep and closes every tracked hub.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()

	m.mu.Lock()
	hubs := make([]*hub.Hub, 0, m.hubs.Len())
	for pair := m.hubs.Oldest(); pair != nil; pair = pair.Next() {
		hubs = append(hubs, pair.Value)
	}
	m.hubs = orderedmap.New[string, *hub.Hub]()
	m.mu.Unlock()

	for _, h := range hubs {
		h.Close()
	}
	m.events.Close()
}

// Observe feeds one scanner sighting. Non-LEGO devices and devices
// remembered as protocol-less over BLE are ignored.
func (m *Manager) Observe(obs Observation) {
	if !IsLEGO(obs) {
		return
	}
	if _, suppressed := m.noProtocol.Get(obs.Identifier); suppressed {
		return
	}

	m.mu.Lock()
	h, known := m.hubs.Get(obs.Identifier)
	m.mu.Unlock()

	if known {
		h.Touch(obs.RSSI, time.Now())
		h.SetObservedName(obs.Name)
		m.events.Send(Event{Type: HubUpdated, Hub: h})
		return
	}
	m.add(obs.Identifier, obs.Name, obs.RSSI)
}

// AddLineHub registers a hub reachable over the accessory line transport.
// Line hubs bypass the no-usable-protocol suppression: that list exists
// precisely so these devices get claimed here.
func (m *Manager) AddLineHub(identifier, name string) *hub.Hub {
	m.mu.Lock()
	if h, known := m.hubs.Get(identifier); known {
		m.mu.Unlock()
		return h
	}
	m.mu.Unlock()
	return m.add(identifier, name, 0)
}

func (m *Manager) add(identifier, name string, rssi int16) *hub.Hub {
	h := m.factory(identifier, name)
	if h == nil {
		return nil
	}
	h.Touch(rssi, time.Now())
	h.SetObservedName(name)

	m.mu.Lock()
	if existing, known := m.hubs.Get(identifier); known {
		// Lost a race with a concurrent observation.
		m.mu.Unlock()
		h.Close()
		return existing
	}
	m.hubs.Set(identifier, h)
	m.resortLocked()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{"hub": identifier, "name": name}).Info("Tracking new hub")
	m.watch(h)
	m.events.Send(Event{Type: HubAdded, Hub: h})
	return h
}

// resortLocked keeps the ordered map sorted by identifier so Hubs() renders
// a stable list.
func (m *Manager) resortLocked() {
	ids := make([]string, 0, m.hubs.Len())
	for pair := m.hubs.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	for _, id := range ids {
		if v, ok := m.hubs.Get(id); ok {
			m.hubs.Delete(id)
			m.hubs.Set(id, v)
		}
	}
}

// watch follows one hub's events to catch the no-usable-protocol signal.
func (m *Manager) watch(h *hub.Hub) {
	sub := h.Subscribe()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer sub.Close()
		for {
			select {
			case <-m.done:
				return
			case evt, ok := <-sub.C():
				if !ok {
					return
				}
				if evt.Type == hub.EventNoUsableProtocol {
					m.logger.WithField("hub", h.Identifier()).Info("No usable protocol over BLE, suppressing rediscovery")
					m.noProtocol.Set(h.Identifier(), struct{}{})
					_ = h.Disconnect()
				}
			}
		}
	}()
}

// Hubs returns the tracked hubs ordered by identifier.
func (m *Manager) Hubs() []*hub.Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*hub.Hub, 0, m.hubs.Len())
	for pair := m.hubs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Get returns the hub for an identifier.
func (m *Manager) Get(identifier string) (*hub.Hub, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hubs.Get(identifier)
}

// sweep removes hubs the scanner has not seen within the lost timeout and
// that are not currently connected or connecting.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.opts.LostTimeout)

	m.mu.Lock()
	var lost []*hub.Hub
	for pair := m.hubs.Oldest(); pair != nil; pair = pair.Next() {
		h := pair.Value
		switch h.State() {
		case hub.Connected, hub.Connecting:
			continue
		}
		if h.LastSeen().Before(cutoff) {
			lost = append(lost, h)
		}
	}
	for _, h := range lost {
		m.hubs.Delete(h.Identifier())
	}
	m.mu.Unlock()

	for _, h := range lost {
		m.logger.WithField("hub", h.Identifier()).Info("Hub lost, removing")
		h.Close()
		m.events.Send(Event{Type: HubRemoved, Hub: h})
	}
}
