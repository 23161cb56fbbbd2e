// Package gatt adapts a go-ble GATT connection to the hub transport
// contract. It dials the peripheral, maps the discovered profile to
// characteristic tags with role hints, forwards notifications as frames and
// executes writes and RSSI reads.
package gatt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/hublink/hub"
)

// DeviceFactory creates the platform ble.Device. Overridable for tests.
var DeviceFactory = newDevice

var (
	setupOnce sync.Once
	setupErr  error
)

// SetupDefaultDevice initializes the process-wide BLE device exactly once.
// Scanning front ends share it with the dialing path.
func SetupDefaultDevice() error {
	setupOnce.Do(func() {
		dev, err := DeviceFactory()
		if err != nil {
			setupErr = fmt.Errorf("failed to create BLE device: %w", err)
			return
		}
		ble.SetDefaultDevice(dev)
	})
	return setupErr
}

// Sink receives the upward transport events, normally Hub.OnTransportEvent.
type Sink func(hub.TransportEvent)

// Options configures the adapter.
type Options struct {
	// DialTimeout bounds the BLE dial. The hub runtime keeps its own
	// connect deadline on top.
	DialTimeout time.Duration
}

// Transport is a BLE GATT transport for one peripheral address.
type Transport struct {
	logger  *logrus.Logger
	address string
	sink    Sink
	opts    Options

	mu     sync.Mutex
	client ble.Client
	chars  map[string]*ble.Characteristic
	cancel context.CancelFunc
}

// New creates the adapter. The sink is required.
func New(address string, sink Sink, opts *Options, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}
	return &Transport{
		logger:  logger,
		address: address,
		sink:    sink,
		opts:    *opts,
		chars:   make(map[string]*ble.Characteristic),
	}
}

// Open dials the peripheral and discovers its profile in the background.
// Completion is reported through the sink.
func (t *Transport) Open() error {
	if err := SetupDefaultDevice(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	if t.client != nil {
		t.mu.Unlock()
		cancel()
		return fmt.Errorf("transport to %s is already open", t.address)
	}
	t.cancel = cancel
	t.mu.Unlock()

	go t.dial(ctx)
	return nil
}

func (t *Transport) dial(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	defer cancel()

	t.logger.WithField("address", t.address).Debug("Dialing BLE device...")
	client, err := ble.Dial(dialCtx, ble.NewAddr(t.address))
	if err != nil {
		t.sink(hub.DisconnectedEvent{Reason: fmt.Errorf("failed to connect to %s: %w", t.address, err)})
		return
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	t.sink(hub.ConnectedEvent{})

	t.logger.WithField("address", t.address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		t.sink(hub.DisconnectedEvent{Reason: fmt.Errorf("service discovery failed: %w", err)})
		return
	}

	services := make([]hub.ServiceInfo, 0, len(profile.Services))
	t.mu.Lock()
	for _, svc := range profile.Services {
		info := hub.ServiceInfo{UUID: svc.UUID.String()}
		for _, char := range svc.Characteristics {
			tag := hub.CharacteristicTag{
				ID:     char.UUID.String(),
				Write:  char.Property&(ble.CharWrite|ble.CharWriteNR) != 0,
				Notify: char.Property&(ble.CharNotify|ble.CharIndicate) != 0,
			}
			t.chars[hub.NormalizeUUID(tag.ID)] = char
			info.Characteristics = append(info.Characteristics, tag)
		}
		services = append(services, info)
	}
	t.mu.Unlock()
	t.sink(hub.ServicesDiscoveredEvent{Services: services})

	// go-ble surfaces link loss through the client's Disconnected channel.
	select {
	case <-client.Disconnected():
		t.teardown()
		t.sink(hub.DisconnectedEvent{})
	case <-ctx.Done():
		_ = client.CancelConnection()
		t.teardown()
		t.sink(hub.DisconnectedEvent{})
	}
}

func (t *Transport) teardown() {
	t.mu.Lock()
	t.client = nil
	t.chars = make(map[string]*ble.Characteristic)
	t.mu.Unlock()
}

// Close cancels the connection. The disconnect event follows from the
// monitor goroutine.
func (t *Transport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (t *Transport) lookup(tag string) (ble.Client, *ble.Characteristic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, nil, fmt.Errorf("transport to %s is not connected", t.address)
	}
	char, ok := t.chars[hub.NormalizeUUID(tag)]
	if !ok {
		return nil, nil, fmt.Errorf("characteristic %q not found", tag)
	}
	return t.client, char, nil
}

// Write sends bytes to a characteristic.
func (t *Transport) Write(data []byte, tag string, mode hub.WriteMode) error {
	client, char, err := t.lookup(tag)
	if err != nil {
		return err
	}
	return client.WriteCharacteristic(char, data, mode == hub.WriteWithoutResponse)
}

// Subscribe enables notifications on a characteristic and forwards each
// value as a frame event.
func (t *Transport) Subscribe(tag string) error {
	client, char, err := t.lookup(tag)
	if err != nil {
		return err
	}
	id := char.UUID.String()
	return client.Subscribe(char, false, func(data []byte) {
		buf := make([]byte, len(data))
		copy(buf, data)
		t.sink(hub.FrameReceivedEvent{Data: buf, Tag: id})
	})
}

// ReadRSSI reports the link RSSI through the sink.
func (t *Transport) ReadRSSI() error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return fmt.Errorf("transport to %s is not connected", t.address)
	}
	t.sink(hub.RSSIEvent{RSSI: int16(client.ReadRSSI())})
	return nil
}
