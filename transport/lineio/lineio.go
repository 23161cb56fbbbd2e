// Package lineio adapts a line-oriented accessory stream (a serial port) to
// the hub transport contract. Inbound bytes split on carriage return or
// newline into LineReceived events; outbound writes queue through a ring
// buffer drained by a writer goroutine, so callers never block on a slow
// port and writes stay FIFO.
package lineio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"go.bug.st/serial"

	"github.com/srg/hublink/hub"
)

// LineTag is the characteristic tag the adapter reports for its single
// line-oriented channel.
const LineTag = "line"

const (
	defaultBaudRate    = 115200
	defaultWriteBuffer = 4096
	maxLineLength      = 8192
	writeRetryDelay    = 5 * time.Millisecond
)

// Sink receives the upward transport events.
type Sink func(hub.TransportEvent)

// Options configures the adapter.
type Options struct {
	BaudRate int
	// WriteBufferSize is the outbound ring buffer capacity in bytes.
	WriteBufferSize int
}

// Transport is a line transport bound to one serial device path.
type Transport struct {
	logger *logrus.Logger
	path   string
	sink   Sink
	opts   Options

	mu       sync.Mutex
	port     serial.Port
	writeBuf *ringbuffer.RingBuffer
	notify   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	closed   uint32
}

// New creates the adapter for a serial device path such as /dev/ttyACM0.
func New(path string, sink Sink, opts *Options, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = defaultBaudRate
	}
	if opts.WriteBufferSize == 0 {
		opts.WriteBufferSize = defaultWriteBuffer
	}
	return &Transport{
		logger: logger,
		path:   path,
		sink:   sink,
		opts:   *opts,
	}
}

// Open opens the serial port and starts the read and write loops. The
// accessory stream has no service discovery; a synthetic catalog with one
// line-hinted characteristic is reported so the runtime binds the JSON
// protocol.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return fmt.Errorf("transport %s is already open", t.path)
	}

	port, err := serial.Open(t.path, &serial.Mode{BaudRate: t.opts.BaudRate})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	t.port = port
	t.writeBuf = ringbuffer.New(t.opts.WriteBufferSize)
	t.notify = make(chan struct{}, 1)
	t.done = make(chan struct{})
	atomic.StoreUint32(&t.closed, 0)

	t.wg.Add(2)
	go t.readLoop(port)
	go t.writeLoop(port)

	t.sink(hub.ConnectedEvent{})
	t.sink(hub.ServicesDiscoveredEvent{Services: []hub.ServiceInfo{{
		UUID: LineTag,
		Characteristics: []hub.CharacteristicTag{
			{ID: LineTag, Write: true, Notify: true, Line: true},
		},
	}}})
	return nil
}

// Close stops the loops and closes the port. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	port := t.port
	done := t.done
	t.port = nil
	t.mu.Unlock()

	if port == nil || !atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		return nil
	}
	close(done)
	err := port.Close()
	t.wg.Wait()
	t.sink(hub.DisconnectedEvent{})
	return err
}

// readLoop splits the inbound byte stream into lines. Lines longer than
// maxLineLength are dropped to bound memory on a babbling device.
func (t *Transport) readLoop(port serial.Port) {
	defer t.wg.Done()

	buf := make([]byte, 1024)
	var line []byte
	overflow := false
	for {
		n, err := port.Read(buf)
		if err != nil {
			if atomic.LoadUint32(&t.closed) == 0 {
				t.logger.WithField("path", t.path).WithError(err).Warn("Serial read failed")
				t.failed(err)
			}
			return
		}
		for _, b := range buf[:n] {
			if b == '\r' || b == '\n' {
				if len(line) > 0 && !overflow {
					out := make([]byte, len(line))
					copy(out, line)
					t.sink(hub.LineReceivedEvent{Data: out})
				}
				line = line[:0]
				overflow = false
				continue
			}
			if len(line) < maxLineLength {
				line = append(line, b)
			} else {
				overflow = true
			}
		}
	}
}

// writeLoop drains the ring buffer into the port, retrying short writes so
// queued lines leave in FIFO order.
func (t *Transport) writeLoop(port serial.Port) {
	defer t.wg.Done()

	buf := make([]byte, 1024)
	for {
		select {
		case <-t.done:
			return
		case <-t.notify:
		}
		for {
			n, err := t.writeBuf.TryRead(buf)
			if n == 0 || errors.Is(err, ringbuffer.ErrIsEmpty) {
				break
			}
			if err != nil {
				t.logger.WithField("path", t.path).WithError(err).Warn("Write queue read failed")
				break
			}
			pending := buf[:n]
			for len(pending) > 0 {
				written, werr := port.Write(pending)
				if werr != nil {
					if atomic.LoadUint32(&t.closed) == 0 {
						t.logger.WithField("path", t.path).WithError(werr).Warn("Serial write failed")
						t.failed(werr)
					}
					return
				}
				pending = pending[written:]
				if len(pending) > 0 {
					// Port buffer full, give it a moment to drain.
					time.Sleep(writeRetryDelay)
				}
			}
		}
	}
}

func (t *Transport) failed(err error) {
	if atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		t.mu.Lock()
		port := t.port
		done := t.done
		t.port = nil
		t.mu.Unlock()
		if done != nil {
			close(done)
		}
		if port != nil {
			_ = port.Close()
		}
		t.sink(hub.DisconnectedEvent{Reason: err})
	}
}

// Write queues bytes for the writer goroutine. The tag and mode are
// ignored; the stream has a single channel.
func (t *Transport) Write(data []byte, _ string, _ hub.WriteMode) error {
	t.mu.Lock()
	wb := t.writeBuf
	notify := t.notify
	open := t.port != nil
	t.mu.Unlock()
	if !open {
		return fmt.Errorf("transport %s is not open", t.path)
	}

	written, err := wb.Write(data)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		return err
	}
	if written < len(data) {
		t.logger.WithFields(logrus.Fields{
			"path":    t.path,
			"dropped": len(data) - written,
		}).Warn("Write queue overflow, dropping bytes")
	}
	select {
	case notify <- struct{}{}:
	default:
	}
	return nil
}

// Subscribe is a no-op: the stream always notifies.
func (t *Transport) Subscribe(string) error { return nil }

// ReadRSSI is unsupported on a wired stream.
func (t *Transport) ReadRSSI() error { return nil }
