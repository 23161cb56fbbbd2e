package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/hublink/hub"
	"github.com/srg/hublink/manager"
	"github.com/srg/hublink/transport/gatt"
	"github.com/srg/hublink/transport/lineio"
)

// newBLEHub wires a GATT transport to a fresh hub runtime.
func newBLEHub(address string, cfg *Config, logger *logrus.Logger) *hub.Hub {
	var h *hub.Hub
	tr := gatt.New(address, func(evt hub.TransportEvent) {
		h.OnTransportEvent(evt)
	}, &gatt.Options{DialTimeout: cfg.BLE.DialTimeout}, logger)
	h = hub.New(address, tr, nil, logger)
	return h
}

// newLineHub wires a serial accessory stream to a fresh hub runtime.
func newLineHub(path string, cfg *Config, logger *logrus.Logger) *hub.Hub {
	var h *hub.Hub
	tr := lineio.New(path, func(evt hub.TransportEvent) {
		h.OnTransportEvent(evt)
	}, &lineio.Options{BaudRate: cfg.Line.Baud}, logger)
	h = hub.New(path, tr, nil, logger)
	return h
}

// newManager builds a manager whose factory creates BLE-backed hubs.
func newManager(cfg *Config, logger *logrus.Logger) *manager.Manager {
	return manager.New(func(identifier, _ string) *hub.Hub {
		return newBLEHub(identifier, cfg, logger)
	}, nil, logger)
}

// connectTarget opens the hub named by the flags: --line selects the serial
// accessory path, otherwise target is a BLE address. Blocks until the hub
// reports connected or the context ends.
func connectTarget(ctx context.Context, target, linePath string, cfg *Config, logger *logrus.Logger) (*hub.Hub, error) {
	var h *hub.Hub
	if linePath != "" {
		h = newLineHub(linePath, cfg, logger)
	} else {
		if target == "" {
			return nil, fmt.Errorf("a hub address is required (or use --line)")
		}
		h = newBLEHub(target, cfg, logger)
	}

	sub := h.Subscribe()
	defer sub.Close()

	if err := h.Connect(); err != nil {
		h.Close()
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			h.Close()
			return nil, ctx.Err()
		case evt, ok := <-sub.C():
			if !ok {
				h.Close()
				return nil, fmt.Errorf("hub closed while connecting")
			}
			switch {
			case evt.Type == hub.EventState && evt.State == hub.Connected:
				return h, nil
			case evt.Type == hub.EventState && evt.State == hub.Disconnected:
				h.Close()
				return nil, fmt.Errorf("hub disconnected while connecting")
			case evt.Type == hub.EventNoUsableProtocol:
				h.Close()
				return nil, fmt.Errorf("no usable protocol; try --line with the accessory path")
			}
		case <-time.After(30 * time.Second):
			h.Close()
			return nil, fmt.Errorf("timed out waiting for connection")
		}
	}
}
