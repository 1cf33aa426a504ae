// Package ble connects to the ball over Bluetooth LE and serves as the
// transport of a ball.Session.
package ble

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"kick-analytics/ball"
)

var logger = logrus.WithField("component", "ble")

var _ ball.Transport = (*Central)(nil)

// readBufferSize bounds a single attribute read.
const readBufferSize = 64

// resolveTimeout is how long BlueZ gets to resolve the GATT profile.
const resolveTimeout = 15 * time.Second

var (
	// ErrNotConnected is returned for requests while no ball is connected.
	ErrNotConnected = errors.New("ball not connected")
	// ErrUnknownHandle is returned for handles that were not discovered.
	ErrUnknownHandle = errors.New("unknown attribute handle")
)

// ConnectionHandler is called when the ball connects or disconnects.
type ConnectionHandler func(connected bool)

// Central manages the BLE connection to one ball.
type Central struct {
	adapter *bluetooth.Adapter
	name    string
	mu      sync.RWMutex

	sink      ball.Sink
	device    *bluetooth.Device
	address   bluetooth.Address
	chars     map[ball.Handle]bluetooth.DeviceCharacteristic
	connected bool
	scanning  bool

	onConnection ConnectionHandler
	onDisconnect func()
}

// NewCentral creates a Central looking for a ball advertising name.
func NewCentral(name string) *Central {
	return &Central{
		adapter: bluetooth.DefaultAdapter,
		name:    name,
		chars:   make(map[ball.Handle]bluetooth.DeviceCharacteristic),
	}
}

// Bind sets the receiver of discoveries, completions and notifications.
func (c *Central) Bind(sink ball.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// SetConnectionHandler sets the callback for link state changes.
func (c *Central) SetConnectionHandler(handler ConnectionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnection = handler
}

// SetDisconnectHandler sets a callback run after the link is lost.
func (c *Central) SetDisconnectHandler(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = handler
}

// Enable initializes the BLE adapter.
func (c *Central) Enable() error {
	logger.Info("Enabling adapter")
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w", err)
	}
	c.adapter.SetConnectHandler(func(addr bluetooth.Address, connected bool) {
		if !connected {
			c.handleDisconnect(addr)
		}
	})
	logger.Info("Adapter enabled")
	return nil
}

// IsConnected returns true while a ball is connected.
func (c *Central) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Write sends payload to the attribute behind h. The completion is
// delivered to the sink from another goroutine.
func (c *Central) Write(h ball.Handle, payload []byte) error {
	char, sink, err := c.characteristic(h)
	if err != nil {
		return err
	}
	payload = bytes.Clone(payload)
	go func() {
		_, err := char.WriteWithoutResponse(payload)
		sink.WriteComplete(h, err)
	}()
	return nil
}

// Read reads the attribute behind h. The value is delivered to the sink
// from another goroutine.
func (c *Central) Read(h ball.Handle) error {
	char, sink, err := c.characteristic(h)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, readBufferSize)
		n, err := char.Read(buf)
		sink.ReadComplete(h, buf[:n], err)
	}()
	return nil
}

// EnableNotifications subscribes to value changes of the attribute
// behind h and forwards them to the sink in arrival order.
func (c *Central) EnableNotifications(h ball.Handle) error {
	char, sink, err := c.characteristic(h)
	if err != nil {
		return err
	}
	return char.EnableNotifications(func(buf []byte) {
		sink.HandleNotification(h, bytes.Clone(buf))
	})
}

func (c *Central) characteristic(h ball.Handle) (bluetooth.DeviceCharacteristic, ball.Sink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.sink == nil {
		return bluetooth.DeviceCharacteristic{}, nil, ErrNotConnected
	}
	char, ok := c.chars[h]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return char, c.sink, nil
}

// attributeFor maps a discovered characteristic to a ball attribute.
func attributeFor(u bluetooth.UUID) (uuid.UUID, bool) {
	for _, id := range ball.Attributes {
		if bluetoothUUID(id) == u {
			return id, true
		}
	}
	return uuid.Nil, false
}

// bluetoothUUID converts through the canonical string form, which both
// packages agree on; their byte orders differ.
func bluetoothUUID(id uuid.UUID) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(id.String())
	if err != nil {
		return bluetooth.UUID{}
	}
	return u
}

// connectToDevice connects to the ball and registers its attributes with
// the sink.
func (c *Central) connectToDevice(result bluetooth.ScanResult) error {
	log := logger.WithFields(logrus.Fields{"name": result.LocalName(), "address": result.Address.String()})
	log.Info("Connecting")

	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if err := waitForServicesResolved(result.Address, resolveTimeout); err != nil {
		device.Disconnect()
		return fmt.Errorf("GATT not resolved on %s: %w", result.LocalName(), err)
	}

	services, err := device.DiscoverServices(nil)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("service discovery failed on %s: %w", result.LocalName(), err)
	}

	chars := make(map[ball.Handle]bluetooth.DeviceCharacteristic)
	ids := make(map[ball.Handle]uuid.UUID)
	next := ball.Handle(1)
	for _, svc := range services {
		found, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			log.WithError(err).WithField("service", svc.UUID().String()).Warn("Characteristic discovery failed")
			continue
		}
		for _, char := range found {
			id, ok := attributeFor(char.UUID())
			if !ok {
				continue
			}
			chars[next] = char
			ids[next] = id
			next++
		}
	}
	if len(chars) == 0 {
		device.Disconnect()
		return fmt.Errorf("no ball attributes on %s", result.LocalName())
	}

	c.mu.Lock()
	c.device = device
	c.address = result.Address
	c.chars = chars
	c.connected = true
	sink, onConnection := c.sink, c.onConnection
	c.mu.Unlock()

	// Handles are announced after the link is marked up so the session can
	// start issuing requests from its discovery listeners.
	if sink != nil {
		for h := ball.Handle(1); h < next; h++ {
			sink.Discovered(ids[h], h)
		}
	}
	if onConnection != nil {
		onConnection(true)
	}
	log.WithField("attributes", len(chars)).Info("Ball connected")
	return nil
}

func (c *Central) handleDisconnect(addr bluetooth.Address) {
	c.mu.Lock()
	if !c.connected || c.address != addr {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.device = nil
	c.chars = make(map[ball.Handle]bluetooth.DeviceCharacteristic)
	sink, onConnection, onDisconnect := c.sink, c.onConnection, c.onDisconnect
	c.mu.Unlock()

	logger.WithField("address", addr.String()).Warn("Ball disconnected")
	if sink != nil {
		sink.Reset()
	}
	if onConnection != nil {
		onConnection(false)
	}
	if onDisconnect != nil {
		onDisconnect()
	}
}

// StartScanning scans until the ball is found, then connects to it.
func (c *Central) StartScanning() error {
	c.mu.Lock()
	if c.scanning || c.connected {
		c.mu.Unlock()
		return nil
	}
	c.scanning = true
	c.mu.Unlock()

	logger.WithField("name", c.name).Info("Scanning for ball")

	go func() {
		var found *bluetooth.ScanResult
		err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.LocalName() != c.name {
				return
			}
			found = &result
			adapter.StopScan()
		})

		c.mu.Lock()
		c.scanning = false
		c.mu.Unlock()

		if err != nil {
			logger.WithError(err).Error("Scan failed")
			return
		}
		if found == nil {
			return
		}
		if err := c.connectToDevice(*found); err != nil {
			logger.WithError(err).Error("Connect failed")
		}
	}()
	return nil
}

// StopScanning stops the BLE scan.
func (c *Central) StopScanning() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scanning {
		c.adapter.StopScan()
		logger.Info("Scan stopped")
	}
}

// Disconnect drops the link to the ball.
func (c *Central) Disconnect() error {
	c.mu.RLock()
	device, addr := c.device, c.address
	c.mu.RUnlock()
	if device == nil {
		return nil
	}
	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect ball: %w", err)
	}
	c.handleDisconnect(addr)
	return nil
}
