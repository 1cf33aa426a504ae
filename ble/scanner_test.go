package ble

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeLink struct {
	connected    atomic.Bool
	checks       atomic.Int32
	scans        atomic.Int32
	stops        atomic.Int32
	mu           sync.Mutex
	onDisconnect func()
}

func (l *fakeLink) IsConnected() bool {
	l.checks.Add(1)
	return l.connected.Load()
}

func (l *fakeLink) StartScanning() error {
	l.scans.Add(1)
	return nil
}

func (l *fakeLink) StopScanning() { l.stops.Add(1) }

func (l *fakeLink) SetDisconnectHandler(h func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onDisconnect = h
}

func (l *fakeLink) disconnect() {
	l.connected.Store(false)
	l.mu.Lock()
	h := l.onDisconnect
	l.mu.Unlock()
	if h != nil {
		h()
	}
}

func TestScannerScansWhileDisconnected(t *testing.T) {
	link := &fakeLink{}
	s := NewScanner(link, ScanConfig{ScanInterval: 10 * time.Millisecond})
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return link.scans.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestScannerIdleWhileConnected(t *testing.T) {
	link := &fakeLink{}
	link.connected.Store(true)
	s := NewScanner(link, ScanConfig{ScanInterval: 5 * time.Millisecond})
	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	assert.Zero(t, link.scans.Load())
	assert.Equal(t, int32(1), link.stops.Load())
	assert.False(t, s.Running())
}

func TestScannerReconnectsOnDisconnect(t *testing.T) {
	link := &fakeLink{}
	link.connected.Store(true)
	s := NewScanner(link, ScanConfig{ScanInterval: time.Hour, AutoReconnect: true})
	s.Start()
	defer s.Stop()

	// Let the loop run its first check while the ball is still connected,
	// so the only scan comes from the disconnect handler.
	assert.Eventually(t, func() bool { return link.checks.Load() >= 1 }, time.Second, time.Millisecond)
	assert.Zero(t, link.scans.Load())

	link.disconnect()
	assert.Eventually(t, func() bool { return link.scans.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), link.scans.Load())
}

func TestWaitForBall(t *testing.T) {
	link := &fakeLink{}
	s := NewScanner(link, DefaultScanConfig())
	assert.False(t, s.WaitForBall(50*time.Millisecond))

	go func() {
		time.Sleep(20 * time.Millisecond)
		link.connected.Store(true)
	}()
	assert.True(t, s.WaitForBall(time.Second))
}
