package ble

import (
	"sync"
	"time"
)

// ScanConfig holds configuration for device scanning.
type ScanConfig struct {
	// ScanInterval is how often to check for a lost ball (default 2s)
	ScanInterval time.Duration
	// AutoReconnect starts a scan as soon as the ball disconnects
	AutoReconnect bool
}

// DefaultScanConfig returns sensible defaults for scanning.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		ScanInterval:  2 * time.Second,
		AutoReconnect: true,
	}
}

// Link is the part of Central the scanner drives.
type Link interface {
	IsConnected() bool
	StartScanning() error
	StopScanning()
	SetDisconnectHandler(handler func())
}

// Scanner keeps scanning until the ball is connected and reconnects after
// it drops.
type Scanner struct {
	link   Link
	config ScanConfig

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewScanner creates a new Scanner with the given link and config.
func NewScanner(link Link, config ScanConfig) *Scanner {
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultScanConfig().ScanInterval
	}
	return &Scanner{
		link:   link,
		config: config,
		stop:   make(chan struct{}),
	}
}

// Start begins the scanning loop.
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	if s.config.AutoReconnect {
		s.link.SetDisconnectHandler(s.onDisconnect)
	}
	go s.scanLoop(s.stop)
}

// onDisconnect triggers a scan immediately instead of waiting for the next
// interval.
func (s *Scanner) onDisconnect() {
	if !s.Running() {
		return
	}
	logger.Info("Ball lost, scanning to reconnect")
	go s.checkAndScan()
}

// Stop halts the scanning loop.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.link.StopScanning()
}

// Running reports whether the loop is active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scanner) scanLoop(stop <-chan struct{}) {
	logger.WithField("interval", s.config.ScanInterval).Info("Scanner started")

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	s.checkAndScan()
	for {
		select {
		case <-stop:
			logger.Info("Scanner stopped")
			return
		case <-ticker.C:
			s.checkAndScan()
		}
	}
}

func (s *Scanner) checkAndScan() {
	if s.link.IsConnected() {
		return
	}
	if err := s.link.StartScanning(); err != nil {
		logger.WithError(err).Warn("Failed to start scan")
	}
}

// WaitForBall blocks until the ball is connected or the timeout expires.
// A zero timeout waits forever.
func (s *Scanner) WaitForBall(timeout time.Duration) bool {
	start := time.Now()
	for {
		if s.link.IsConnected() {
			return true
		}
		if timeout > 0 && time.Since(start) > timeout {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
