// Package analytics turns captures from the ball into kick events and keeps
// per-session kick statistics.
package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"kick-analytics/codec"
	"kick-analytics/features"
)

var logger = logrus.WithField("component", "analytics")

const maxRecentKicks = 50

// KickEvent is one analysed kick.
type KickEvent struct {
	Count     int       `json:"count"` // kick number in session
	Force     float64   `json:"force"` // N, rounded to 0.01
	Peak      float64   `json:"peak"`  // g
	Timestamp time.Time `json:"ts"`
	Result    *Result   `json:"result"`
}

// BallState holds the live state of the connected ball.
type BallState struct {
	Connected   bool        `json:"connected"`
	Armed       bool        `json:"armed"`
	Battery     uint8       `json:"battery"`
	Desyncs     int         `json:"desyncs"`
	KickCount   int         `json:"kick_count"`
	MaxForce    float64     `json:"max_force"`
	AvgForce    float64     `json:"avg_force"`
	KicksPerMin float64     `json:"kpm"`
	RecentKicks []KickEvent `json:"recent_kicks"`
	forceSum    float64
}

// SessionState is the full state broadcast to clients.
type SessionState struct {
	Active     bool       `json:"active"`
	ElapsedSec float64    `json:"elapsed_sec"`
	Ball       *BallState `json:"ball"`
	Paused     bool       `json:"paused"` // true while the ball is disconnected
}

// StateHandler is called when session state changes.
type StateHandler func(state *SessionState)

// KickHandler is called for every kick recorded in an active session.
type KickHandler func(kick KickEvent)

// Analyzer analyses captures and accumulates session statistics.
type Analyzer struct {
	mu         sync.RWMutex
	correlator *features.Correlator
	ball       *BallState
	active     bool
	paused     bool
	startedAt  time.Time
	onState    StateHandler
	onKick     KickHandler
}

// NewAnalyzer creates an Analyzer that estimates force with correlator.
func NewAnalyzer(correlator *features.Correlator) *Analyzer {
	return &Analyzer{
		correlator: correlator,
		ball:       newBallState(),
	}
}

func newBallState() *BallState {
	return &BallState{RecentKicks: make([]KickEvent, 0, maxRecentKicks)}
}

// SetStateHandler sets the callback for state changes.
func (a *Analyzer) SetStateHandler(handler StateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onState = handler
}

// SetKickHandler sets the callback for recorded kicks.
func (a *Analyzer) SetKickHandler(handler KickHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onKick = handler
}

// StartSession begins a new training session.
func (a *Analyzer) StartSession() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ball = a.freshBallLocked()
	a.active = true
	a.paused = !a.ball.Connected
	a.startedAt = time.Now()

	a.broadcastLocked()
}

// ResetSession clears all stats and stops the session.
func (a *Analyzer) ResetSession() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ball = a.freshBallLocked()
	a.active = false
	a.paused = false

	a.broadcastLocked()
}

// freshBallLocked keeps the link state and drops the statistics.
func (a *Analyzer) freshBallLocked() *BallState {
	b := newBallState()
	b.Connected = a.ball.Connected
	b.Armed = a.ball.Armed
	b.Battery = a.ball.Battery
	return b
}

// IsActive returns whether a session is currently active.
func (a *Analyzer) IsActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// SetConnected updates the link state. Losing the ball pauses an active
// session and getting it back resumes it.
func (a *Analyzer) SetConnected(connected bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	was := a.ball.Connected
	a.ball.Connected = connected
	if !connected {
		a.ball.Armed = false
	}
	if a.active && was && !connected {
		a.paused = true
	}
	if a.active && a.paused && connected {
		a.paused = false
	}
	a.broadcastLocked()
}

// SetArmed records whether the ball is waiting for a kick.
func (a *Analyzer) SetArmed(armed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ball.Armed = armed
	a.broadcastLocked()
}

// SetBattery records the last battery reading in percent.
func (a *Analyzer) SetBattery(level uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ball.Battery = level
	a.broadcastLocked()
}

// AddDesyncs accumulates type-2 sequence mismatches seen while capturing.
func (a *Analyzer) AddDesyncs(n int) {
	if n == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ball.Desyncs += n
}

// ProcessCapture analyses a sealed capture. The kick counts toward the
// session statistics only while a session is active and not paused.
func (a *Analyzer) ProcessCapture(c *codec.Capture) (*KickEvent, error) {
	result, err := Analyze(c, a.correlator)
	if err != nil {
		logger.WithError(err).WithField("samples", c.Len()).Warn("Capture rejected")
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	event := KickEvent{
		Count:     a.ball.KickCount,
		Force:     math.Round(result.Force*100) / 100,
		Peak:      result.Peak,
		Timestamp: time.Now(),
		Result:    result,
	}
	if !a.active || a.paused {
		return &event, nil
	}

	b := a.ball
	b.KickCount++
	event.Count = b.KickCount
	b.MaxForce = math.Max(b.MaxForce, event.Force)
	b.forceSum += event.Force
	b.AvgForce = b.forceSum / float64(b.KickCount)
	if elapsed := time.Since(a.startedAt).Minutes(); elapsed > 0 {
		b.KicksPerMin = float64(b.KickCount) / elapsed
	}
	b.RecentKicks = append(b.RecentKicks, event)
	if len(b.RecentKicks) > maxRecentKicks {
		b.RecentKicks = b.RecentKicks[1:]
	}

	logger.WithFields(logrus.Fields{
		"count":  event.Count,
		"force":  event.Force,
		"region": result.Region.String(),
	}).Info("Kick recorded")

	if a.onKick != nil {
		go a.onKick(event)
	}
	a.broadcastLocked()
	return &event, nil
}

// BroadcastTick sends periodic state updates (elapsed time).
func (a *Analyzer) BroadcastTick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		a.broadcastLocked()
	}
}

// GetState returns the current session state.
func (a *Analyzer) GetState() *SessionState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buildStateLocked()
}

// buildStateLocked creates a SessionState snapshot.
// Must be called with a.mu held (read or write).
func (a *Analyzer) buildStateLocked() *SessionState {
	var elapsed float64
	if a.active {
		elapsed = time.Since(a.startedAt).Seconds()
	}
	b := *a.ball
	b.RecentKicks = append([]KickEvent(nil), a.ball.RecentKicks...)
	return &SessionState{
		Active:     a.active,
		ElapsedSec: elapsed,
		Ball:       &b,
		Paused:     a.paused,
	}
}

// broadcastLocked sends state to the handler.
// Must be called with a.mu held.
func (a *Analyzer) broadcastLocked() {
	if a.onState != nil {
		state := a.buildStateLocked()
		go a.onState(state)
	}
}
