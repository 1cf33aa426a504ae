// Package app drives a ball session: it arms kick detection, fetches the
// capture after every kick and hands it to the analyzer.
package app

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"kick-analytics/analytics"
	"kick-analytics/ball"
	"kick-analytics/codec"
	"kick-analytics/command"
)

var logger = logrus.WithField("component", "app")

// ErrNotReady is returned when the ball has not been discovered yet.
var ErrNotReady = errors.New("ball not ready")

// Options configures a Controller.
type Options struct {
	Samples  int
	DataType codec.DataType
	// AutoArm re-arms kick detection after every capture.
	AutoArm bool
}

// Controller connects session events to the analyzer.
type Controller struct {
	session  *ball.Session
	analyzer *analytics.Analyzer
	opts     Options

	mu      sync.Mutex
	reads   int
	removes []func()
}

// New creates a controller. Call Start to begin handling events.
func New(session *ball.Session, analyzer *analytics.Analyzer, opts Options) *Controller {
	return &Controller{session: session, analyzer: analyzer, opts: opts}
}

// Start registers the session listeners.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removes = append(c.removes,
		c.session.OnDiscovered(c.onDiscovered),
		c.session.OnKick(c.onKick),
		c.session.OnData(c.onData),
	)
}

// Stop removes the session listeners.
func (c *Controller) Stop() {
	c.mu.Lock()
	removes := c.removes
	c.removes = nil
	c.mu.Unlock()
	for _, remove := range removes {
		remove()
	}
}

// Linked forwards link changes reported by the transport. The link counts
// as up once discovery completes.
func (c *Controller) Linked(connected bool) {
	if !connected {
		logger.Info("Ball link lost")
		c.analyzer.SetConnected(false)
	}
}

// Arm asks the ball to wait for a kick.
func (c *Controller) Arm() error {
	if !c.session.Ready() {
		return ErrNotReady
	}
	c.session.Enqueue(ball.ArmKick(logFailure))
	return nil
}

// Capture requests the configured number of samples.
func (c *Controller) Capture() error {
	if !c.session.Ready() {
		return ErrNotReady
	}
	seq, err := ball.RequestSamples(c.opts.Samples, c.opts.DataType, logFailure)
	if err != nil {
		return err
	}
	c.session.Enqueue(seq)
	return nil
}

// RefreshBattery queues a battery read.
func (c *Controller) RefreshBattery() error {
	if !c.session.Ready() {
		return ErrNotReady
	}
	c.mu.Lock()
	c.reads++
	id := c.reads
	c.mu.Unlock()
	c.session.Enqueue(ball.ReadBattery(id, c.onBattery, logFailure))
	return nil
}

func (c *Controller) onDiscovered() {
	c.analyzer.SetConnected(true)
	if err := c.RefreshBattery(); err != nil {
		logger.WithError(err).Warn("Battery not read")
	}
	if c.opts.AutoArm {
		if err := c.Arm(); err != nil {
			logger.WithError(err).Warn("Kick detection not armed")
		}
	}
}

func (c *Controller) onBattery(id int, value []byte, err error) {
	if err != nil || len(value) == 0 {
		logger.WithError(err).WithField("read", id).Warn("Battery read failed")
		return
	}
	c.analyzer.SetBattery(value[0])
}

func (c *Controller) onKick(ev ball.KickEvent) {
	switch ev {
	case ball.KickReady:
		c.analyzer.SetArmed(true)
	case ball.KickKicked:
		c.analyzer.SetArmed(false)
		if err := c.Capture(); err != nil {
			logger.WithError(err).Warn("Capture not requested")
		}
	}
}

func (c *Controller) onData(ev ball.DataEvent) {
	switch ev.Kind {
	case ball.TransmissionEnded:
		c.analyzer.AddDesyncs(ev.Desyncs)
		// Rejected captures are logged by the analyzer.
		_, _ = c.analyzer.ProcessCapture(ev.Capture)
	case ball.TransmissionCancelled:
		c.analyzer.AddDesyncs(ev.Desyncs)
		logger.WithField("requested", ev.Requested).Info("Transmission cancelled")
	default:
		return
	}
	if c.opts.AutoArm {
		if err := c.Arm(); err != nil {
			logger.WithError(err).Debug("Not re-armed")
		}
	}
}

func logFailure(seq *command.Sequence, ev command.Event) {
	if ev.Terminal() && ev != command.FinishedExecution {
		logger.WithFields(logrus.Fields{"sequence": seq.Name(), "event": ev.String()}).Warn("Sequence did not finish")
	}
}
