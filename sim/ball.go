// Package sim is an in-process ball: it implements the session transport and
// answers requests the way the device does.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kick-analytics/ball"
	"kick-analytics/codec"
)

var logger = logrus.WithField("component", "sim")

var (
	ErrNotConnected = errors.New("simulated ball not connected")
	ErrNotReadable  = errors.New("attribute not readable")
	ErrUnknown      = errors.New("unknown attribute handle")
)

var _ ball.Transport = (*Ball)(nil)

// Options shape the simulated device.
type Options struct {
	// Latency delays every completion and notification.
	Latency time.Duration
	// KickDelay is the time between ready and kicked after arming.
	KickDelay time.Duration
	// Peak is the strongest axis acceleration of a kick in g.
	Peak    float64
	Battery uint8
	Seed    int64
}

// DefaultOptions returns a responsive ball with a hard kick.
func DefaultOptions() Options {
	return Options{
		Latency:   time.Millisecond,
		KickDelay: 1500 * time.Millisecond,
		Peak:      9,
		Battery:   76,
		Seed:      1,
	}
}

// Ball is a simulated kick-ball.
type Ball struct {
	opts Options
	q    *queue

	mu        sync.Mutex
	sink      ball.Sink
	attrs     map[ball.Handle]uuid.UUID
	handles   map[uuid.UUID]ball.Handle
	notifying map[ball.Handle]bool
	connected bool
	gen       int // bumped to cancel a running transmission
	rng       *rand.Rand
	last      []codec.Sample
}

// New creates a disconnected simulated ball.
func New(opts Options) *Ball {
	return &Ball{
		opts: opts,
		q:    newQueue(opts.Latency),
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Connect links the ball to sink and announces its attributes.
func (b *Ball) Connect(sink ball.Sink) {
	b.mu.Lock()
	b.sink = sink
	b.attrs = make(map[ball.Handle]uuid.UUID)
	b.handles = make(map[uuid.UUID]ball.Handle)
	b.notifying = make(map[ball.Handle]bool)
	for i, id := range ball.Attributes {
		h := ball.Handle(i + 1)
		b.attrs[h] = id
		b.handles[id] = h
	}
	b.connected = true
	b.mu.Unlock()

	logger.Info("Simulated ball connected")
	for i, id := range ball.Attributes {
		sink.Discovered(id, ball.Handle(i+1))
	}
}

// Disconnect drops the link. The sink is reset as on a real link loss.
func (b *Ball) Disconnect() {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = false
	b.gen++
	sink := b.sink
	b.mu.Unlock()

	logger.Info("Simulated ball disconnected")
	sink.Reset()
}

// IsConnected reports whether the ball is linked.
func (b *Ball) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Close stops delivering events.
func (b *Ball) Close() { b.q.close() }

// Last returns the samples of the most recent transmission.
func (b *Ball) Last() []codec.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]codec.Sample(nil), b.last...)
}

func (b *Ball) lookup(h ball.Handle) (uuid.UUID, ball.Sink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return uuid.Nil, nil, ErrNotConnected
	}
	id, ok := b.attrs[h]
	if !ok {
		return uuid.Nil, nil, fmt.Errorf("%w: %d", ErrUnknown, h)
	}
	return id, b.sink, nil
}

// Write accepts a write and acts on it after completing it.
func (b *Ball) Write(h ball.Handle, payload []byte) error {
	id, sink, err := b.lookup(h)
	if err != nil {
		return err
	}
	payload = bytes.Clone(payload)
	b.q.push(func() { sink.WriteComplete(h, nil) })

	switch id {
	case ball.CommandID:
		b.command(payload)
	case ball.KickID:
		if len(payload) == 1 && payload[0] == 1 {
			b.arm()
		}
	}
	return nil
}

// Read answers the battery attribute with the configured level.
func (b *Ball) Read(h ball.Handle) error {
	id, sink, err := b.lookup(h)
	if err != nil {
		return err
	}
	if id != ball.BatteryID {
		b.q.push(func() { sink.ReadComplete(h, nil, ErrNotReadable) })
		return nil
	}
	level := b.opts.Battery
	b.q.push(func() { sink.ReadComplete(h, []byte{level}, nil) })
	return nil
}

// EnableNotifications starts delivering value changes of h.
func (b *Ball) EnableNotifications(h ball.Handle) error {
	if _, _, err := b.lookup(h); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifying[h] = true
	return nil
}

func (b *Ball) command(payload []byte) {
	if n, dataType, ok := ball.ParseRequest(payload); ok {
		b.transmit(n, dataType)
		return
	}
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case ball.OpEndTransmission:
		b.mu.Lock()
		b.gen++
		b.mu.Unlock()
		logger.Debug("Transmission cancelled")
	case ball.OpDisconnect:
		b.q.push(b.Disconnect)
	}
}

// transmit streams a framed capture of a fresh kick. A later end
// transmission or disconnect drops the packets not yet delivered.
func (b *Ball) transmit(n int, dataType codec.DataType) {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	samples := Kick(n, b.opts.Peak, b.rng)
	b.last = samples
	data := b.handles[ball.DataID]
	b.mu.Unlock()

	logger.WithFields(logrus.Fields{"samples": n, "type": dataType}).Debug("Transmitting")
	b.notify(data, codec.StartFrame(), gen)
	for _, pkt := range codec.NewEncoder(dataType).Encode(samples) {
		b.notify(data, pkt, gen)
	}
	b.notify(data, codec.EndFrame(), gen)
}

func (b *Ball) arm() {
	b.mu.Lock()
	kick := b.handles[ball.KickID]
	gen := b.gen
	b.mu.Unlock()

	b.notify(kick, []byte{1}, -1)
	time.AfterFunc(b.opts.KickDelay, func() {
		b.mu.Lock()
		cancelled := !b.connected || b.gen != gen
		b.mu.Unlock()
		if !cancelled {
			b.notify(kick, []byte{0}, -1)
		}
	})
}

// notify queues a notification. A gen of -1 is not tied to a transmission.
func (b *Ball) notify(h ball.Handle, value []byte, gen int) {
	b.q.push(func() {
		b.mu.Lock()
		ok := b.connected && b.notifying[h] && (gen < 0 || gen == b.gen)
		sink := b.sink
		b.mu.Unlock()
		if ok {
			sink.HandleNotification(h, value)
		}
	})
}
