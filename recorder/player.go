package recorder

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"kick-analytics/ball"
	"kick-analytics/codec"
	"kick-analytics/command"
)

var (
	// ErrNotRecorded is the result of reads during playback.
	ErrNotRecorded = errors.New("attribute reads are not recorded")
	// ErrRequestNotStarted is returned when a recorded request could not be
	// replayed.
	ErrRequestNotStarted = errors.New("replayed request did not start")
)

var _ ball.Transport = (*Player)(nil)

// Player stands in for the ball: it acknowledges every request and feeds
// recorded notifications to the session.
type Player struct {
	timeout time.Duration

	mu       sync.Mutex
	sink     ball.Sink
	handles  map[uuid.UUID]ball.Handle
	requests int
}

// NewPlayer creates a player. timeout bounds the wait for a replayed
// request to start.
func NewPlayer(timeout time.Duration) *Player {
	return &Player{timeout: timeout}
}

// Connect announces the ball's attributes to sink.
func (p *Player) Connect(sink ball.Sink) {
	p.mu.Lock()
	p.sink = sink
	p.handles = make(map[uuid.UUID]ball.Handle, len(ball.Attributes))
	for i, id := range ball.Attributes {
		p.handles[id] = ball.Handle(i + 1)
	}
	p.mu.Unlock()

	for i, id := range ball.Attributes {
		sink.Discovered(id, ball.Handle(i+1))
	}
}

func (p *Player) Write(h ball.Handle, _ []byte) error {
	sink := p.currentSink()
	go sink.WriteComplete(h, nil)
	return nil
}

func (p *Player) Read(h ball.Handle) error {
	sink := p.currentSink()
	go sink.ReadComplete(h, nil, ErrNotRecorded)
	return nil
}

func (p *Player) EnableNotifications(ball.Handle) error { return nil }

func (p *Player) currentSink() ball.Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink
}

func (p *Player) handle(id uuid.UUID) (ball.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[id]
	return h, ok
}

// Play feeds every record of r into s, which must be connected to p. It
// returns the number of records played.
func (p *Player) Play(s *ball.Session, r *Reader) (int, error) {
	played := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return played, nil
		}
		if err != nil {
			return played, fmt.Errorf("read record %d: %w", played, err)
		}

		switch rec.Kind {
		case KindRequest:
			if err := p.request(s, rec); err != nil {
				return played, err
			}
		case KindNotification:
			id, err := uuid.Parse(rec.Attribute)
			if err != nil {
				return played, fmt.Errorf("record %d: %w", played, err)
			}
			h, ok := p.handle(id)
			if !ok {
				logger.WithField("attribute", rec.Attribute).Warn("Skipping record of unknown attribute")
				continue
			}
			s.HandleNotification(h, rec.Value)
		default:
			logger.WithField("kind", rec.Kind).Warn("Skipping unknown record")
			continue
		}
		played++
	}
}

// request re-issues a recorded capture request and opens its stream.
func (p *Player) request(s *ball.Session, rec Record) error {
	started := make(chan command.Event, 1)
	seq, err := ball.RequestSamples(rec.Requested, rec.DataType, func(_ *command.Sequence, ev command.Event) {
		if ev == command.BegunExecution || ev == command.FailedToBegin {
			select {
			case started <- ev:
			default:
			}
		}
	})
	if err != nil {
		return fmt.Errorf("replay request: %w", err)
	}
	s.Enqueue(seq)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case ev := <-started:
		if ev != command.BegunExecution {
			return fmt.Errorf("%w: %s", ErrRequestNotStarted, ev)
		}
	case <-timer.C:
		return fmt.Errorf("%w: timeout", ErrRequestNotStarted)
	}

	data, _ := p.handle(ball.DataID)
	s.HandleNotification(data, codec.StartFrame())

	p.mu.Lock()
	p.requests++
	p.mu.Unlock()
	return nil
}

// Requests returns the number of capture requests replayed so far.
func (p *Player) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}
