package ball

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kick-analytics/codec"
	"kick-analytics/command"
)

var logger = logrus.WithField("component", "ball")

var (
	ErrUnknownAttribute = errors.New("attribute not discovered")
	ErrNotifyFailed     = errors.New("enable notifications failed")
	ErrRequestInFlight  = errors.New("transport request already in flight")
)

// Transport is the attribute link to the ball. It accepts one outstanding
// write or read at a time. Write and Read only start the request: the result
// must be delivered later, from another goroutine, through
// Session.WriteComplete or Session.ReadComplete. Notifications are delivered
// in arrival order through Session.HandleNotification.
type Transport interface {
	Write(h Handle, payload []byte) error
	Read(h Handle) error
	EnableNotifications(h Handle) error
}

// Sink receives what a transport produces: discovered attributes, request
// completions and notifications. *Session implements it.
type Sink interface {
	Discovered(id uuid.UUID, h Handle)
	WriteComplete(h Handle, err error)
	ReadComplete(h Handle, value []byte, err error)
	HandleNotification(h Handle, value []byte)
	Reset()
}

var _ Sink = (*Session)(nil)

// Session is the state of one connection to the ball: the attribute
// registry, the command sequence queue and the running transmission.
// All mutations happen under one mutex; listeners run outside of it, in the
// order the events were produced.
type Session struct {
	mu        sync.Mutex
	transport Transport
	reg       *registry
	notifying map[Handle]bool

	active         *command.Sequence
	queue          []*command.Sequence
	inFlight       bool
	inFlightHandle Handle
	orphaned       bool // the in-flight request belongs to a flushed sequence

	tx      Transmission
	capture *codec.Capture
	decoder codec.Decoder
	framer  codec.Framer

	outbox      []func()
	dispatching bool

	kicks      listeners[KickEvent]
	data       listeners[DataEvent]
	discovered listeners[struct{}]
	raw        listeners[Notification]
	attrMu     sync.Mutex
	attrs      map[uuid.UUID]*listeners[[]byte]
}

// NewSession creates a session talking through t.
func NewSession(t Transport) *Session {
	return &Session{
		transport: t,
		reg:       newRegistry(len(Attributes)),
		notifying: make(map[Handle]bool),
		attrs:     make(map[uuid.UUID]*listeners[[]byte]),
	}
}

// OnKick registers fn for kick events and returns its removal function.
func (s *Session) OnKick(fn func(KickEvent)) func() { return s.kicks.add(fn) }

// OnData registers fn for transmission events.
func (s *Session) OnData(fn func(DataEvent)) func() { return s.data.add(fn) }

// OnDiscovered registers fn, called once every expected attribute is known.
func (s *Session) OnDiscovered(fn func()) func() {
	return s.discovered.add(func(struct{}) { fn() })
}

// OnNotification registers fn for every raw attribute value change.
func (s *Session) OnNotification(fn func(Notification)) func() { return s.raw.add(fn) }

// OnAttribute registers fn for value changes of one attribute.
func (s *Session) OnAttribute(id uuid.UUID, fn func([]byte)) func() {
	s.attrMu.Lock()
	ls, ok := s.attrs[id]
	if !ok {
		ls = &listeners[[]byte]{}
		s.attrs[id] = ls
	}
	s.attrMu.Unlock()
	return ls.add(fn)
}

// Discovered records the transport handle of an attribute. Each attribute
// is inserted once; the registry is frozen when all are known.
func (s *Session) Discovered(id uuid.UUID, h Handle) {
	s.mu.Lock()
	if !IsAttribute(id) {
		logger.WithField("attribute", id).Debug("ignoring unknown attribute")
		s.mu.Unlock()
		return
	}
	inserted, completed := s.reg.add(id, h)
	if inserted {
		logger.WithFields(logrus.Fields{"attribute": AttributeName(id), "handle": h}).Debug("attribute discovered")
	}
	if completed {
		logger.Info("all attributes discovered")
		for _, id := range streamed {
			if err := s.subscribeLocked(id); err != nil {
				logger.WithError(err).Warn("subscription deferred to first use")
			}
		}
		s.post(func() { s.discovered.deliver(struct{}{}) })
	}
	s.unlockAndDispatch()
}

// Ready reports whether every expected attribute has been discovered.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.complete
}

// Transmission returns the state of the running data transfer.
func (s *Session) Transmission() Transmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx
}

// Pending returns the number of sequences queued or executing.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if s.active != nil {
		n++
	}
	return n
}

// Enqueue appends sequences to the queue and starts the head if the link is
// idle. Heads that fail to start are discarded with FailedToBegin until one
// starts or the queue is empty.
func (s *Session) Enqueue(seqs ...*command.Sequence) {
	s.mu.Lock()
	s.queue = append(s.queue, seqs...)
	s.drainLocked()
	s.unlockAndDispatch()
}

// Flush discards the active and every queued sequence with EndedEarly.
func (s *Session) Flush() {
	s.mu.Lock()
	s.flushLocked()
	s.unlockAndDispatch()
}

// Reset returns the session to its disconnected state: queue flushed,
// registry and notification memo cleared, transmission cancelled.
func (s *Session) Reset() {
	s.mu.Lock()
	s.flushLocked()
	s.inFlight = false
	s.orphaned = false
	s.reg.reset()
	s.notifying = make(map[Handle]bool)
	s.cancelTransmissionLocked()
	s.framer.Reset()
	logger.Info("session reset")
	s.unlockAndDispatch()
}

// WriteComplete delivers the result of a write started through the transport.
func (s *Session) WriteComplete(h Handle, err error) { s.complete(h, nil, err) }

// ReadComplete delivers the result of a read started through the transport.
func (s *Session) ReadComplete(h Handle, value []byte, err error) {
	s.complete(h, bytes.Clone(value), err)
}

func (s *Session) complete(h Handle, value []byte, err error) {
	s.mu.Lock()
	if !s.inFlight || s.inFlightHandle != h {
		logger.WithField("handle", h).Warn("unexpected completion")
		s.unlockAndDispatch()
		return
	}
	s.inFlight = false

	if s.orphaned {
		s.orphaned = false
		s.drainLocked()
		s.unlockAndDispatch()
		return
	}
	seq := s.active
	if seq == nil {
		s.drainLocked()
		s.unlockAndDispatch()
		return
	}
	if err != nil {
		logger.WithError(err).WithField("sequence", seq.Name()).Error("command failed")
	}

	wasExecuting := seq.Executing()
	cmd, _ := seq.Pop()
	s.post(func() { cmd.Complete(value, err) })

	switch {
	case seq.Empty():
		s.active = nil
		if wasExecuting {
			s.postSequence(seq, command.FinishedExecution)
		} else {
			s.postSequence(seq, command.EndedEarly)
		}
		s.drainLocked()
	default:
		if xerr := seq.ExecuteTop(executor{s}); xerr != nil {
			logger.WithError(xerr).Error("sequence aborted")
			s.active = nil
			s.postSequence(seq, command.EndedEarly)
			s.drainLocked()
		}
	}
	s.unlockAndDispatch()
}

// HandleNotification routes an attribute value change to its listeners.
func (s *Session) HandleNotification(h Handle, value []byte) {
	value = bytes.Clone(value)
	s.mu.Lock()
	id, ok := s.reg.attribute(h)
	if !ok {
		logger.WithField("handle", h).Debug("notification from unknown handle")
		s.unlockAndDispatch()
		return
	}
	s.post(func() { s.raw.deliver(Notification{Attribute: id, Value: value}) })

	switch id {
	case KickID:
		s.handleKickLocked(value)
	case DataID:
		s.handleDataLocked(value)
	}

	s.attrMu.Lock()
	ls := s.attrs[id]
	s.attrMu.Unlock()
	if ls != nil {
		s.post(func() { ls.deliver(value) })
	}
	s.unlockAndDispatch()
}

func (s *Session) handleKickLocked(value []byte) {
	if len(value) == 0 {
		logger.Warn("empty kick notification")
		return
	}
	var ev KickEvent
	switch value[0] {
	case 0:
		ev = KickKicked
	case 1:
		ev = KickReady
	default:
		logger.WithField("value", value[0]).Warn("unknown kick state")
		return
	}
	logger.WithField("state", ev).Info("kick")
	s.post(func() { s.kicks.deliver(ev) })
}

func (s *Session) handleDataLocked(value []byte) {
	frame := s.framer.Classify(value)
	if !s.tx.InProgress {
		logger.WithField("frame", frame).Debug("data outside of a transmission")
		return
	}
	tx := s.tx
	switch frame {
	case codec.FrameStart:
		logger.WithFields(logrus.Fields{"type": tx.DataType, "requested": tx.Requested}).Info("transmission begun")
		s.postData(DataEvent{Kind: TransmissionBegun, DataType: tx.DataType, Requested: tx.Requested})
	case codec.FrameEnd:
		capture := s.capture
		capture.Seal()
		var desyncs int
		if d, ok := s.decoder.(interface{ Desyncs() int }); ok {
			desyncs = d.Desyncs()
		}
		s.tx, s.capture, s.decoder = Transmission{}, nil, nil
		logger.WithFields(logrus.Fields{"samples": capture.Len(), "desyncs": desyncs}).Info("transmission ended")
		s.postData(DataEvent{Kind: TransmissionEnded, DataType: tx.DataType, Requested: tx.Requested, Capture: capture, Desyncs: desyncs})
	default:
		samples, err := s.decoder.AddPacket(value)
		if err != nil {
			logger.WithError(err).Error("dropping data line")
			return
		}
		if len(samples) == 0 {
			return
		}
		if err := s.capture.Append(samples...); err != nil {
			logger.WithError(err).Error("dropping samples")
			return
		}
		s.postData(DataEvent{Kind: SamplesRead, DataType: tx.DataType, Requested: tx.Requested, Samples: samples})
	}
}

func (s *Session) beginTransmissionLocked(dataType codec.DataType, requested int) {
	s.cancelTransmissionLocked()
	dec, err := codec.NewDecoder(dataType, requested)
	if err != nil {
		logger.WithError(err).Error("cannot begin transmission")
		return
	}
	s.decoder = dec
	s.capture = codec.NewCapture(dataType, requested)
	s.tx = Transmission{InProgress: true, DataType: dataType, Requested: requested}
}

func (s *Session) cancelTransmissionLocked() {
	if !s.tx.InProgress {
		return
	}
	tx, capture := s.tx, s.capture
	capture.Seal()
	s.tx, s.capture, s.decoder = Transmission{}, nil, nil
	logger.WithField("samples", capture.Len()).Info("transmission cancelled")
	s.postData(DataEvent{Kind: TransmissionCancelled, DataType: tx.DataType, Requested: tx.Requested, Capture: capture})
}

// drainLocked starts queued sequences while the link is idle.
func (s *Session) drainLocked() {
	for s.active == nil && !s.inFlight && len(s.queue) > 0 {
		seq := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		if seq.Empty() {
			s.postSequence(seq, command.EndedEarly)
			continue
		}
		if seq.Tag() == TagRequestTypeOne || seq.Tag() == TagRequestTypeTwo {
			// The stream must be subscribed before the ball starts sending.
			if err := s.subscribeLocked(DataID); err != nil {
				logger.WithError(err).Warn("sequence failed to begin")
				s.postSequence(seq, command.FailedToBegin)
				continue
			}
		}
		if err := seq.ExecuteTop(executor{s}); err != nil {
			logger.WithError(err).Warn("sequence failed to begin")
			s.postSequence(seq, command.FailedToBegin)
			continue
		}
		s.active = seq
		s.postSequence(seq, command.BegunExecution)

		switch seq.Tag() {
		case TagRequestTypeOne:
			s.beginTransmissionLocked(codec.TypeOne, seq.Count())
		case TagRequestTypeTwo:
			s.beginTransmissionLocked(codec.TypeTwo, seq.Count())
		case TagEndTransmission:
			s.cancelTransmissionLocked()
		}
	}
}

func (s *Session) flushLocked() {
	if s.active != nil {
		s.postSequence(s.active, command.EndedEarly)
		s.active = nil
		if s.inFlight {
			s.orphaned = true
		}
	}
	for _, seq := range s.queue {
		s.postSequence(seq, command.EndedEarly)
	}
	s.queue = nil
}

// prepareLocked resolves attr and makes sure notifications are on before
// the first request to it.
func (s *Session) prepareLocked(attr uuid.UUID) (Handle, error) {
	if s.inFlight {
		return 0, ErrRequestInFlight
	}
	return s.subscribeHandleLocked(attr)
}

// subscribeLocked turns on notifications for attr unless they already are.
func (s *Session) subscribeLocked(attr uuid.UUID) error {
	_, err := s.subscribeHandleLocked(attr)
	return err
}

func (s *Session) subscribeHandleLocked(attr uuid.UUID) (Handle, error) {
	h, ok := s.reg.handle(attr)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAttribute, AttributeName(attr))
	}
	if !s.notifying[h] {
		if err := s.transport.EnableNotifications(h); err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrNotifyFailed, AttributeName(attr), err)
		}
		s.notifying[h] = true
	}
	return h, nil
}

func (s *Session) post(fn func()) {
	s.outbox = append(s.outbox, fn)
}

func (s *Session) postSequence(seq *command.Sequence, ev command.Event) {
	logger.WithFields(logrus.Fields{"sequence": seq.Name(), "event": ev}).Debug("sequence")
	s.post(func() { seq.Notify(ev) })
}

func (s *Session) postData(ev DataEvent) {
	s.post(func() { s.data.deliver(ev) })
}

// unlockAndDispatch releases s.mu and runs queued callbacks. Only one
// goroutine dispatches at a time; callbacks that call back into the session
// append to the outbox and the running dispatcher picks them up in order.
func (s *Session) unlockAndDispatch() {
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}

// executor starts commands on the transport. It runs with s.mu held.
type executor struct{ s *Session }

func (x executor) Write(attr uuid.UUID, payload []byte) error {
	h, err := x.s.prepareLocked(attr)
	if err != nil {
		return err
	}
	if err := x.s.transport.Write(h, payload); err != nil {
		return fmt.Errorf("write %s: %w", AttributeName(attr), err)
	}
	x.s.inFlight, x.s.inFlightHandle = true, h
	return nil
}

func (x executor) Read(attr uuid.UUID) error {
	h, err := x.s.prepareLocked(attr)
	if err != nil {
		return err
	}
	if err := x.s.transport.Read(h); err != nil {
		return fmt.Errorf("read %s: %w", AttributeName(attr), err)
	}
	x.s.inFlight, x.s.inFlightHandle = true, h
	return nil
}
