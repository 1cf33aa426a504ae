package command

import (
	"errors"
	"fmt"
)

// ErrEmptySequence is returned when executing a sequence with no commands.
var ErrEmptySequence = errors.New("command sequence is empty")

// Event is a command sequence lifecycle event.
type Event int

const (
	BegunExecution Event = iota
	FinishedExecution
	FailedToBegin
	EndedEarly
)

func (e Event) String() string {
	switch e {
	case BegunExecution:
		return "begun"
	case FinishedExecution:
		return "finished"
	case FailedToBegin:
		return "failed-to-begin"
	case EndedEarly:
		return "ended-early"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool { return e != BegunExecution }

// Tag marks sequences the session treats specially. The zero Tag is untagged.
type Tag uint8

// Handler receives the lifecycle events of a sequence.
type Handler func(seq *Sequence, ev Event)

// Sequence is a named FIFO of commands. It is atomic with respect to other
// sequences: the session runs its commands back to back, each one starting
// when the previous one completes.
type Sequence struct {
	name      string
	tag       Tag
	count     int
	cmds      []Command
	executing bool
	handler   Handler
}

// Option configures a Sequence.
type Option func(*Sequence)

// WithTag tags the sequence. count carries the tag's argument, e.g. the
// number of samples a transmission request asks for.
func WithTag(tag Tag, count int) Option {
	return func(s *Sequence) {
		s.tag = tag
		s.count = count
	}
}

// WithHandler sets the lifecycle callback.
func WithHandler(h Handler) Option {
	return func(s *Sequence) { s.handler = h }
}

// New creates a sequence holding cmds.
func New(name string, cmds []Command, opts ...Option) *Sequence {
	s := &Sequence{name: name, cmds: append([]Command(nil), cmds...)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequence) Name() string    { return s.name }
func (s *Sequence) Tag() Tag        { return s.tag }
func (s *Sequence) Count() int      { return s.count }
func (s *Sequence) Executing() bool { return s.executing }
func (s *Sequence) Len() int        { return len(s.cmds) }
func (s *Sequence) Empty() bool     { return len(s.cmds) == 0 }

// Enqueue appends c.
func (s *Sequence) Enqueue(c Command) {
	s.cmds = append(s.cmds, c)
}

// Peek returns the head command.
func (s *Sequence) Peek() (Command, bool) {
	if len(s.cmds) == 0 {
		return Command{}, false
	}
	return s.cmds[0], true
}

// Pop removes and returns the head command. Popping the last command clears
// the executing flag.
func (s *Sequence) Pop() (Command, bool) {
	c, ok := s.Peek()
	if !ok {
		return c, false
	}
	s.cmds = s.cmds[1:]
	if len(s.cmds) == 0 {
		s.executing = false
	}
	return c, true
}

// ExecuteTop starts the head command and marks the sequence executing. On
// error the caller must discard the sequence.
func (s *Sequence) ExecuteTop(x Executor) error {
	c, ok := s.Peek()
	if !ok {
		return ErrEmptySequence
	}
	if err := c.Execute(x); err != nil {
		return fmt.Errorf("%s: %s: %w", s.name, c, err)
	}
	s.executing = true
	return nil
}

// Notify delivers ev to the sequence's handler.
func (s *Sequence) Notify(ev Event) {
	if s.handler != nil {
		s.handler(s, ev)
	}
}

func (s *Sequence) String() string {
	return fmt.Sprintf("%s (%d pending)", s.name, len(s.cmds))
}
