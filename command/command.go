// Package command models single attribute operations and the ordered
// sequences the device session runs one at a time.
package command

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// Kind distinguishes writes from reads.
type Kind int

const (
	KindWrite Kind = iota
	KindRead
)

func (k Kind) String() string {
	if k == KindRead {
		return "read"
	}
	return "write"
}

// ReadFunc receives the result of a read command.
type ReadFunc func(correlationID int, value []byte, err error)

// Executor starts attribute operations. Both methods only initiate the
// request; the result arrives later through the owner of the executor.
type Executor interface {
	Write(attr uuid.UUID, payload []byte) error
	Read(attr uuid.UUID) error
}

// Command is a single operation against one attribute. It is immutable.
type Command struct {
	kind          Kind
	attr          uuid.UUID
	payload       []byte
	correlationID int
	onRead        ReadFunc
}

// Write returns a command writing payload to attr.
func Write(attr uuid.UUID, payload []byte) Command {
	return Command{kind: KindWrite, attr: attr, payload: bytes.Clone(payload)}
}

// Read returns a command reading attr. fn may be nil.
func Read(attr uuid.UUID, correlationID int, fn ReadFunc) Command {
	return Command{kind: KindRead, attr: attr, correlationID: correlationID, onRead: fn}
}

func (c Command) Kind() Kind           { return c.kind }
func (c Command) Attribute() uuid.UUID { return c.attr }
func (c Command) Payload() []byte      { return bytes.Clone(c.payload) }
func (c Command) CorrelationID() int   { return c.correlationID }

// Execute starts the command on x.
func (c Command) Execute(x Executor) error {
	switch c.kind {
	case KindWrite:
		return x.Write(c.attr, c.payload)
	case KindRead:
		return x.Read(c.attr)
	}
	return fmt.Errorf("unknown command kind %d", c.kind)
}

// Complete routes a transport result to the command's callback, if any.
func (c Command) Complete(value []byte, err error) {
	if c.kind == KindRead && c.onRead != nil {
		c.onRead(c.correlationID, value, err)
	}
}

func (c Command) String() string {
	if c.kind == KindRead {
		return fmt.Sprintf("read %s (id=%d)", c.attr, c.correlationID)
	}
	return fmt.Sprintf("write %s % x", c.attr, c.payload)
}
