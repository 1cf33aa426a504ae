// Package recorder stores the raw notification stream of a session as CBOR
// and plays it back into a session for offline analysis.
package recorder

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"kick-analytics/codec"
)

var logger = logrus.WithField("component", "recorder")

// Kind identifies what a record holds.
type Kind uint8

const (
	// KindRequest marks the start of a transmission: the capture the ball
	// was asked for. The start frame itself is not recorded.
	KindRequest Kind = iota + 1
	// KindNotification is one raw attribute value change.
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Record is one entry of a recording.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Kind      Kind      `cbor:"2,keyasint"`

	// Attribute is the attribute id in canonical string form.
	Attribute string `cbor:"3,keyasint,omitempty"`
	Value     []byte `cbor:"4,keyasint,omitempty"`

	DataType  codec.DataType `cbor:"5,keyasint,omitempty"`
	Requested int            `cbor:"6,keyasint,omitempty"`
}
