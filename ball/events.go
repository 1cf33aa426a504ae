package ball

import (
	"fmt"

	"github.com/google/uuid"

	"kick-analytics/codec"
)

// KickEvent is reported by the ready/kicked attribute.
type KickEvent int

const (
	KickReady KickEvent = iota
	KickKicked
)

func (k KickEvent) String() string {
	if k == KickKicked {
		return "kicked"
	}
	return "ready"
}

// DataEventKind identifies a DataEvent.
type DataEventKind int

const (
	TransmissionBegun DataEventKind = iota
	SamplesRead
	TransmissionEnded
	TransmissionCancelled
)

func (k DataEventKind) String() string {
	switch k {
	case TransmissionBegun:
		return "transmission-begun"
	case SamplesRead:
		return "samples-read"
	case TransmissionEnded:
		return "transmission-ended"
	case TransmissionCancelled:
		return "transmission-cancelled"
	}
	return fmt.Sprintf("data-event(%d)", int(k))
}

// DataEvent is published to data listeners while a transmission runs.
type DataEvent struct {
	Kind      DataEventKind
	DataType  codec.DataType
	Requested int
	// Samples holds the samples decoded from one line (SamplesRead).
	Samples []codec.Sample
	// Capture is the sealed capture (TransmissionEnded, TransmissionCancelled).
	Capture *codec.Capture
	// Desyncs counts type-2 packets dropped on a sequence mismatch.
	Desyncs int
}

// Notification is a raw attribute value change.
type Notification struct {
	Attribute uuid.UUID
	Value     []byte
}

// Transmission describes the data transfer in progress, if any.
type Transmission struct {
	InProgress bool
	DataType   codec.DataType
	Requested  int
}
