// Package codec decodes the compressed motion stream sent by the ball.
package codec

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// PacketSize is the size of every streaming data notification.
	PacketSize = 20

	// SamplePeriod is the synthetic spacing between two decoded samples, in seconds.
	SamplePeriod = 0.001

	// CountsPerG converts raw accelerometer counts to g.
	CountsPerG = 2048.0
)

var logger = logrus.WithField("component", "codec")

// DataType selects the wire encoding of a capture.
type DataType uint8

const (
	TypeOne DataType = 1
	TypeTwo DataType = 2
)

// Valid reports whether t is an encoding the ball can produce.
func (t DataType) Valid() bool {
	return t == TypeOne || t == TypeTwo
}

func (t DataType) String() string {
	switch t {
	case TypeOne:
		return "type-1"
	case TypeTwo:
		return "type-2"
	}
	return fmt.Sprintf("type-%d", uint8(t))
}

// Sample is one timestamped 3-axis accelerometer reading in device counts.
type Sample struct {
	Time    float64
	X, Y, Z int16
}

// G returns the sample in g.
func (s Sample) G() (x, y, z float64) {
	return float64(s.X) / CountsPerG,
		float64(s.Y) / CountsPerG,
		float64(s.Z) / CountsPerG
}

// String returns a human-readable representation of the sample.
func (s Sample) String() string {
	x, y, z := s.G()
	return fmt.Sprintf("t=%.3fs (%d, %d, %d) = (%.3f, %.3f, %.3f) g", s.Time, s.X, s.Y, s.Z, x, y, z)
}
