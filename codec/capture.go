package codec

import (
	"errors"
	"sync"
)

// ErrCaptureSealed is returned when samples are appended to a sealed capture.
var ErrCaptureSealed = errors.New("capture is sealed")

// Capture is the append-only buffer of samples collected during one
// data transmission. Analysis must only read a sealed capture.
type Capture struct {
	mu        sync.RWMutex
	dataType  DataType
	requested int // 0 = unbounded
	samples   []Sample
	sealed    bool
}

// NewCapture creates an empty capture. requested is a capacity hint, 0 means unbounded.
func NewCapture(dataType DataType, requested int) *Capture {
	if requested < 0 {
		requested = 0
	}
	return &Capture{
		dataType:  dataType,
		requested: requested,
		samples:   make([]Sample, 0, requested),
	}
}

// Append adds samples to the end of the capture.
func (c *Capture) Append(samples ...Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return ErrCaptureSealed
	}
	c.samples = append(c.samples, samples...)
	return nil
}

// Seal marks the capture complete. Sealing twice is a no-op.
func (c *Capture) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}

// Sealed returns true once the capture no longer accepts samples.
func (c *Capture) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

// Samples returns a copy of the collected samples.
func (c *Capture) Samples() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Len returns the number of collected samples.
func (c *Capture) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

func (c *Capture) DataType() DataType { return c.dataType }
func (c *Capture) Requested() int     { return c.requested }
