package recorder

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"kick-analytics/ball"
	"kick-analytics/codec"
)

// Recorder appends records to a CBOR stream. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *cbor.Encoder
	closed  bool
	count   int
}

// NewRecorder records to w.
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{encoder: newEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// NewFileRecorder records to path, appending if the file exists.
func NewFileRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewRecorder(f), nil
}

// Record writes rec, stamping it with the current time if it has none.
func (r *Recorder) Record(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if err := r.encoder.Encode(rec); err != nil {
		return err
	}
	r.count++
	return nil
}

// Count returns the number of records written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Attach records the notifications of s until the returned function is
// called.
func (r *Recorder) Attach(s *ball.Session) (detach func()) {
	offRaw := s.OnNotification(func(n ball.Notification) {
		if n.Attribute == ball.DataID && isStartFrame(n.Value) {
			return
		}
		r.log(Record{Kind: KindNotification, Attribute: n.Attribute.String(), Value: n.Value})
	})
	offData := s.OnData(func(ev ball.DataEvent) {
		if ev.Kind == ball.TransmissionBegun {
			r.log(Record{Kind: KindRequest, DataType: ev.DataType, Requested: ev.Requested})
		}
	})
	return func() {
		offRaw()
		offData()
	}
}

func (r *Recorder) log(rec Record) {
	if err := r.Record(rec); err != nil {
		logger.WithError(err).WithField("kind", rec.Kind).Error("Failed to record")
	}
}

func isStartFrame(value []byte) bool {
	var f codec.Framer
	return f.Classify(value) == codec.FrameStart
}

// Close closes the underlying writer if it is a Closer. Later records are
// dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
