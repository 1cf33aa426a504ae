package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrMalformedPacket is returned for type-2 packets that are not PacketSize bytes.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrDesync marks a type-2 sequence number mismatch. It is logged, never returned.
	ErrDesync = errors.New("stream desync")
	// ErrUnknownDataType is returned by NewDecoder for anything but TypeOne and TypeTwo.
	ErrUnknownDataType = errors.New("unknown data type")
)

const (
	groupSize  = 6
	groupCount = 3
	firstGroup = 2
)

// Decoder turns data notifications into samples, in arrival order.
type Decoder interface {
	// AddPacket decodes one notification and returns the samples it carried.
	AddPacket(pkt []byte) ([]Sample, error)
	// Done is true once no further samples will be produced.
	Done() bool
	// Count returns the number of samples produced so far.
	Count() int
}

// NewDecoder returns the decoder for dataType. requested bounds the number of
// samples produced; 0 means unbounded.
func NewDecoder(dataType DataType, requested int) (Decoder, error) {
	switch dataType {
	case TypeOne:
		return NewTypeOneDecoder(requested), nil
	case TypeTwo:
		return NewTypeTwoDecoder(requested), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownDataType, dataType)
}

// stream holds the state shared by both encodings: the running absolute
// position and the number of samples emitted.
type stream struct {
	x, y, z   int16
	havePrev  bool
	index     int
	requested int
}

func (s *stream) full() bool {
	return s.requested > 0 && s.index >= s.requested
}

func (s *stream) emit(out []Sample) []Sample {
	out = append(out, Sample{
		Time: float64(s.index) * SamplePeriod,
		X:    s.x,
		Y:    s.y,
		Z:    s.z,
	})
	s.index++
	return out
}

// decodeGroup decodes one 6-byte group: either one absolute sample or two
// delta samples. It returns false once the requested count is reached.
func (s *stream) decodeGroup(out []Sample, g []byte, delta bool) ([]Sample, bool) {
	if s.full() {
		return out, false
	}
	if delta && !s.havePrev {
		// The device always opens with absolute data; there is no position to
		// apply deltas to, so the group is read as absolute.
		logger.WithField("index", s.index).Debug("delta group without previous sample, reading as absolute")
		delta = false
	}
	if !delta {
		s.x = int16(binary.LittleEndian.Uint16(g[0:2]))
		s.y = int16(binary.LittleEndian.Uint16(g[2:4]))
		s.z = int16(binary.LittleEndian.Uint16(g[4:6]))
		s.havePrev = true
		out = s.emit(out)
		return out, !s.full()
	}
	for k := 0; k < 2; k++ {
		if s.full() {
			return out, false
		}
		d := g[3*k : 3*k+3]
		s.x += int16(int8(d[0]))
		s.y += int16(int8(d[1]))
		s.z += int16(int8(d[2]))
		out = s.emit(out)
	}
	return out, !s.full()
}

func (s *stream) Done() bool { return s.full() }
func (s *stream) Count() int { return s.index }

// TypeOneDecoder decodes the type-1 encoding. Byte 1 carries a flag per group in
// bits 7..5; a set bit marks the group as two delta-coded samples.
type TypeOneDecoder struct {
	stream
}

// NewTypeOneDecoder creates a type-1 decoder.
func NewTypeOneDecoder(requested int) *TypeOneDecoder {
	return &TypeOneDecoder{stream: stream{requested: requested}}
}

// AddPacket decodes one type-1 packet. Packets of the wrong size are ignored.
func (d *TypeOneDecoder) AddPacket(pkt []byte) ([]Sample, error) {
	if len(pkt) != PacketSize {
		return nil, nil
	}
	flags := pkt[1]
	var (
		out  []Sample
		more = true
	)
	for g := 0; g < groupCount && more; g++ {
		off := firstGroup + g*groupSize
		delta := flags&(0x80>>g) != 0
		out, more = d.decodeGroup(out, pkt[off:off+groupSize], delta)
	}
	return out, nil
}

const (
	seqMask  = 0x1FFF
	seqFlags = 0x8000 // slot 0; slot n is seqFlags>>n
)

// TypeTwoDecoder decodes the type-2 encoding. Every data packet starts with a
// little-endian word whose low 13 bits are a sequence number and whose top
// three bits flag slots 0..2 as delta coded.
//
// A mismatched packet is dropped and the expected number kept. When the
// packet after it continues the dropped one, the expected packet counts as
// lost and decoding resumes there.
type TypeTwoDecoder struct {
	stream
	framer      Framer
	expected    uint16
	lastDropped uint16
	dropped     bool
	done        bool
	desyncs     int
}

// NewTypeTwoDecoder creates a type-2 decoder.
func NewTypeTwoDecoder(requested int) *TypeTwoDecoder {
	return &TypeTwoDecoder{stream: stream{requested: requested}}
}

// AddPacket decodes one type-2 packet. Framing packets produce no samples,
// the end frame makes the decoder done. A sequence mismatch drops the packet.
func (d *TypeTwoDecoder) AddPacket(pkt []byte) ([]Sample, error) {
	if d.done {
		return nil, nil
	}
	if len(pkt) != PacketSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedPacket, len(pkt), PacketSize)
	}
	switch d.framer.Classify(pkt) {
	case FrameStart:
		return nil, nil
	case FrameEnd:
		d.done = true
		return nil, nil
	}

	word := binary.LittleEndian.Uint16(pkt[0:2])
	seq := word & seqMask
	switch {
	case seq == d.expected:
	case d.dropped && seq == (d.lastDropped+1)&seqMask:
		// The stream carried on past the dropped packet: the expected one
		// was lost, not reordered.
		logger.WithFields(logrus.Fields{
			"expected": d.expected,
			"got":      seq,
		}).Info("type-2 stream resumed after a lost packet")
	default:
		d.desyncs++
		d.dropped = true
		d.lastDropped = seq
		logger.WithError(ErrDesync).WithFields(logrus.Fields{
			"expected": d.expected,
			"got":      seq,
		}).Warn("type-2 sequence mismatch, packet dropped")
		return nil, nil
	}
	d.dropped = false
	d.expected = (seq + 1) & seqMask

	var (
		out  []Sample
		more = true
	)
	for slot := 0; slot < groupCount && more; slot++ {
		off := firstGroup + slot*groupSize
		delta := word&(seqFlags>>slot) != 0
		out, more = d.decodeGroup(out, pkt[off:off+groupSize], delta)
	}
	return out, nil
}

// Done is true after the end frame or once the requested count is reached.
func (d *TypeTwoDecoder) Done() bool { return d.done || d.full() }

// Desyncs returns the number of packets dropped on a sequence mismatch.
func (d *TypeTwoDecoder) Desyncs() int { return d.desyncs }
