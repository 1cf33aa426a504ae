package codec

import "encoding/binary"

// Encoder packs samples into data packets. It chooses delta groups whenever
// the next two samples are within int8 range of the running position.
type Encoder struct {
	dataType DataType
	seq      uint16
	x, y, z  int16
	havePrev bool
	padded   int
}

// NewEncoder creates an encoder producing dataType packets.
func NewEncoder(dataType DataType) *Encoder {
	return &Encoder{dataType: dataType}
}

// Encode packs samples into as many packets as needed. The last packet may be
// padded with absolute groups repeating the final position. The wire format
// has no marker for them, so a decoder must be bounded by the requested count;
// an unbounded one reads each padding group as one more sample. Padded reports
// how many were written.
func (e *Encoder) Encode(samples []Sample) [][]byte {
	var packets [][]byte
	e.padded = 0
	for len(samples) > 0 {
		pkt := make([]byte, PacketSize)
		var flags uint16
		for g := 0; g < groupCount; g++ {
			off := firstGroup + g*groupSize
			grp := pkt[off : off+groupSize]
			if len(samples) >= 2 && e.fitsDelta(samples[0], samples[1]) {
				e.putDelta(grp, samples[0], samples[1])
				flags |= 1 << (2 - g)
				samples = samples[2:]
				continue
			}
			if len(samples) > 0 {
				e.putAbsolute(grp, samples[0])
				samples = samples[1:]
				continue
			}
			e.putAbsolute(grp, Sample{X: e.x, Y: e.y, Z: e.z})
			e.padded++
		}
		switch e.dataType {
		case TypeTwo:
			word := e.seq&seqMask | flags<<13
			binary.LittleEndian.PutUint16(pkt[0:2], word)
			e.seq = (e.seq + 1) & seqMask
		default:
			pkt[1] = byte(flags << 5)
		}
		packets = append(packets, pkt)
	}
	return packets
}

// Padded is the number of padding groups in the last packet of the most
// recent Encode call.
func (e *Encoder) Padded() int { return e.padded }

func (e *Encoder) fitsDelta(a, b Sample) bool {
	if !e.havePrev {
		return false
	}
	return fitsInt8(int(a.X)-int(e.x)) && fitsInt8(int(a.Y)-int(e.y)) && fitsInt8(int(a.Z)-int(e.z)) &&
		fitsInt8(int(b.X)-int(a.X)) && fitsInt8(int(b.Y)-int(a.Y)) && fitsInt8(int(b.Z)-int(a.Z))
}

func (e *Encoder) putDelta(g []byte, a, b Sample) {
	g[0] = byte(int8(int(a.X) - int(e.x)))
	g[1] = byte(int8(int(a.Y) - int(e.y)))
	g[2] = byte(int8(int(a.Z) - int(e.z)))
	g[3] = byte(int8(int(b.X) - int(a.X)))
	g[4] = byte(int8(int(b.Y) - int(a.Y)))
	g[5] = byte(int8(int(b.Z) - int(a.Z)))
	e.x, e.y, e.z = b.X, b.Y, b.Z
}

func (e *Encoder) putAbsolute(g []byte, s Sample) {
	binary.LittleEndian.PutUint16(g[0:2], uint16(s.X))
	binary.LittleEndian.PutUint16(g[2:4], uint16(s.Y))
	binary.LittleEndian.PutUint16(g[4:6], uint16(s.Z))
	e.x, e.y, e.z = s.X, s.Y, s.Z
	e.havePrev = true
}

func fitsInt8(d int) bool { return d >= -128 && d <= 127 }
