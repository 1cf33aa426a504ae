package codec

// Frame is the role of a packet on the streaming data attribute.
type Frame int

const (
	FrameLine Frame = iota
	FrameStart
	FrameEnd
)

func (f Frame) String() string {
	switch f {
	case FrameStart:
		return "start"
	case FrameEnd:
		return "end"
	}
	return "line"
}

// Framing sentinels.
const (
	startMagic0 = 0x8A
	startMagic1 = 0x0A
	endMagic    = 0x9A
	endGuard    = 0x9B // a 0x9B line right before an end-looking packet makes it data
	endZeroFrom = 9
)

// Framer classifies packets of one stream. It remembers the first byte of the
// previous packet, which the end marker depends on.
type Framer struct {
	prevFirst byte
	havePrev  bool
}

// Classify returns the frame role of pkt and records it as the previous packet.
func (f *Framer) Classify(pkt []byte) Frame {
	fr := classify(pkt, f.prevFirst, f.havePrev)
	if len(pkt) > 0 {
		f.prevFirst, f.havePrev = pkt[0], true
	}
	return fr
}

// Reset forgets the previous packet.
func (f *Framer) Reset() { *f = Framer{} }

func classify(pkt []byte, prevFirst byte, havePrev bool) Frame {
	if len(pkt) >= 2 && pkt[0] == startMagic0 && pkt[1] == startMagic1 {
		return FrameStart
	}
	if len(pkt) != PacketSize || pkt[0] != endMagic {
		return FrameLine
	}
	if havePrev && prevFirst == endGuard {
		return FrameLine
	}
	for _, b := range pkt[endZeroFrom:] {
		if b != 0 {
			return FrameLine
		}
	}
	return FrameEnd
}

// StartFrame returns the packet announcing the beginning of a transmission.
func StartFrame() []byte {
	pkt := make([]byte, PacketSize)
	pkt[0], pkt[1] = startMagic0, startMagic1
	return pkt
}

// EndFrame returns the packet closing a transmission.
func EndFrame() []byte {
	pkt := make([]byte, PacketSize)
	pkt[0] = endMagic
	return pkt
}
