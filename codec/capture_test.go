package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureSeal(t *testing.T) {
	c := NewCapture(TypeTwo, 4)
	require.NoError(t, c.Append(Sample{X: 1}, Sample{X: 2}))
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Sealed())

	c.Seal()
	assert.True(t, c.Sealed())
	assert.ErrorIs(t, c.Append(Sample{X: 3}), ErrCaptureSealed)
	assert.Equal(t, 2, c.Len())

	samples := c.Samples()
	samples[0].X = 99
	assert.Equal(t, int16(1), c.Samples()[0].X)
	assert.Equal(t, TypeTwo, c.DataType())
	assert.Equal(t, 4, c.Requested())
}

func TestFramerClassify(t *testing.T) {
	tests := []struct {
		name string
		prev []byte
		pkt  []byte
		want Frame
	}{
		{name: "start", pkt: StartFrame(), want: FrameStart},
		{name: "end", pkt: EndFrame(), want: FrameEnd},
		{name: "end after line", prev: make([]byte, PacketSize), pkt: EndFrame(), want: FrameEnd},
		{name: "end after guard", prev: append([]byte{0x9B}, make([]byte, 19)...), pkt: EndFrame(), want: FrameLine},
		{name: "end with data tail", pkt: func() []byte { p := EndFrame(); p[15] = 1; return p }(), want: FrameLine},
		{name: "line", pkt: make([]byte, PacketSize), want: FrameLine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Framer
			if tt.prev != nil {
				f.Classify(tt.prev)
			}
			assert.Equal(t, tt.want, f.Classify(tt.pkt))
		})
	}
}

func TestSampleG(t *testing.T) {
	x, y, z := Sample{X: 2048, Y: -1024, Z: 0}.G()
	assert.Equal(t, 1.0, x)
	assert.Equal(t, -0.5, y)
	assert.Equal(t, 0.0, z)
}
