package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kick-analytics/codec"
	"kick-analytics/features"
	"kick-analytics/impact"
)

// kickCapture is a sealed capture of a resting ball with a short impact at
// samples 100 to 105.
func kickCapture(t *testing.T) *codec.Capture {
	t.Helper()
	c := codec.NewCapture(codec.TypeOne, 300)
	for i := 0; i < 300; i++ {
		fi := float64(i)
		s := codec.Sample{
			Time: fi * codec.SamplePeriod,
			X:    int16(40 * math.Sin(fi*0.7)),
			Y:    int16(60 * math.Cos(fi*0.3)),
			Z:    int16(2048 + 20*math.Sin(fi*1.3)),
		}
		if i >= 100 && i <= 105 {
			s.X, s.Y, s.Z = 6000, -9800, 12000
		}
		require.NoError(t, c.Append(s))
	}
	c.Seal()
	return c
}

func TestAnalyzeRequiresSealedCapture(t *testing.T) {
	c := codec.NewCapture(codec.TypeOne, 10)
	_, err := Analyze(c, features.DefaultCorrelator())
	assert.ErrorIs(t, err, ErrCaptureNotSealed)
}

func TestAnalyzeNoImpact(t *testing.T) {
	c := codec.NewCapture(codec.TypeTwo, 50)
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Append(codec.Sample{Z: 2048}))
	}
	c.Seal()
	// The untouched end samples still form regions, but nothing in them
	// rises above the resting 1 g.
	require.NotEmpty(t, impact.FindRegions(impact.Magnitudes(c.Samples())))
	_, err := Analyze(c, features.DefaultCorrelator())
	assert.ErrorIs(t, err, ErrNoImpact)
}

func TestAnalyzeBelowImpactFloor(t *testing.T) {
	c := codec.NewCapture(codec.TypeOne, 100)
	for i := 0; i < 100; i++ {
		s := codec.Sample{Z: 2048}
		if i == 50 {
			s.Z = 3500 // 1.7 g: a bump, not a kick
		}
		require.NoError(t, c.Append(s))
	}
	c.Seal()
	_, err := Analyze(c, features.DefaultCorrelator())
	assert.ErrorIs(t, err, ErrNoImpact)
}

func TestAnalyzeKick(t *testing.T) {
	r, err := Analyze(kickCapture(t), features.DefaultCorrelator())
	require.NoError(t, err)

	assert.LessOrEqual(t, r.Region.Start, 100)
	assert.GreaterOrEqual(t, r.Region.End, 105)
	assert.InDelta(t, 12000/codec.CountsPerG, r.Peak, 1e-9)
	assert.Equal(t, 300, r.Samples)
	assert.Equal(t, codec.TypeOne, r.DataType)
	assert.Equal(t, 26, r.Features.Len())
	assert.False(t, math.IsNaN(r.Force))

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"spectral_centroid"`)
}

func TestAnalyzeWrongModel(t *testing.T) {
	c, err := features.NewCorrelator([]float64{1, 2})
	require.NoError(t, err)
	_, err = Analyze(kickCapture(t), c)
	assert.ErrorIs(t, err, features.ErrFeatureLengthMismatch)
}

func TestProcessCaptureStats(t *testing.T) {
	a := NewAnalyzer(features.DefaultCorrelator())
	a.SetConnected(true)

	// Outside a session the kick is analysed but not counted.
	ev, err := a.ProcessCapture(kickCapture(t))
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Count)
	assert.Equal(t, 0, a.GetState().Ball.KickCount)

	a.StartSession()
	assert.True(t, a.IsActive())
	for i := 1; i <= 2; i++ {
		ev, err = a.ProcessCapture(kickCapture(t))
		require.NoError(t, err)
		assert.Equal(t, i, ev.Count)
	}

	st := a.GetState()
	assert.Equal(t, 2, st.Ball.KickCount)
	assert.Len(t, st.Ball.RecentKicks, 2)
	assert.Equal(t, ev.Force, st.Ball.MaxForce)
	assert.InDelta(t, ev.Force, st.Ball.AvgForce, 1e-9)
	assert.True(t, st.Ball.Connected)

	a.ResetSession()
	st = a.GetState()
	assert.False(t, st.Active)
	assert.Equal(t, 0, st.Ball.KickCount)
	assert.True(t, st.Ball.Connected, "link state survives a reset")
}

func TestDisconnectPausesSession(t *testing.T) {
	a := NewAnalyzer(features.DefaultCorrelator())
	a.SetConnected(true)
	a.SetArmed(true)
	a.StartSession()

	a.SetConnected(false)
	st := a.GetState()
	assert.True(t, st.Paused)
	assert.False(t, st.Ball.Armed)

	ev, err := a.ProcessCapture(kickCapture(t))
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Count, "paused sessions do not count kicks")

	a.SetConnected(true)
	assert.False(t, a.GetState().Paused)
}

func TestHandlersAreCalled(t *testing.T) {
	a := NewAnalyzer(features.DefaultCorrelator())
	states := make(chan *SessionState, 16)
	kicks := make(chan KickEvent, 1)
	a.SetStateHandler(func(s *SessionState) { states <- s })
	a.SetKickHandler(func(k KickEvent) { kicks <- k })

	a.SetConnected(true)
	a.StartSession()
	_, err := a.ProcessCapture(kickCapture(t))
	require.NoError(t, err)

	select {
	case k := <-kicks:
		assert.Equal(t, 1, k.Count)
	case <-time.After(time.Second):
		t.Fatal("kick handler not called")
	}
	assert.Eventually(t, func() bool {
		for {
			select {
			case s := <-states:
				if s.Ball.KickCount == 1 {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)
}

func TestBatteryAndDesyncs(t *testing.T) {
	a := NewAnalyzer(features.DefaultCorrelator())
	a.SetBattery(87)
	a.AddDesyncs(3)
	a.AddDesyncs(0)
	st := a.GetState()
	assert.Equal(t, uint8(87), st.Ball.Battery)
	assert.Equal(t, 3, st.Ball.Desyncs)
}
