package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kick-analytics/ball"
	"kick-analytics/codec"
	"kick-analytics/command"
)

func connected(t *testing.T, opts Options) (*Ball, *ball.Session) {
	t.Helper()
	b := New(opts)
	t.Cleanup(b.Close)
	s := ball.NewSession(b)
	b.Connect(s)
	require.True(t, s.Ready())
	return b, s
}

func testOptions() Options {
	o := DefaultOptions()
	o.Latency = 0
	o.KickDelay = 20 * time.Millisecond
	return o
}

func TestKickShape(t *testing.T) {
	samples := Kick(400, 9, rand.New(rand.NewSource(3)))
	require.Len(t, samples, 400)
	assert.Equal(t, 0.0, samples[0].Time)
	assert.InDelta(t, 399*codec.SamplePeriod, samples[399].Time, 1e-12)

	// At rest the ball reads about 1 g on z.
	assert.InDelta(t, codec.CountsPerG, float64(samples[10].Z), restNoise)
	// The impact starts a quarter in with the full peak on top of gravity.
	assert.InDelta(t, 10*codec.CountsPerG, float64(samples[100].Z), 2*restNoise)
}

func TestArmKick(t *testing.T) {
	_, s := connected(t, testOptions())
	events := make(chan ball.KickEvent, 2)
	s.OnKick(func(ev ball.KickEvent) { events <- ev })

	s.Enqueue(ball.ArmKick(nil))
	for _, want := range []ball.KickEvent{ball.KickReady, ball.KickKicked} {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}
}

func TestTransmission(t *testing.T) {
	for _, dt := range []codec.DataType{codec.TypeOne, codec.TypeTwo} {
		t.Run(dt.String(), func(t *testing.T) {
			b, s := connected(t, testOptions())
			ended := make(chan ball.DataEvent, 1)
			s.OnData(func(ev ball.DataEvent) {
				if ev.Kind == ball.TransmissionEnded {
					ended <- ev
				}
			})

			seq, err := ball.RequestSamples(300, dt, nil)
			require.NoError(t, err)
			s.Enqueue(seq)

			select {
			case ev := <-ended:
				require.True(t, ev.Capture.Sealed())
				assert.Equal(t, b.Last(), ev.Capture.Samples())
				assert.Zero(t, ev.Desyncs)
			case <-time.After(2 * time.Second):
				t.Fatal("transmission did not end")
			}
		})
	}
}

func TestEndTransmissionStopsStream(t *testing.T) {
	o := testOptions()
	o.Latency = time.Millisecond
	_, s := connected(t, o)
	events := make(chan ball.DataEventKind, 2048)
	s.OnData(func(ev ball.DataEvent) { events <- ev.Kind })

	seq, err := ball.RequestSamples(ball.MaxSamples, codec.TypeOne, nil)
	require.NoError(t, err)
	s.Enqueue(seq, ball.EndTransmission(nil))

	assert.Eventually(t, func() bool { return !s.Transmission().InProgress && s.Pending() == 0 },
		time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	var kinds []ball.DataEventKind
	for len(events) > 0 {
		kinds = append(kinds, <-events)
	}
	assert.Contains(t, kinds, ball.TransmissionCancelled)
	assert.NotContains(t, kinds, ball.TransmissionEnded)
}

func TestReadBattery(t *testing.T) {
	_, s := connected(t, testOptions())
	got := make(chan []byte, 1)
	s.Enqueue(ball.ReadBattery(7, func(id int, value []byte, err error) {
		assert.Equal(t, 7, id)
		assert.NoError(t, err)
		got <- value
	}, nil))

	select {
	case v := <-got:
		assert.Equal(t, []byte{76}, v)
	case <-time.After(time.Second):
		t.Fatal("battery not read")
	}
}

func TestDisconnectCommand(t *testing.T) {
	b, s := connected(t, testOptions())
	done := make(chan command.Event, 1)
	s.Enqueue(ball.Disconnect(func(_ *command.Sequence, ev command.Event) {
		if ev.Terminal() {
			done <- ev
		}
	}))

	select {
	case ev := <-done:
		assert.Equal(t, command.FinishedExecution, ev)
	case <-time.After(time.Second):
		t.Fatal("disconnect sequence did not finish")
	}
	assert.Eventually(t, func() bool { return !b.IsConnected() && !s.Ready() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, b.Write(1, []byte{1}), ErrNotConnected)
}
