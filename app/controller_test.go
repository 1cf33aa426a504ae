package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kick-analytics/analytics"
	"kick-analytics/ball"
	"kick-analytics/codec"
	"kick-analytics/features"
	"kick-analytics/sim"
)

func setup(t *testing.T, opts Options) (*sim.Ball, *Controller, *analytics.Analyzer) {
	t.Helper()
	so := sim.DefaultOptions()
	so.Latency = 0
	so.KickDelay = 20 * time.Millisecond
	device := sim.New(so)
	t.Cleanup(device.Close)

	session := ball.NewSession(device)
	a := analytics.NewAnalyzer(features.DefaultCorrelator())
	c := New(session, a, opts)
	c.Start()
	t.Cleanup(c.Stop)
	return device, c, a
}

func TestNotReady(t *testing.T) {
	_, c, _ := setup(t, Options{Samples: 200, DataType: codec.TypeTwo})
	assert.ErrorIs(t, c.Arm(), ErrNotReady)
	assert.ErrorIs(t, c.Capture(), ErrNotReady)
	assert.ErrorIs(t, c.RefreshBattery(), ErrNotReady)
}

func TestDiscoveryReadsBattery(t *testing.T) {
	device, c, a := setup(t, Options{Samples: 200, DataType: codec.TypeOne})
	device.Connect(c.session)

	require.Eventually(t, func() bool {
		b := a.GetState().Ball
		return b.Connected && b.Battery == 76
	}, time.Second, 5*time.Millisecond)
	assert.False(t, a.GetState().Ball.Armed)
}

func TestKickCycle(t *testing.T) {
	device, c, a := setup(t, Options{Samples: 300, DataType: codec.TypeTwo, AutoArm: true})

	var (
		mu    sync.Mutex
		kicks []analytics.KickEvent
	)
	a.SetKickHandler(func(k analytics.KickEvent) {
		mu.Lock()
		kicks = append(kicks, k)
		mu.Unlock()
	})
	a.StartSession()
	device.Connect(c.session)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kicks) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	first := kicks[0]
	mu.Unlock()
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, 300, first.Result.Samples)
	assert.Equal(t, codec.TypeTwo, first.Result.DataType)
	assert.Greater(t, first.Peak, 1.0)

	state := a.GetState()
	assert.False(t, state.Paused)
	assert.GreaterOrEqual(t, state.Ball.KickCount, 1)
	assert.Zero(t, state.Ball.Desyncs)
}

func TestLinkLoss(t *testing.T) {
	device, c, a := setup(t, Options{Samples: 200, DataType: codec.TypeOne})
	a.StartSession()
	device.Connect(c.session)
	require.Eventually(t, func() bool { return a.GetState().Ball.Connected }, time.Second, 5*time.Millisecond)

	device.Disconnect()
	c.Linked(false)
	state := a.GetState()
	assert.False(t, state.Ball.Connected)
	assert.True(t, state.Paused)
	assert.ErrorIs(t, c.Arm(), ErrNotReady)
}
