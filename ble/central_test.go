package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"kick-analytics/ball"
)

func TestAttributeFor(t *testing.T) {
	for _, id := range ball.Attributes {
		got, ok := attributeFor(bluetoothUUID(id))
		require.True(t, ok, ball.AttributeName(id))
		assert.Equal(t, id, got)
	}

	hr, err := bluetooth.ParseUUID("00002a37-0000-1000-8000-00805f9b34fb")
	require.NoError(t, err)
	_, ok := attributeFor(hr)
	assert.False(t, ok)
}

func TestRequestsNeedConnection(t *testing.T) {
	c := NewCentral("KickBall")
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Write(1, []byte{1}), ErrNotConnected)
	assert.ErrorIs(t, c.Read(1), ErrNotConnected)
	assert.ErrorIs(t, c.EnableNotifications(1), ErrNotConnected)
	assert.NoError(t, c.Disconnect())
}
