package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kick-analytics/analytics"
	"kick-analytics/codec"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	err          error
	sent         []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func testKick() analytics.KickEvent {
	return analytics.KickEvent{
		Count:     3,
		Force:     812.25,
		Peak:      9.5,
		Timestamp: time.UnixMilli(1772359200123),
		Result:    &analytics.Result{Samples: 1096, DataType: codec.TypeTwo},
	}
}

func TestNewMessage(t *testing.T) {
	m := NewMessage(testKick())
	assert.Equal(t, Message{
		Count:     3,
		Force:     812.25,
		Peak:      9.5,
		Samples:   1096,
		DataType:  "type-2",
		Timestamp: 1772359200123,
	}, m)

	bare := NewMessage(analytics.KickEvent{Count: 1})
	assert.Empty(t, bare.DataType)
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "kick/events")
	require.NoError(t, p.Publish(testKick()))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "kick/events", client.sent[0].topic)

	var got Message
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, 812.25, got.Force)

	p.Close()
	assert.True(t, client.disconnected)
}

func TestPublishError(t *testing.T) {
	broken := errors.New("not connected")
	p := NewPublisher(&fakeClient{err: broken}, "kick/events")
	assert.ErrorIs(t, p.Publish(testKick()), broken)
	p.HandleKick(testKick())
}
