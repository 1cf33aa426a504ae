// Package publish forwards analysed kicks to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"kick-analytics/analytics"
)

var logger = logrus.WithField("component", "mqtt")

// Options configures the publisher.
type Options struct {
	Broker   string
	Topic    string
	ClientID string
}

// Message is the payload published for each kick. It leaves out the
// feature vector and region detail of the full result.
type Message struct {
	Count     int     `json:"count"`
	Force     float64 `json:"force"`
	Peak      float64 `json:"peak"`
	Samples   int     `json:"samples"`
	DataType  string  `json:"data_type"`
	Timestamp int64   `json:"ts"` // unix milliseconds
}

// NewMessage builds the payload for kick.
func NewMessage(kick analytics.KickEvent) Message {
	m := Message{
		Count:     kick.Count,
		Force:     kick.Force,
		Peak:      kick.Peak,
		Timestamp: kick.Timestamp.UnixMilli(),
	}
	if kick.Result != nil {
		m.Samples = kick.Result.Samples
		m.DataType = kick.Result.DataType.String()
	}
	return m
}

// Client is the part of the paho client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends kick messages to a topic.
type Publisher struct {
	client Client
	topic  string
}

// Connect dials the broker and returns a publisher for opts.Topic.
func Connect(opts Options) (*Publisher, error) {
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, token.Error())
	}
	logger.WithField("broker", opts.Broker).Info("Connected to MQTT")
	return NewPublisher(client, opts.Topic), nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish sends one kick. It blocks until the broker acknowledges.
func (p *Publisher) Publish(kick analytics.KickEvent) error {
	payload, err := json.Marshal(NewMessage(kick))
	if err != nil {
		return err
	}
	if token := p.client.Publish(p.topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt publish %s: %w", p.topic, token.Error())
	}
	return nil
}

// HandleKick publishes kick and logs failures. It fits
// analytics.KickHandler.
func (p *Publisher) HandleKick(kick analytics.KickEvent) {
	if err := p.Publish(kick); err != nil {
		logger.WithError(err).WithField("count", kick.Count).Warn("Kick not published")
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
