package integration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/abelzeko/flood-bot/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource receives sensor lines published to a broker topic. A payload
// may carry several lines.
type MQTTSource struct {
	broker     string
	topic      string
	opts       *mqtt.ClientOptions
	lines      chan string
	newBackOff func() backoff.BackOff
}

// NewMQTTSource creates a source subscribed to topic on broker (e.g. tcp://host:1883)
func NewMQTTSource(broker, topic, clientID, username, password string) *MQTTSource {
	m := &MQTTSource{
		broker:     broker,
		topic:      topic,
		lines:      make(chan string, 64),
		newBackOff: reconnectBackOff,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	// Subscriptions do not survive a clean-session reconnect, so subscribe on every connect.
	opts.SetOnConnectHandler(m.subscribe)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
		metrics.SourceReconnects.WithLabelValues("mqtt").Inc()
	})
	m.opts = opts

	return m
}

func (m *MQTTSource) subscribe(client mqtt.Client) {
	token := client.Subscribe(m.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		m.enqueue(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("Error subscribing to topic %s: %v", m.topic, token.Error())
		return
	}
	log.Printf("Subscribed to topic %s", m.topic)
}

func (m *MQTTSource) enqueue(payload []byte) {
	for _, line := range splitLines(string(payload)) {
		select {
		case m.lines <- line:
		default:
			log.Printf("Reading queue full, dropping line %q", line)
		}
	}
}

// Run connects with exponential backoff, then hands lines to handle one at
// a time until ctx is cancelled.
func (m *MQTTSource) Run(ctx context.Context, handle LineHandler) error {
	var client mqtt.Client
	operation := func() error {
		client = mqtt.NewClient(m.opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Printf("Failed to connect to MQTT broker %s: %v, retrying in %s", m.broker, err, next)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(m.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("could not establish MQTT connection: %w", err)
	}
	log.Printf("Connected to MQTT broker at %s", m.broker)
	defer func() {
		client.Unsubscribe(m.topic).Wait()
		client.Disconnect(250)
		log.Println("MQTT connection is closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-m.lines:
			handle(ctx, line)
		}
	}
}
