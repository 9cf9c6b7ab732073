package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// mqttPublisher is the part of mqtt.Client the sink needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// MQTTSink publishes each Reading as JSON. "{session}" in the topic is
// replaced with the run's session id.
type MQTTSink struct {
	client   mqttPublisher
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
}

func NewMQTTSink(client mqttPublisher, cfg MQTTConfig, session string) *MQTTSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTSink{
		client:   client,
		topic:    strings.ReplaceAll(cfg.Topic, "{session}", session),
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  timeout,
	}
}

// ConnectMQTT opens a paho client with auto-reconnect enabled.
func ConnectMQTT(cfg MQTTConfig, session string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "enviro-" + session
	}
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return NewMQTTSink(client, cfg, session), nil
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Topic() string { return m.topic }

func (m *MQTTSink) Append(ctx context.Context, r domain.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	token := m.client.Publish(m.topic, m.qos, m.retained, payload)
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errPublishTimeout
	}
	return token.Error()
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}

var _ ports.Sink = (*MQTTSink)(nil)
