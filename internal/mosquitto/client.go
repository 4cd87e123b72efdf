package mosquitto

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"bvstrack/internal/metrics"
	"bvstrack/internal/position"
)

type Config struct {
	Broker   string
	ClientId string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
	// ConnectTimeout bounds the wait for the broker. Zero means 60s.
	ConnectTimeout time.Duration
}

const (
	broker_connection_limit = 60 * time.Second
	publish_limit           = 5 * time.Second
	disconnect_quiesce_ms   = 250
)

// publisher is the part of mqtt.Client the publisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Client publishes fixes to an MQTT topic. It satisfies recorder.Sink.
type Client struct {
	client   publisher
	topic    string
	qos      byte
	retained bool
	runID    string
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewClient(cfg Config, runID string, m *metrics.Metrics, log *slog.Logger) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientId)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectRetry(true)

	client := mqtt.NewClient(opts)

	limit := cfg.ConnectTimeout
	if limit <= 0 {
		limit = broker_connection_limit
	}
	token := client.Connect()
	if !token.WaitTimeout(limit) {
		client.Disconnect(0)
		return nil, fmt.Errorf("broker %s: connection timed out after %s", cfg.Broker, limit)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.Broker, err)
	}
	log.Info("connected to broker", slog.String("broker", cfg.Broker), slog.String("topic", cfg.Topic))

	return newClient(client, cfg, runID, m, log), nil
}

func newClient(p publisher, cfg Config, runID string, m *metrics.Metrics, log *slog.Logger) *Client {
	return &Client{
		client:   p,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		runID:    runID,
		metrics:  m,
		log:      log,
	}
}

// Record publishes one fix and waits for the broker to take it.
func (c *Client) Record(fix position.ResolvedFix) error {
	payload, err := EncodeFix(c.runID, fix)
	if err != nil {
		return err
	}
	token := c.client.Publish(c.topic, c.qos, c.retained, payload)
	switch {
	case !token.WaitTimeout(publish_limit):
		err = fmt.Errorf("publish %s: timed out", c.topic)
	case token.Error() != nil:
		err = fmt.Errorf("publish %s: %w", c.topic, token.Error())
	}
	c.metrics.ObservePublish(err)
	if err != nil {
		return err
	}
	c.log.Debug("published fix", slog.String("topic", c.topic), slog.String("time", fix.Time))
	return nil
}

func (c *Client) Close() {
	c.client.Disconnect(disconnect_quiesce_ms)
}
