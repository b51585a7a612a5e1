package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"rinnai_gateway/internal/logger"
)

// Client is the broker surface the bridge publishes and subscribes through.
type Client interface {
	Publish(topic string, retained bool, payload string) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

const (
	qos               = 0
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
	keepAlive         = 15 * time.Second
	clientIDPrefix    = "rinnai-gateway-"
)

var errTokenTimeout = errors.New("mqtt: operation timed out")

// BrokerOptions locates and authenticates against the broker.
type BrokerOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	// ClientID defaults to a random rinnai-gateway-<uuid> id.
	ClientID string
	// WillTopic receives a retained "false" when the gateway drops off.
	WillTopic string
}

// PahoClient adapts a paho client to Client.
type PahoClient struct {
	client mqtt.Client
	log    *logger.Logger
}

// NewPahoClient builds a client; onConnect runs after every (re)connect, on
// a paho goroutine.
func NewPahoClient(o BrokerOptions, onConnect func(), log *logger.Logger) *PahoClient {
	log = logger.OrNop(log)
	opts := clientOptions(o)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infow("mqtt_connected", "host", o.Host, "port", o.Port)
		if onConnect != nil {
			onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "error", err)
	})
	return &PahoClient{client: mqtt.NewClient(opts), log: log}
}

func clientOptions(o BrokerOptions) *mqtt.ClientOptions {
	id := o.ClientID
	if id == "" {
		id = clientIDPrefix + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + o.Host + ":" + strconv.Itoa(o.Port))
	opts.SetClientID(id)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	// handlers block while a command is confirmed
	opts.SetOrderMatters(false)
	if o.WillTopic != "" {
		opts.SetWill(o.WillTopic, payloadOffline, qos, true)
	}
	return opts
}

// Connect starts the connection. With connect-retry enabled paho keeps
// trying in the background, so Connect only waits until ctx ends.
func (c *PahoClient) Connect(ctx context.Context) error {
	t := c.client.Connect()
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *PahoClient) Publish(topic string, retained bool, payload string) error {
	return wait(c.client.Publish(topic, qos, retained, payload), "publish "+topic)
}

func (c *PahoClient) Subscribe(topic string, handler func(string, []byte)) error {
	t := c.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	return wait(t, "subscribe "+topic)
}

func (c *PahoClient) Disconnect() {
	c.client.Disconnect(disconnectQuiesce)
}

func wait(t mqtt.Token, op string) error {
	if !t.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%s: %w", op, errTokenTimeout)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
