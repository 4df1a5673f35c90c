// client.go: paho-backed implementation of the MQTT client interface.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/logging"
	"github.com/third-eye-sec/thirdeye/internal/telemetry"
)

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  pahomqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	subscriptions   map[string]MessageHandler
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	metrics         *telemetry.Metrics
}

// NewClient creates a new MQTT client from the heartbeat transport settings.
func NewClient(settings *conf.Settings, metrics *telemetry.Metrics) Client {
	config := DefaultConfig()
	config.Broker = settings.Heartbeat.Broker
	config.ClientID = settings.Main.Name
	config.Username = settings.Heartbeat.Username
	config.Password = settings.Heartbeat.Password

	return &client{
		config:        config,
		subscriptions: make(map[string]MessageHandler),
		reconnectStop: make(chan struct{}),
		metrics:       metrics,
	}
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		// Not an IP address, resolve it first for a clearer error
		if _, err = net.DefaultResolver.LookupHost(ctx, host); err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				return dnsErr
			}
			return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
		}
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)

	c.internalClient = pahomqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	c.metrics.UpdateMQTTConnectionStatus(true)
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	token := c.internalClient.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	return token.Error()
}

// Subscribe registers a handler for the given topic. Subscriptions are
// replayed on reconnect by the onConnect handler.
func (c *client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	connected := c.IsConnected()
	c.mu.Unlock()

	if !connected {
		return fmt.Errorf("not connected to MQTT broker")
	}
	return c.subscribe(topic, handler)
}

func (c *client) subscribe(topic string, handler MessageHandler) error {
	token := c.internalClient.Subscribe(topic, 0, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	return token.Error()
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
		c.metrics.UpdateMQTTConnectionStatus(false)
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	close(c.reconnectStop)
}

func (c *client) onConnect(_ pahomqtt.Client) {
	logging.Info("connected to MQTT broker", "broker", c.config.Broker)
	c.metrics.UpdateMQTTConnectionStatus(true)

	// re-establish subscriptions lost with the previous session
	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subs[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		if err := c.subscribe(topic, handler); err != nil {
			logging.Error("failed to resubscribe", "topic", topic, "error", err)
		}
	}
}

func (c *client) onConnectionLost(_ pahomqtt.Client, err error) {
	logging.Warn("connection to MQTT broker lost", "broker", c.config.Broker, "error", err)
	c.metrics.UpdateMQTTConnectionStatus(false)
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	maxBackoff := 5 * time.Minute

	for {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			logging.Info("successfully reconnected to MQTT broker", "broker", c.config.Broker)
			return
		}

		logging.Warn("failed to reconnect to MQTT broker", "broker", c.config.Broker,
			"error", err, "retry_in", backoff)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
