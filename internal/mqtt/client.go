package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/observability/metrics"
)

// ErrNotConnected is returned by Publish before Connect succeeds.
var ErrNotConnected = errors.NewStd("not connected to MQTT broker")

// client implements Client on top of paho. paho handles reconnects once
// the first connection succeeded.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a client. m may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics) (Client, error) {
	if cfg.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &client{config: cfg, metrics: m}, nil
}

// Connect resolves the broker hostname first so DNS problems are reported
// clearly instead of as a generic connect timeout.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return connectError(fmt.Errorf("connection attempt too recent, last attempt was %v ago", since), c.config.Broker)
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return connectError(fmt.Errorf("invalid broker URL: %w", err), c.config.Broker)
	}
	host := u.Hostname()
	if host == "" {
		return connectError(fmt.Errorf("broker URL %q has no host", c.config.Broker), c.config.Broker)
	}
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return connectError(fmt.Errorf("failed to resolve hostname %s: %w", host, err), c.config.Broker)
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = paho.NewClient(opts)
	token := c.internalClient.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return connectError(fmt.Errorf("connection timeout"), c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return connectError(fmt.Errorf("connection error: %w", err), c.config.Broker)
	}
	return nil
}

// Publish sends payload with QoS 0.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		c.observePublish(0, 0, ErrNotConnected)
		return ErrNotConnected
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		err := publishError(fmt.Errorf("publish timeout"), topic)
		c.observePublish(0, 0, err)
		return err
	}
	if err := token.Error(); err != nil {
		err = publishError(err, topic)
		c.observePublish(0, 0, err)
		return err
	}
	c.observePublish(len(payload), time.Since(start), nil)
	GetLogger().Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		if c.metrics != nil {
			c.metrics.UpdateConnectionStatus(false)
		}
	}
}

func (c *client) onConnect(paho.Client) {
	GetLogger().Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
	}
}

func (c *client) observePublish(size int, d time.Duration, err error) {
	if c.metrics != nil {
		c.metrics.ObservePublish(size, d, err)
	}
}

// waitToken waits for token until timeout or ctx is done.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func connectError(err error, broker string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnect).
		Context("broker", broker).
		Build()
}

func publishError(err error, topic string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}
