// Package mqtt publishes detection events to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/leafscan/internal/conf"
)

// Client defines the MQTT operations leafscan needs.
type Client interface {
	// Connect resolves the broker host and connects.
	Connect(ctx context.Context) error
	// Publish sends payload to topic and waits for the broker to accept it.
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool

	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable timeouts.
func DefaultConfig() Config {
	return Config{
		ClientID:          "leafscan",
		Topic:             "leafscan/detections",
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings applies settings on top of DefaultConfig.
func ConfigFromSettings(settings conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.Broker
	cfg.Username = settings.Username
	cfg.Password = settings.Password
	cfg.Retain = settings.Retain
	if settings.ClientID != "" {
		cfg.ClientID = settings.ClientID
	}
	if settings.Topic != "" {
		cfg.Topic = settings.Topic
	}
	return cfg
}
