package mqtt

import (
	"context"
	"encoding/json"

	"github.com/tphakala/leafscan/internal/detection"
	"github.com/tphakala/leafscan/internal/errors"
)

// Publisher sends detection events as JSON to one topic. It implements
// detection.Publisher.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher returns a publisher for topic.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish marshals ev and sends it.
func (p *Publisher) Publish(ctx context.Context, ev detection.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_event").
			Build()
	}
	return p.client.Publish(ctx, p.topic, payload)
}
