// Package brokers defines the publishing contract shared by the message
// broker outputs. Each broker package opens a Publisher for one delivery and
// closes it again before the output returns.
package brokers

import (
	"context"
	"time"

	"pubsub2inbox/internal/common/errors"
)

// Publisher delivers messages to a single broker connection
type Publisher interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	Close() error
}

// BrokerConfig is implemented by every broker configuration
type BrokerConfig interface {
	Validate() error
	GetType() string
}

// Message is a broker-neutral outgoing message. Which fields matter depends
// on the broker: Topic names the Pub/Sub or Kafka topic, the SNS topic ARN,
// the SQS queue URL, the RabbitMQ queue or the Redis key.
type Message struct {
	Topic       string
	Exchange    string
	RoutingKey  string
	Key         string
	Headers     map[string]string
	Body        []byte
	ContentType string
	Subject     string
	TTL         time.Duration
}

// PublishOnce publishes message on p and closes it. A close failure is only
// reported when publishing itself succeeded.
func PublishOnce(ctx context.Context, p Publisher, message *Message) error {
	if message == nil {
		_ = p.Close()
		return errors.ValidationError("message is required")
	}

	err := p.Publish(ctx, message)
	closeErr := p.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return errors.ConnectionError("failed to close "+p.Name()+" publisher", closeErr)
	}
	return nil
}
