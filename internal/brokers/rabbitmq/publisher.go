// Package rabbitmq publishes messages to an AMQP 0.9.1 broker.
package rabbitmq

import (
	"context"
	"strconv"
	"time"

	"github.com/streadway/amqp"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// Channel is the part of *amqp.Channel the publisher uses
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Close() error
}

// Dialer opens a channel and returns a function releasing its connection
type Dialer func(url string) (Channel, func() error, error)

// DialAMQP connects with amqp.Dial and opens one channel
func DialAMQP(url string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}
	return ch, conn.Close, nil
}

// Publisher publishes on a single channel
type Publisher struct {
	config    *Config
	channel   Channel
	closeConn func() error
	logger    logging.Logger
}

// NewPublisher validates config and dials it. A nil dialer uses DialAMQP.
func NewPublisher(config *Config, dial Dialer) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = DialAMQP
	}

	ch, closeConn, err := dial(config.URL)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		config:    config,
		channel:   ch,
		closeConn: closeConn,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "rabbitmq_publisher"),
			logging.String("broker", config.GetConnectionString()),
		),
	}

	if config.DeclareQueue && config.Queue != "" {
		if _, err := ch.QueueDeclare(config.Queue, true, false, false, false, nil); err != nil {
			_ = p.Close()
			return nil, errors.ConnectionError("failed to declare queue", err).WithContext("queue", config.Queue)
		}
	}

	return p, nil
}

func (p *Publisher) Name() string {
	return "rabbitmq"
}

// Publish sends the message persistently. Message.Exchange and
// Message.RoutingKey override the configured values when set.
func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exchange := p.config.Exchange
	if message.Exchange != "" {
		exchange = message.Exchange
	}
	key := p.config.Key()
	if message.RoutingKey != "" {
		key = message.RoutingKey
	}

	contentType := message.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	headers := amqp.Table{}
	for k, v := range message.Headers {
		headers[k] = v
	}

	publishing := amqp.Publishing{
		Headers:      headers,
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         message.Body,
	}
	if message.TTL > 0 {
		publishing.Expiration = formatExpiration(message.TTL)
	}

	if err := p.channel.Publish(exchange, key, false, false, publishing); err != nil {
		return errors.ConnectionError("failed to publish to RabbitMQ", err).
			WithContext("exchange", exchange).
			WithContext("routing_key", key)
	}

	p.logger.Debug("Published message",
		logging.String("exchange", exchange),
		logging.String("routing_key", key),
		logging.Int("bytes", len(message.Body)),
	)
	return nil
}

// Close closes the channel and then the connection
func (p *Publisher) Close() error {
	chErr := p.channel.Close()
	var connErr error
	if p.closeConn != nil {
		connErr = p.closeConn()
	}
	if chErr != nil {
		return chErr
	}
	return connErr
}

// formatExpiration renders a TTL as the millisecond string AMQP expects
func formatExpiration(ttl time.Duration) string {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
