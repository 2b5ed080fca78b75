// Package kafka publishes messages to Kafka topics with segmentio/kafka-go.
package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// Writer is the part of *kafka.Writer the publisher uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes to one topic
type Publisher struct {
	config *Config
	writer Writer
	logger logging.Logger
}

// NewWriter builds the kafka-go writer for config
func NewWriter(config *Config) Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		WriteTimeout:           config.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher validates config and wraps writer, or a new kafka-go writer
// when writer is nil
func NewPublisher(config *Config, writer Writer) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if writer == nil {
		writer = NewWriter(config)
	}

	return &Publisher{
		config: config,
		writer: writer,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "kafka_publisher"),
			logging.String("topic", config.Topic),
		),
	}, nil
}

func (p *Publisher) Name() string {
	return "kafka"
}

// Publish writes one message synchronously. Messages with the same key land
// on the same partition.
func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	headers := make([]kafka.Header, 0, len(message.Headers))
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Value:   message.Body,
		Headers: headers,
	}
	if message.Key != "" {
		msg.Key = []byte(message.Key)
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.ConnectionError("failed to write to Kafka", err).
			WithContext("topic", p.config.Topic)
	}

	p.logger.Debug("Published message",
		logging.String("key", message.Key),
		logging.Int("bytes", len(message.Body)),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
