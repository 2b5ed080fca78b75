// Package gcp provides the Google Cloud Pub/Sub publisher used by the pubsub
// output and the pull subscriber that feeds events into the pipeline.
package gcp

import (
	"context"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// Publisher publishes to one Pub/Sub topic
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger logging.Logger
}

// NewPublisher validates config and connects a client for its topic. Extra
// options are appended after the credential options.
func NewPublisher(ctx context.Context, config *Config, extra ...option.ClientOption) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.TopicID == "" {
		return nil, errors.NotConfiguredError("topic")
	}

	project, topicID := config.Topic()
	opts := append(config.ClientOptions(), extra...)

	client, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	return &Publisher{
		client: client,
		topic:  client.Topic(topicID),
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "pubsub_publisher"),
			logging.String("topic", topicID),
		),
	}, nil
}

func (p *Publisher) Name() string {
	return "gcp"
}

// Publish sends the message body with its headers as attributes and waits
// for the server to assign an ID. Message.Topic is ignored, the topic is
// fixed when the publisher is created.
func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       message.Body,
		Attributes: message.Headers,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return errors.ConnectionError("failed to publish to Pub/Sub", err).
			WithContext("topic", p.topic.ID())
	}

	p.logger.Debug("Published message", logging.String("message_id", id))
	return nil
}

// Close flushes pending messages and closes the client
func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
