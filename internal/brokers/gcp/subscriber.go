package gcp

import (
	"context"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// Handler processes one pulled message. A nil return acknowledges it, an
// error asks Pub/Sub to redeliver.
type Handler func(ctx context.Context, msg *pubsub.Message) error

// Subscriber pulls messages from one subscription
type Subscriber struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	logger       logging.Logger
}

func NewSubscriber(ctx context.Context, config *Config, extra ...option.ClientOption) (*Subscriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.SubscriptionID == "" {
		return nil, errors.NotConfiguredError("subscription")
	}

	project, subID := config.Subscription()
	opts := append(config.ClientOptions(), extra...)

	client, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	sub := client.Subscription(subID)
	sub.ReceiveSettings.MaxOutstandingMessages = config.MaxOutstandingMessages

	return &Subscriber{
		client:       client,
		subscription: sub,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "pubsub_subscriber"),
			logging.String("subscription", subID),
		),
	}, nil
}

// Subscription returns the fully qualified subscription name
func (s *Subscriber) Subscription() string {
	return s.subscription.String()
}

// Receive blocks, dispatching messages to handler until ctx is cancelled
func (s *Subscriber) Receive(ctx context.Context, handler Handler) error {
	s.logger.Info("Starting Pub/Sub subscriber")

	err := s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, msg); err != nil {
			s.logger.Warn("Message will be redelivered",
				logging.String("message_id", msg.ID),
				logging.Err(err),
			)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return errors.ConnectionError("Pub/Sub receive failed", err)
	}

	s.logger.Info("Pub/Sub subscriber stopped")
	return nil
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}
