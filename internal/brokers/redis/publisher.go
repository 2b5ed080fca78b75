// Package redis delivers messages to Redis as a channel publish, a string
// value or a list entry.
package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// Publisher runs one command per message on its own client
type Publisher struct {
	config *Config
	client *redis.Client
	logger logging.Logger
}

func NewPublisher(config *Config) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		PoolSize:     1,
	})

	return &Publisher{
		config: config,
		client: client,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "redis_publisher"),
			logging.String("address", config.Address),
		),
	}, nil
}

func (p *Publisher) Name() string {
	return "redis"
}

// Publish sends Body to the channel or key named by Message.Topic. For set
// and rpush a positive TTL expires the key.
func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	key := message.Topic
	if key == "" {
		return errors.NotConfiguredError("key")
	}

	var err error
	switch p.config.Command {
	case CommandSet:
		err = p.client.Set(ctx, key, message.Body, message.TTL).Err()
	case CommandRPush:
		_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, message.Body)
			if message.TTL > 0 {
				pipe.Expire(ctx, key, message.TTL)
			}
			return nil
		})
	default:
		err = p.client.Publish(ctx, key, message.Body).Err()
	}
	if err != nil {
		return errors.ConnectionError("redis "+p.config.Command+" failed", err).
			WithContext("key", key)
	}

	p.logger.Debug("Delivered message",
		logging.String("command", p.config.Command),
		logging.String("key", key),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
