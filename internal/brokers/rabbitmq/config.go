package rabbitmq

import (
	"fmt"
	"net/url"

	"pubsub2inbox/internal/common/validation"
)

type Config struct {
	URL        string `json:"url" validate:"required,url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
	Queue      string `json:"queue"`
	// DeclareQueue declares Queue as durable before publishing
	DeclareQueue bool `json:"declare_queue"`
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	v := validation.NewValidatorWithPrefix("RabbitMQ config")
	v.RequireURL(c.URL, "url", "amqp", "amqps")
	v.ValidateIf(c.Exchange == "" && c.RoutingKey == "" && c.Queue == "", func() error {
		return fmt.Errorf("a routing key or queue is required for the default exchange")
	})
	return v.Error()
}

func (c *Config) GetType() string {
	return "rabbitmq"
}

// GetConnectionString returns the broker address without credentials
func (c *Config) GetConnectionString() string {
	if parsedURL, err := url.Parse(c.URL); err == nil {
		return fmt.Sprintf("rabbitmq://%s", parsedURL.Host)
	}
	return "rabbitmq://***"
}

// Key returns the routing key, falling back to the queue name
func (c *Config) Key() string {
	if c.RoutingKey != "" {
		return c.RoutingKey
	}
	return c.Queue
}
