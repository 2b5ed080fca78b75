package kafka

import (
	"strings"
	"time"

	"pubsub2inbox/internal/common/validation"
)

type Config struct {
	Brokers      []string
	Topic        string
	RequiredAcks int // -1 waits for all replicas, 1 (default) for the leader
	WriteTimeout time.Duration
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("Kafka config")

	v.RequireStrings(c.Brokers, "brokers")
	v.RequireString(c.Topic, "topic")

	if c.RequiredAcks == 0 {
		c.RequiredAcks = 1
	}
	v.RequireRange(c.RequiredAcks, -1, 1, "required_acks")

	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}

	return v.Error()
}

func (c *Config) GetType() string {
	return "kafka"
}

func (c *Config) GetConnectionString() string {
	return "kafka://" + strings.Join(c.Brokers, ",") + "/" + c.Topic
}
