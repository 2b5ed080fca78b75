package redis

import (
	"time"

	"pubsub2inbox/internal/common/validation"
)

// Commands understood by the publisher
const (
	CommandPublish = "publish"
	CommandSet     = "set"
	CommandRPush   = "rpush"
)

type Config struct {
	Address  string
	Password string
	DB       int
	// Command is publish (default), set or rpush
	Command string
	Timeout time.Duration
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("Redis config")

	v.RequireString(c.Address, "address")

	if c.Command == "" {
		c.Command = CommandPublish
	}
	v.RequireOneOf(c.Command, []string{CommandPublish, CommandSet, CommandRPush}, "command")

	v.RequireRange(c.DB, 0, 15, "db")

	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}

	return v.Error()
}

func (c *Config) GetType() string {
	return "redis"
}

func (c *Config) GetConnectionString() string {
	return "redis://" + c.Address
}
