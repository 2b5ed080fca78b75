package gcp

import (
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"pubsub2inbox/internal/common/validation"
)

// Config describes a Pub/Sub connection. TopicID is used by publishers,
// SubscriptionID by subscribers; either may be a bare ID or a full
// projects/<project>/... resource name.
type Config struct {
	ProjectID              string
	CredentialsJSON        string // optional, Application Default Credentials otherwise
	CredentialsPath        string
	TopicID                string
	SubscriptionID         string
	MaxOutstandingMessages int
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("GCP Pub/Sub config")

	if c.TopicID == "" && c.SubscriptionID == "" {
		v.Validate(func() error {
			return fmt.Errorf("either topic or subscription is required")
		})
	}

	if c.TopicID != "" {
		project, _ := splitResource(c.TopicID, "topics")
		if project == "" && c.ProjectID == "" {
			v.RequireString(c.ProjectID, "project_id")
		}
	}
	if c.SubscriptionID != "" {
		project, _ := splitResource(c.SubscriptionID, "subscriptions")
		if project == "" && c.ProjectID == "" {
			v.RequireString(c.ProjectID, "project_id")
		}
	}

	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = 10
	}
	v.RequireRange(c.MaxOutstandingMessages, 1, 1000, "max_outstanding_messages")

	return v.Error()
}

func (c *Config) GetType() string {
	return "gcp"
}

// Topic returns the project and topic ID to publish to
func (c *Config) Topic() (project, id string) {
	return c.resolve(c.TopicID, "topics")
}

// Subscription returns the project and subscription ID to pull from
func (c *Config) Subscription() (project, id string) {
	return c.resolve(c.SubscriptionID, "subscriptions")
}

func (c *Config) resolve(name, collection string) (string, string) {
	project, id := splitResource(name, collection)
	if project == "" {
		project = c.ProjectID
	}
	return project, id
}

// ClientOptions returns the credential options for the client
func (c *Config) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	} else if c.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsPath))
	}
	return opts
}

// splitResource splits projects/<p>/<collection>/<id>; a bare ID has no project
func splitResource(name, collection string) (project, id string) {
	parts := strings.Split(name, "/")
	if len(parts) == 4 && parts[0] == "projects" && parts[2] == collection {
		return parts[1], parts[3]
	}
	return "", name
}
