package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/validation"
)

// Config selects an SNS topic or an SQS queue. Static credentials are
// optional; without them the default AWS credential chain is used.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string // Optional for temporary credentials
	QueueURL        string // For SQS
	TopicArn        string // For SNS
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("AWS config")

	v.RequireString(c.Region, "region")

	if c.QueueURL == "" && c.TopicArn == "" {
		v.Validate(func() error {
			return fmt.Errorf("either QueueURL (for SQS) or TopicArn (for SNS) is required")
		})
	}
	if c.QueueURL != "" {
		v.RequireURL(c.QueueURL, "queue_url", "https", "http")
	}
	v.ValidateIf((c.AccessKeyID == "") != (c.SecretAccessKey == ""), func() error {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	})

	return v.Error()
}

func (c *Config) GetType() string {
	if c.TopicArn != "" {
		return "sns"
	}
	return "sqs"
}

// Load resolves the SDK configuration for c
func (c *Config) Load(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(c.Region),
	}
	if c.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.ConnectionError("failed to load AWS configuration", err)
	}
	return cfg, nil
}
