// Package aws publishes messages to SNS topics and SQS queues.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// SNSAPI is the part of *sns.Client the publisher uses
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SQSAPI is the part of *sqs.Client the publisher uses
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SNSPublisher publishes to one topic
type SNSPublisher struct {
	topicArn string
	client   SNSAPI
	logger   logging.Logger
}

// NewSNSPublisher validates config and builds a client, unless one is given
func NewSNSPublisher(ctx context.Context, config *Config, client SNSAPI) (*SNSPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.TopicArn == "" {
		return nil, errors.NotConfiguredError("topicArn")
	}
	if client == nil {
		cfg, err := config.Load(ctx)
		if err != nil {
			return nil, err
		}
		client = sns.NewFromConfig(cfg)
	}

	return &SNSPublisher{
		topicArn: config.TopicArn,
		client:   client,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "sns_publisher"),
			logging.String("topic_arn", config.TopicArn),
		),
	}, nil
}

func (p *SNSPublisher) Name() string {
	return "sns"
}

// Publish sends Body as the notification, Subject when set and Headers as
// string message attributes
func (p *SNSPublisher) Publish(ctx context.Context, message *brokers.Message) error {
	attributes := make(map[string]snsTypes.MessageAttributeValue, len(message.Headers))
	for key, value := range message.Headers {
		attributes[key] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(p.topicArn),
		Message:           aws.String(string(message.Body)),
		MessageAttributes: attributes,
	}
	if message.Subject != "" {
		input.Subject = aws.String(message.Subject)
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		return errors.ConnectionError("failed to publish message to SNS", err).
			WithContext("topic_arn", p.topicArn)
	}

	p.logger.Info("Message published to SNS", logging.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// Close is a no-op, SDK clients hold no connection state
func (p *SNSPublisher) Close() error {
	return nil
}

// SQSPublisher sends to one queue
type SQSPublisher struct {
	queueURL string
	client   SQSAPI
	logger   logging.Logger
}

// NewSQSPublisher validates config and builds a client, unless one is given
func NewSQSPublisher(ctx context.Context, config *Config, client SQSAPI) (*SQSPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.QueueURL == "" {
		return nil, errors.NotConfiguredError("queueUrl")
	}
	if client == nil {
		cfg, err := config.Load(ctx)
		if err != nil {
			return nil, err
		}
		client = sqs.NewFromConfig(cfg)
	}

	return &SQSPublisher{
		queueURL: config.QueueURL,
		client:   client,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "sqs_publisher"),
			logging.String("queue_url", config.QueueURL),
		),
	}, nil
}

func (p *SQSPublisher) Name() string {
	return "sqs"
}

// Publish sends Body with Headers as string message attributes. Key becomes
// the message group ID, which FIFO queues require.
func (p *SQSPublisher) Publish(ctx context.Context, message *brokers.Message) error {
	attributes := make(map[string]types.MessageAttributeValue, len(message.Headers))
	for key, value := range message.Headers {
		attributes[key] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: attributes,
	}
	if message.Key != "" {
		input.MessageGroupId = aws.String(message.Key)
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return errors.ConnectionError("failed to send message to SQS", err).
			WithContext("queue_url", p.queueURL)
	}

	p.logger.Info("Message sent to SQS", logging.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

func (p *SQSPublisher) Close() error {
	return nil
}
