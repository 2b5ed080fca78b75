package stages

import (
	"context"
	"net/url"
	"strings"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/brokers/aws"
	"pubsub2inbox/internal/brokers/gcp"
	"pubsub2inbox/internal/brokers/kafka"
	"pubsub2inbox/internal/brokers/rabbitmq"
	"pubsub2inbox/internal/brokers/redis"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/pipeline/core"
)

// PubSubOutput publishes a message to a Pub/Sub topic
type PubSubOutput struct {
	deps *Dependencies
}

func NewPubSubOutput(deps *Dependencies) *PubSubOutput {
	return &PubSubOutput{deps: deps}
}

func (o *PubSubOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("topic", "message"); err != nil {
		return err
	}
	topic, err := sc.ExpandString("topic")
	if err != nil {
		return err
	}
	project, err := sc.ExpandStringDefault("project", o.deps.Project)
	if err != nil {
		return err
	}
	body, err := expandPayload(sc, "message")
	if err != nil {
		return err
	}
	attributes, err := sc.ExpandStringMap("attributes")
	if err != nil {
		return err
	}

	publisher, err := gcp.NewPublisher(ctx, &gcp.Config{ProjectID: project, TopicID: topic}, o.deps.PubSubOptions...)
	if err != nil {
		return err
	}
	if err := brokers.PublishOnce(ctx, publisher, &brokers.Message{Body: body, Headers: attributes}); err != nil {
		return err
	}

	sc.Logger.Info("Message published", logging.String("topic", topic))
	return nil
}

// RedisOutput runs publish, set or rpush against a Redis server
type RedisOutput struct{}

func (o *RedisOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("address", "key", "value"); err != nil {
		return err
	}

	config := &redis.Config{}
	var err error
	if config.Address, err = sc.ExpandString("address"); err != nil {
		return err
	}
	if config.Password, err = sc.ExpandString("password"); err != nil {
		return err
	}
	if config.Command, err = sc.ExpandStringDefault("command", redis.CommandPublish); err != nil {
		return err
	}
	config.Command = strings.ToLower(config.Command)
	if sc.Has("db") {
		if err := sc.Decode("db", &config.DB); err != nil {
			return err
		}
	}

	key, err := sc.ExpandString("key")
	if err != nil {
		return err
	}
	value, err := expandPayload(sc, "value")
	if err != nil {
		return err
	}
	ttl, err := expandDuration(sc, "ttl")
	if err != nil {
		return err
	}

	publisher, err := redis.NewPublisher(config)
	if err != nil {
		return err
	}
	if err := brokers.PublishOnce(ctx, publisher, &brokers.Message{Topic: key, Body: value, TTL: ttl}); err != nil {
		return err
	}

	sc.Logger.Info("Redis command sent",
		logging.String("command", config.Command),
		logging.String("key", key),
	)
	return nil
}

// RabbitMQOutput publishes to an AMQP exchange or queue
type RabbitMQOutput struct {
	deps *Dependencies
}

func NewRabbitMQOutput(deps *Dependencies) *RabbitMQOutput {
	return &RabbitMQOutput{deps: deps}
}

func (o *RabbitMQOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("url", "body"); err != nil {
		return err
	}

	config := &rabbitmq.Config{}
	var err error
	if config.URL, err = sc.ExpandString("url"); err != nil {
		return err
	}
	if config.Exchange, err = sc.ExpandString("exchange"); err != nil {
		return err
	}
	if config.RoutingKey, err = sc.ExpandString("routingKey"); err != nil {
		return err
	}
	if config.Queue, err = sc.ExpandString("queue"); err != nil {
		return err
	}
	if config.DeclareQueue, err = sc.ExpandBool("declareQueue", false); err != nil {
		return err
	}

	contentType, err := sc.ExpandString("contentType")
	if err != nil {
		return err
	}
	headers, err := sc.ExpandStringMap("headers")
	if err != nil {
		return err
	}
	body, err := expandPayload(sc, "body")
	if err != nil {
		return err
	}
	ttl, err := expandDuration(sc, "ttl")
	if err != nil {
		return err
	}

	publisher, err := rabbitmq.NewPublisher(config, o.deps.RabbitMQDialer)
	if err != nil {
		return err
	}
	err = brokers.PublishOnce(ctx, publisher, &brokers.Message{
		Body:        body,
		ContentType: contentType,
		Headers:     headers,
		TTL:         ttl,
	})
	if err != nil {
		return err
	}

	sc.Logger.Info("Message published",
		logging.String("broker", config.GetConnectionString()),
		logging.String("routing_key", config.Key()),
	)
	return nil
}

// KafkaOutput writes one record to a Kafka topic
type KafkaOutput struct {
	deps *Dependencies
}

func NewKafkaOutput(deps *Dependencies) *KafkaOutput {
	return &KafkaOutput{deps: deps}
}

func (o *KafkaOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("brokers", "topic", "value"); err != nil {
		return err
	}

	config := &kafka.Config{}
	var err error
	if config.Brokers, err = sc.ExpandStringList("brokers"); err != nil {
		return err
	}
	if config.Topic, err = sc.ExpandString("topic"); err != nil {
		return err
	}
	key, err := sc.ExpandString("key")
	if err != nil {
		return err
	}
	headers, err := sc.ExpandStringMap("headers")
	if err != nil {
		return err
	}
	value, err := expandPayload(sc, "value")
	if err != nil {
		return err
	}

	var writer kafka.Writer
	if o.deps.KafkaWriter != nil {
		writer = o.deps.KafkaWriter(config)
	}
	publisher, err := kafka.NewPublisher(config, writer)
	if err != nil {
		return err
	}
	if err := brokers.PublishOnce(ctx, publisher, &brokers.Message{Key: key, Body: value, Headers: headers}); err != nil {
		return err
	}

	sc.Logger.Info("Record written", logging.String("topic", config.Topic))
	return nil
}

// SNSOutput publishes a notification to an SNS topic
type SNSOutput struct {
	deps *Dependencies
}

func NewSNSOutput(deps *Dependencies) *SNSOutput {
	return &SNSOutput{deps: deps}
}

func (o *SNSOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("topicArn", "message"); err != nil {
		return err
	}

	topicArn, err := sc.ExpandString("topicArn")
	if err != nil {
		return err
	}
	region, err := sc.ExpandStringDefault("region", regionFromARN(topicArn))
	if err != nil {
		return err
	}
	subject, err := sc.ExpandString("subject")
	if err != nil {
		return err
	}
	attributes, err := sc.ExpandStringMap("attributes")
	if err != nil {
		return err
	}
	message, err := expandPayload(sc, "message")
	if err != nil {
		return err
	}

	publisher, err := aws.NewSNSPublisher(ctx, &aws.Config{Region: region, TopicArn: topicArn}, o.deps.SNSClient)
	if err != nil {
		return err
	}
	return brokers.PublishOnce(ctx, publisher, &brokers.Message{Body: message, Subject: subject, Headers: attributes})
}

// SQSOutput sends a message to an SQS queue
type SQSOutput struct {
	deps *Dependencies
}

func NewSQSOutput(deps *Dependencies) *SQSOutput {
	return &SQSOutput{deps: deps}
}

func (o *SQSOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("queueUrl", "body"); err != nil {
		return err
	}

	queueURL, err := sc.ExpandString("queueUrl")
	if err != nil {
		return err
	}
	region, err := sc.ExpandStringDefault("region", regionFromQueueURL(queueURL))
	if err != nil {
		return err
	}
	groupID, err := sc.ExpandString("messageGroupId")
	if err != nil {
		return err
	}
	attributes, err := sc.ExpandStringMap("attributes")
	if err != nil {
		return err
	}
	body, err := expandPayload(sc, "body")
	if err != nil {
		return err
	}

	publisher, err := aws.NewSQSPublisher(ctx, &aws.Config{Region: region, QueueURL: queueURL}, o.deps.SQSClient)
	if err != nil {
		return err
	}
	return brokers.PublishOnce(ctx, publisher, &brokers.Message{Key: groupID, Body: body, Headers: attributes})
}

// regionFromARN returns the region of arn:aws:sns:<region>:<account>:<name>
func regionFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) >= 6 && parts[0] == "arn" {
		return parts[3]
	}
	return ""
}

// regionFromQueueURL returns the region of https://sqs.<region>.amazonaws.com/...
func regionFromQueueURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Hostname(), ".")
	if len(parts) >= 4 && parts[0] == "sqs" {
		return parts[1]
	}
	return ""
}
