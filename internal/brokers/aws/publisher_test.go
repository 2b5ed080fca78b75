package aws

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pubsub2inbox/internal/brokers"
	"pubsub2inbox/internal/common/errors"
)

type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(params)
	out, _ := args.Get(0).(*sqs.SendMessageOutput)
	return out, args.Error(1)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "sns", config: Config{Region: "eu-west-1", TopicArn: "arn:aws:sns:eu-west-1:123:alerts"}},
		{name: "sqs", config: Config{Region: "eu-west-1", QueueURL: "https://sqs.eu-west-1.amazonaws.com/123/inbox"}},
		{name: "no region", config: Config{TopicArn: "arn"}, wantErr: "region is required"},
		{name: "no target", config: Config{Region: "us-east-1"}, wantErr: "either QueueURL"},
		{name: "half credentials", config: Config{Region: "us-east-1", TopicArn: "arn", AccessKeyID: "AKIA"}, wantErr: "must be set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetType(t *testing.T) {
	assert.Equal(t, "sns", (&Config{TopicArn: "arn"}).GetType())
	assert.Equal(t, "sqs", (&Config{QueueURL: "https://q"}).GetType())
}

func TestSNSPublish(t *testing.T) {
	client := &mockSNS{}
	client.On("Publish", mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.TopicArn) == "arn:aws:sns:eu-west-1:123:alerts" &&
			aws.ToString(in.Message) == "disk full" &&
			aws.ToString(in.Subject) == "Alert" &&
			aws.ToString(in.MessageAttributes["severity"].StringValue) == "high"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil).Once()

	p, err := NewSNSPublisher(context.Background(), &Config{Region: "eu-west-1", TopicArn: "arn:aws:sns:eu-west-1:123:alerts"}, client)
	require.NoError(t, err)

	err = brokers.PublishOnce(context.Background(), p, &brokers.Message{
		Body:    []byte("disk full"),
		Subject: "Alert",
		Headers: map[string]string{"severity": "high"},
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSNSPublishError(t *testing.T) {
	client := &mockSNS{}
	client.On("Publish", mock.Anything).Return(nil, stderrors.New("throttled")).Once()

	p, err := NewSNSPublisher(context.Background(), &Config{Region: "eu-west-1", TopicArn: "arn"}, client)
	require.NoError(t, err)

	err = p.Publish(context.Background(), &brokers.Message{Body: []byte("x")})
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestSNSRequiresTopic(t *testing.T) {
	_, err := NewSNSPublisher(context.Background(), &Config{Region: "eu-west-1", QueueURL: "https://q.example.com/1"}, &mockSNS{})
	assert.True(t, errors.IsType(err, errors.ErrTypeNotConfigured))
}

func TestSQSPublish(t *testing.T) {
	client := &mockSQS{}
	client.On("SendMessage", mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		return aws.ToString(in.QueueUrl) == "https://sqs.eu-west-1.amazonaws.com/123/inbox.fifo" &&
			aws.ToString(in.MessageBody) == `{"a":1}` &&
			aws.ToString(in.MessageGroupId) == "group"
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("m-2")}, nil).Once()

	p, err := NewSQSPublisher(context.Background(), &Config{Region: "eu-west-1", QueueURL: "https://sqs.eu-west-1.amazonaws.com/123/inbox.fifo"}, client)
	require.NoError(t, err)
	assert.Equal(t, "sqs", p.Name())

	err = brokers.PublishOnce(context.Background(), p, &brokers.Message{Key: "group", Body: []byte(`{"a":1}`)})
	require.NoError(t, err)
	client.AssertExpectations(t)
}
