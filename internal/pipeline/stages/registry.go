// Package stages holds the built-in processors and outputs and the
// registry that maps stage types to them.
package stages

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"

	"pubsub2inbox/internal/brokers/aws"
	"pubsub2inbox/internal/brokers/kafka"
	"pubsub2inbox/internal/brokers/rabbitmq"
	"pubsub2inbox/internal/common/email"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/common/registry"
	"pubsub2inbox/internal/gcs"
	"pubsub2inbox/internal/pipeline/core"
)

// UserAgent is sent with every outgoing API call
var UserAgent = "google-pso-tool/pubsub2inbox/2.0.0"

// Dependencies are the shared clients stages are built with. Nil fields fall
// back to production implementations where one exists.
type Dependencies struct {
	Logger     logging.Logger
	HTTPClient *http.Client
	Mail       *email.Service
	Storage    gcs.Opener
	// GoogleClient returns an authorized client and the credentials' project
	GoogleClient GoogleClientFunc
	// Project is the default Google Cloud project
	Project string

	PubSubOptions  []option.ClientOption
	RabbitMQDialer rabbitmq.Dialer
	KafkaWriter    func(*kafka.Config) kafka.Writer
	SNSClient      aws.SNSAPI
	SQSClient      aws.SQSAPI
}

func (d *Dependencies) logger() logging.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.GetGlobalLogger()
}

func (d *Dependencies) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d *Dependencies) googleClient(ctx context.Context) (*http.Client, string, error) {
	if d.GoogleClient != nil {
		return d.GoogleClient(ctx)
	}
	return DefaultGoogleClient(d.httpClient())(ctx)
}

// ProcessorFactory builds a processor of one type
type ProcessorFactory struct {
	Type string
	New  func(deps *Dependencies) core.Processor
}

func (f ProcessorFactory) GetType() string { return f.Type }

// OutputFactory builds an output of one type
type OutputFactory struct {
	Type string
	New  func(deps *Dependencies) core.Output
}

func (f OutputFactory) GetType() string { return f.Type }

// Registry resolves stage types for the executor and the loader
type Registry struct {
	processors *registry.Registry[ProcessorFactory]
	outputs    *registry.Registry[OutputFactory]
	deps       *Dependencies
}

// NewRegistry returns an empty registry whose stages are built with deps
func NewRegistry(deps *Dependencies) *Registry {
	if deps == nil {
		deps = &Dependencies{}
	}
	return &Registry{
		processors: registry.New[ProcessorFactory](),
		outputs:    registry.New[OutputFactory](),
		deps:       deps,
	}
}

// NewDefaultRegistry returns a registry with every built-in stage
func NewDefaultRegistry(deps *Dependencies) *Registry {
	r := NewRegistry(deps)

	r.RegisterProcessor("vertexgenai", func(d *Dependencies) core.Processor { return NewVertexGenAIProcessor(d) })
	r.RegisterProcessor("genericjson", func(d *Dependencies) core.Processor { return &GenericJSONProcessor{} })
	r.RegisterProcessor("setvariable", func(d *Dependencies) core.Processor { return &SetVariableProcessor{} })
	r.RegisterProcessor("http", func(d *Dependencies) core.Processor { return NewHTTPProcessor(d) })

	r.RegisterOutput("mail", func(d *Dependencies) core.Output { return NewMailOutput(d) })
	r.RegisterOutput("webhook", func(d *Dependencies) core.Output { return NewWebhookOutput(d) })
	r.RegisterOutput("gcs", func(d *Dependencies) core.Output { return NewGCSOutput(d) })
	r.RegisterOutput("logger", func(d *Dependencies) core.Output { return &LoggerOutput{} })
	r.RegisterOutput("pubsub", func(d *Dependencies) core.Output { return NewPubSubOutput(d) })
	r.RegisterOutput("redis", func(d *Dependencies) core.Output { return &RedisOutput{} })
	r.RegisterOutput("rabbitmq", func(d *Dependencies) core.Output { return NewRabbitMQOutput(d) })
	r.RegisterOutput("kafka", func(d *Dependencies) core.Output { return NewKafkaOutput(d) })
	r.RegisterOutput("sns", func(d *Dependencies) core.Output { return NewSNSOutput(d) })
	r.RegisterOutput("sqs", func(d *Dependencies) core.Output { return NewSQSOutput(d) })

	return r
}

// RegisterProcessor adds or replaces a processor type
func (r *Registry) RegisterProcessor(stageType string, build func(*Dependencies) core.Processor) {
	r.processors.Register(ProcessorFactory{Type: stageType, New: build})
}

// RegisterOutput adds or replaces an output type
func (r *Registry) RegisterOutput(stageType string, build func(*Dependencies) core.Output) {
	r.outputs.Register(OutputFactory{Type: stageType, New: build})
}

func (r *Registry) HasProcessor(stageType string) bool {
	return r.processors.Has(stageType)
}

func (r *Registry) HasOutput(stageType string) bool {
	return r.outputs.Has(stageType)
}

// Processor builds a fresh processor of stageType
func (r *Registry) Processor(stageType string) (core.Processor, error) {
	factory, err := r.processors.Get(stageType)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}
	return factory.New(r.deps), nil
}

// Output builds a fresh output of stageType
func (r *Registry) Output(stageType string) (core.Output, error) {
	factory, err := r.outputs.Get(stageType)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return factory.New(r.deps), nil
}

// ProcessorTypes lists the registered processor types, sorted
func (r *Registry) ProcessorTypes() []string {
	return r.processors.Types()
}

// OutputTypes lists the registered output types, sorted
func (r *Registry) OutputTypes() []string {
	return r.outputs.Types()
}

var _ core.Catalog = (*Registry)(nil)
