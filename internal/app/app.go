// Package app wires configuration, the pipeline engine and the transports
// (push endpoint, pull subscriber, event files) into the pubsub2inbox
// service.
package app

import (
	"context"

	"google.golang.org/api/option"

	"pubsub2inbox/internal/common/email"
	"pubsub2inbox/internal/common/errors"
	commonhttp "pubsub2inbox/internal/common/http"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/config"
	"pubsub2inbox/internal/event"
	"pubsub2inbox/internal/gcs"
	"pubsub2inbox/internal/pipeline"
	"pubsub2inbox/internal/pipeline/core"
	"pubsub2inbox/internal/pipeline/metrics"
	"pubsub2inbox/internal/pipeline/stages"
)

// App holds all the application dependencies
type App struct {
	Config  *config.Config
	Engine  *pipeline.Engine
	Metrics *metrics.Observer
	Logger  logging.Logger

	deps          *stages.Dependencies
	pubsubOptions []option.ClientOption
}

// Option customizes an App
type Option func(*App)

// WithDependencies replaces the clients built from the configuration
func WithDependencies(deps *stages.Dependencies) Option {
	return func(app *App) {
		app.deps = deps
	}
}

// WithPubSubOptions adds client options for the pull subscriber and the
// pubsub output, e.g. to point them at an emulator
func WithPubSubOptions(opts ...option.ClientOption) Option {
	return func(app *App) {
		app.pubsubOptions = append(app.pubsubOptions, opts...)
	}
}

// WithLogger overrides the global logger
func WithLogger(logger logging.Logger) Option {
	return func(app *App) {
		app.Logger = logger
	}
}

// New loads the pipeline named by cfg and builds everything needed to run it
func New(cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		Logger:  logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.Logger = app.Logger.WithFields(logging.String("component", "app"))

	if app.deps == nil {
		app.deps = defaultDependencies(cfg, app.Logger)
	}
	if len(app.pubsubOptions) > 0 {
		app.deps.PubSubOptions = append(app.deps.PubSubOptions, app.pubsubOptions...)
	}

	engine, err := pipeline.LoadFile(cfg.ConfigPath, pipeline.Options{
		Dependencies: app.deps,
		Observer:     app.Metrics,
		Logger:       app.Logger,
	})
	if err != nil {
		return nil, err
	}
	app.Engine = engine

	def := engine.Definition()
	app.Logger.Info("Pipeline loaded",
		logging.String("config", cfg.ConfigPath),
		logging.Int("processors", len(def.Processors)),
		logging.Int("outputs", len(def.Outputs)),
	)
	return app, nil
}

func defaultDependencies(cfg *config.Config, logger logging.Logger) *stages.Dependencies {
	httpClient := commonhttp.NewHTTPClient(commonhttp.WithTimeout(cfg.HTTPTimeout))
	return &stages.Dependencies{
		Logger:       logger,
		HTTPClient:   httpClient,
		Mail:         email.NewService(email.NewSMTPSender(cfg.SMTP()), cfg.SMTPFrom, logger),
		Storage:      gcs.NewClientOpener(gcs.Config{}),
		GoogleClient: stages.DefaultGoogleClient(httpClient),
		Project:      cfg.Project,
	}
}

// Process runs the pipeline for ev and logs the outcome
func (app *App) Process(ctx context.Context, ev *event.Event) (*core.Result, error) {
	return app.Engine.Process(ctx, ev)
}

// deliver runs the pipeline on behalf of a transport. Permanent failures
// are logged and reported as nil so the transport acknowledges them.
func (app *App) deliver(ctx context.Context, ev *event.Event) error {
	_, err := app.Process(ctx, ev)
	if err == nil {
		return nil
	}
	if errors.IsPermanent(err) {
		app.Logger.Warn("Dropping event after permanent failure",
			logging.String("message_id", ev.ID),
			logging.String("error_type", string(errors.GetType(err))),
			logging.Err(err),
		)
		return nil
	}
	return err
}
