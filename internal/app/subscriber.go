package app

import (
	"context"

	"cloud.google.com/go/pubsub"
	"golang.org/x/sync/errgroup"

	"pubsub2inbox/internal/brokers/gcp"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/event"
	"pubsub2inbox/internal/server"
)

// Subscribe pulls from the configured subscription until ctx is done.
// Successful and permanently failing events are acknowledged, anything else
// is nacked for redelivery.
func (app *App) Subscribe(ctx context.Context) error {
	if app.Config.Subscription == "" {
		return errors.NotConfiguredError("PUBSUB_SUBSCRIPTION")
	}

	sub, err := gcp.NewSubscriber(ctx, &gcp.Config{
		ProjectID:              app.Config.Project,
		SubscriptionID:         app.Config.Subscription,
		MaxOutstandingMessages: app.Config.MaxOutstandingMessage,
	}, app.pubsubOptions...)
	if err != nil {
		return err
	}
	defer sub.Close()

	app.Logger.Info("Pulling messages", logging.String("subscription", sub.Subscription()))
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) error {
		return app.deliver(ctx, event.FromPubSubMessage(msg, sub.Subscription()))
	})
}

// Serve runs the HTTP server and, when a subscription is configured, the
// pull subscriber. It returns when ctx is done or either of them fails.
func (app *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(app.Router(), app.Config.Addr(), app.Logger)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if app.Config.Subscription != "" {
		g.Go(func() error {
			return app.Subscribe(ctx)
		})
	}

	return g.Wait()
}
