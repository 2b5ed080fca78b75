package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/config"
	"pubsub2inbox/internal/event"
	"pubsub2inbox/internal/pipeline"
	"pubsub2inbox/internal/pipeline/core"
)

// Version is reported by --version
var Version = "2.0.0"

type rootFlags struct {
	config  string
	envFile string
}

// NewRootCommand builds the pubsub2inbox command tree
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "pubsub2inbox",
		Short:         "Turn Pub/Sub messages into mail, webhooks and other deliveries",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "pipeline definition file (overrides CONFIG)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "load environment variables from this file instead of ./.env")

	root.AddCommand(
		newServeCommand(flags),
		newRunCommand(flags),
		newValidateCommand(flags),
	)
	return root
}

// Execute runs the command line with SIGINT and SIGTERM cancelling the
// context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.MustSync()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads and validates the environment and sets up logging
func loadConfig(flags *rootFlags) (*config.Config, error) {
	var cfg *config.Config
	if flags.envFile != "" {
		var err error
		if cfg, err = config.LoadFile(flags.envFile); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}
	if flags.config != "" {
		cfg.ConfigPath = flags.config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logging.InitGlobalLogger(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept push deliveries over HTTP and pull from PUBSUB_SUBSCRIPTION when set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := New(cfg)
			if err != nil {
				return err
			}
			logging.Info("Starting pubsub2inbox",
				logging.String("version", Version),
				logging.String("addr", cfg.Addr()),
				logging.String("subscription", cfg.Subscription),
			)
			return app.Serve(cmd.Context())
		},
	}
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	var eventFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a single event read from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := New(cfg)
			if err != nil {
				return err
			}
			ev, err := event.FromFile(eventFile)
			if err != nil {
				return err
			}

			result, err := app.Process(cmd.Context(), ev)
			printResult(cmd.OutOrStdout(), result)
			return err
		},
	}
	cmd.Flags().StringVar(&eventFile, "event", "", "event document with data (base64) or text, attributes and messageId")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the pipeline definition and its templates without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			engine, err := pipeline.LoadFile(cfg.ConfigPath, pipeline.Options{})
			if err != nil {
				return err
			}
			if err := engine.CheckTemplates(); err != nil {
				return err
			}

			def := engine.Definition()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d processors, %d outputs\n", cfg.ConfigPath, len(def.Processors), len(def.Outputs))
			return nil
		},
	}
}

func printResult(w io.Writer, result *core.Result) {
	if result == nil {
		return
	}
	for _, stage := range result.Stages {
		line := fmt.Sprintf("%-40s %-9s %s", core.StageName(stage.Kind, stage.Index, stage.Type), stage.Status, stage.Duration)
		if stage.Output != "" {
			line += " -> " + stage.Output
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "run %s %s in %s\n", result.RunID, result.Status, result.Duration)
}
