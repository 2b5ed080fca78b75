package core

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"

	"pubsub2inbox/internal/common/logging"
	pipelineerrors "pubsub2inbox/internal/pipeline/errors"
)

// Catalog resolves stage types to fresh stage instances
type Catalog interface {
	HasProcessor(stageType string) bool
	HasOutput(stageType string) bool
	Processor(stageType string) (Processor, error)
	Output(stageType string) (Output, error)
}

// Observer is told about every finished stage and run
type Observer interface {
	ObserveStage(kind Kind, stageType string, status Status, duration time.Duration)
	ObserveEvent(status Status, duration time.Duration)
}

// Executor runs a pipeline for one event: processors in order, then outputs
// in order, stopping at the first failure.
type Executor struct {
	catalog  Catalog
	observer Observer
}

// ExecutorOption customizes an Executor
type ExecutorOption func(*Executor)

// WithObserver reports stage and run outcomes to o
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		e.observer = o
	}
}

// NewExecutor creates a new pipeline executor
func NewExecutor(catalog Catalog, opts ...ExecutorOption) *Executor {
	e := &Executor{catalog: catalog}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the pipeline of env. The returned Result is always non-nil;
// on failure the error is a *StageError naming the failing stage and every
// stage after it is recorded as skipped.
func (e *Executor) Execute(ctx context.Context, env *Environment) (*Result, error) {
	start := time.Now()
	ns := env.NewRunNamespace()
	result := &Result{RunID: env.RunID}

	env.Logger.Info("Processing event",
		logging.Int("processors", len(env.Config.Processors)),
		logging.Int("outputs", len(env.Config.Outputs)),
	)

	var runErr error
	for _, kind := range []Kind{KindProcessor, KindOutput} {
		for i, def := range env.Config.Stages(kind) {
			if runErr != nil {
				result.Stages = append(result.Stages, StageResult{Kind: kind, Index: i, Type: def.Type, Status: StatusSkipped})
				continue
			}

			stageResult, err := e.runStage(ctx, env, kind, i, def, ns)
			result.Stages = append(result.Stages, stageResult)
			if err != nil {
				runErr = pipelineerrors.NewStageError(string(kind), i, def.Type, configSnippet(def.Config), err)
			}
		}
	}

	result.Namespace = ns.All()
	result.Duration = time.Since(start)
	result.Status = StatusSucceeded
	if runErr != nil {
		result.Status = StatusFailed
		env.Logger.Error("Event processing failed", runErr, logging.Duration("elapsed", result.Duration))
	} else {
		env.Logger.Info("Event processed", logging.Duration("elapsed", result.Duration))
	}
	if e.observer != nil {
		e.observer.ObserveEvent(result.Status, result.Duration)
	}

	return result, runErr
}

func (e *Executor) runStage(ctx context.Context, env *Environment, kind Kind, index int, def StageDefinition, ns *Namespace) (StageResult, error) {
	start := time.Now()
	sr := StageResult{Kind: kind, Index: index, Type: def.Type}

	err := e.dispatch(ctx, env, kind, index, def, ns, &sr)

	sr.Duration = time.Since(start)
	sr.Status = StatusSucceeded
	if err != nil {
		sr.Status = StatusFailed
		sr.Error = err
	}
	if e.observer != nil {
		e.observer.ObserveStage(kind, def.Type, sr.Status, sr.Duration)
	}
	return sr, err
}

func (e *Executor) dispatch(ctx context.Context, env *Environment, kind Kind, index int, def StageDefinition, ns *Namespace, sr *StageResult) error {
	if kind == KindOutput {
		output, err := e.catalog.Output(def.Type)
		if err != nil {
			return err
		}
		sc := NewStageContext(env, kind, index, def, ns)
		sc.Logger.Debug("Running output")
		return output.Output(ctx, sc)
	}

	processor, err := e.catalog.Processor(def.Type)
	if err != nil {
		return err
	}
	if def.Output == "" {
		def.Output = processor.DefaultOutput()
	}
	sr.Output = def.Output

	sc := NewStageContext(env, kind, index, def, ns)
	sc.Logger.Debug("Running processor", logging.String("output", def.Output))
	values, err := processor.Process(ctx, sc)
	if err != nil {
		return err
	}
	return ns.Merge(values)
}

func configSnippet(config map[string]interface{}) string {
	if len(config) == 0 {
		return ""
	}
	out, err := yaml.Marshal(config)
	if err != nil {
		return ""
	}
	return string(out)
}
