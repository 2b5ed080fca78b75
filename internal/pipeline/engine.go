// Package pipeline assembles the template engine, the function library, the
// stage registry and the executor around one loaded pipeline definition.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/common/templates"
	"pubsub2inbox/internal/common/validation"
	"pubsub2inbox/internal/event"
	"pubsub2inbox/internal/filters"
	"pubsub2inbox/internal/pipeline/core"
	"pubsub2inbox/internal/pipeline/expression"
	"pubsub2inbox/internal/pipeline/stages"
)

// Options configures an Engine. Every field is optional.
type Options struct {
	// Dependencies are handed to every processor and output
	Dependencies *stages.Dependencies
	// Registry replaces the default stage registry built from Dependencies
	Registry  *stages.Registry
	Templates *templates.EngineConfig
	Observer  core.Observer
	Logger    logging.Logger
	// Clock overrides the time source of relative expirations in templates
	Clock func() time.Time
}

// Engine runs one pipeline definition against events. It is safe for
// concurrent use; every Process call gets its own namespace.
type Engine struct {
	definition *core.PipelineDefinition
	registry   *stages.Registry
	templates  *templates.Engine
	expander   *expression.Expander
	executor   *core.Executor
	logger     logging.Logger
}

// LoadFile reads and validates the pipeline definition at path
func LoadFile(path string, opts Options) (*Engine, error) {
	registry := opts.registry()
	definition, err := core.LoadPipelineFile(path, registry)
	if err != nil {
		return nil, err
	}
	return newEngine(definition, registry, opts), nil
}

// Load parses and validates a YAML or JSON pipeline definition
func Load(data []byte, opts Options) (*Engine, error) {
	registry := opts.registry()
	definition, err := core.LoadPipeline(data, registry)
	if err != nil {
		return nil, err
	}
	return newEngine(definition, registry, opts), nil
}

func (o Options) registry() *stages.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return stages.NewDefaultRegistry(o.Dependencies)
}

func newEngine(definition *core.PipelineDefinition, registry *stages.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	storage := opts.dependencies().Storage
	var libraryOpts []filters.Option
	if opts.Clock != nil {
		libraryOpts = append(libraryOpts, filters.WithClock(opts.Clock))
	}
	library := filters.NewLibrary(storage, logger, libraryOpts...)
	engine := templates.NewEngine(opts.Templates, library.FuncMap())

	var executorOpts []core.ExecutorOption
	if opts.Observer != nil {
		executorOpts = append(executorOpts, core.WithObserver(opts.Observer))
	}

	return &Engine{
		definition: definition,
		registry:   registry,
		templates:  engine,
		expander:   expression.NewExpander(engine),
		executor:   core.NewExecutor(registry, executorOpts...),
		logger:     logger.WithFields(logging.String("component", "pipeline")),
	}
}

func (o Options) dependencies() *stages.Dependencies {
	if o.Dependencies != nil {
		return o.Dependencies
	}
	return &stages.Dependencies{}
}

// Process runs the pipeline for ev. The Result is always non-nil.
func (e *Engine) Process(ctx context.Context, ev *event.Event) (*core.Result, error) {
	env := core.NewEnvironment(ev, e.definition, e.expander, e.logger)
	ctx = logging.ContextWithRunID(ctx, env.RunID)
	ctx = logging.ContextWithMessageID(ctx, env.Event.ID)
	return e.executor.Execute(ctx, env)
}

// Definition returns the loaded pipeline
func (e *Engine) Definition() *core.PipelineDefinition {
	return e.definition
}

// Registry returns the stage registry the pipeline was validated against
func (e *Engine) Registry() *stages.Registry {
	return e.registry
}

// CheckTemplates parses every template string of the globals and the stage
// configurations, reporting all syntax errors and unknown functions at once.
// Templates are not executed.
func (e *Engine) CheckTemplates() error {
	v := validation.NewValidatorWithPrefix("pipeline templates")
	e.checkValue(v, "globals", e.definition.Globals)
	for _, kind := range []core.Kind{core.KindProcessor, core.KindOutput} {
		for i, stage := range e.definition.Stages(kind) {
			e.checkValue(v, core.StageName(kind, i, stage.Type), stage.Config)
		}
	}
	return v.Error()
}

func (e *Engine) checkValue(v *validation.Validator, path string, value interface{}) {
	switch val := value.(type) {
	case string:
		if !templates.IsTemplate(val) {
			return
		}
		v.Validate(func() error {
			if err := e.templates.CompileTemplate(val); err != nil {
				return fmt.Errorf("%s: %v", path, err)
			}
			return nil
		})
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.checkValue(v, path+"."+k, val[k])
		}
	case []interface{}:
		for i, item := range val {
			e.checkValue(v, fmt.Sprintf("%s[%d]", path, i), item)
		}
	}
}
