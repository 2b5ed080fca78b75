package core

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/common/templates"
	"pubsub2inbox/internal/event"
	"pubsub2inbox/internal/pipeline/expression"
)

// funcProcessor adapts a function to the Processor interface
type funcProcessor struct {
	output string
	fn     func(ctx context.Context, sc *StageContext) (map[string]interface{}, error)
}

func (p *funcProcessor) DefaultOutput() string { return p.output }

func (p *funcProcessor) Process(ctx context.Context, sc *StageContext) (map[string]interface{}, error) {
	return p.fn(ctx, sc)
}

type funcOutput func(ctx context.Context, sc *StageContext) error

func (f funcOutput) Output(ctx context.Context, sc *StageContext) error { return f(ctx, sc) }

type mapCatalog struct {
	processors map[string]Processor
	outputs    map[string]Output
}

func newMapCatalog() *mapCatalog {
	return &mapCatalog{processors: map[string]Processor{}, outputs: map[string]Output{}}
}

func (c *mapCatalog) HasProcessor(t string) bool {
	_, ok := c.processors[t]
	return ok
}

func (c *mapCatalog) HasOutput(t string) bool {
	_, ok := c.outputs[t]
	return ok
}

func (c *mapCatalog) Processor(t string) (Processor, error) {
	if p, ok := c.processors[t]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no processor %s", t)
}

func (c *mapCatalog) Output(t string) (Output, error) {
	if o, ok := c.outputs[t]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("no output %s", t)
}

// setProcessor expands "value" structurally into its output variable
func setProcessor() Processor {
	return &funcProcessor{output: "variable", fn: func(_ context.Context, sc *StageContext) (map[string]interface{}, error) {
		if err := sc.Require("value"); err != nil {
			return nil, err
		}
		v, err := sc.ExpandValue("value")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{sc.OutputVar: v}, nil
	}}
}

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: io.Discard})
	require.NoError(t, err)
	return logger
}

func testEnvironment(t *testing.T, def *PipelineDefinition, ev *event.Event) *Environment {
	t.Helper()
	expander := expression.NewExpander(templates.NewEngine(nil))
	return NewEnvironment(ev, def, expander, testLogger(t))
}

type recordingObserver struct {
	stages []string
	events []Status
}

func (o *recordingObserver) ObserveStage(kind Kind, stageType string, status Status, _ time.Duration) {
	o.stages = append(o.stages, fmt.Sprintf("%s/%s/%s", kind, stageType, status))
}

func (o *recordingObserver) ObserveEvent(status Status, _ time.Duration) {
	o.events = append(o.events, status)
}
