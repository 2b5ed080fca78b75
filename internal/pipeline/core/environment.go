package core

import (
	"github.com/google/uuid"

	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/event"
	"pubsub2inbox/internal/pipeline/expression"
)

// Environment is shared by reference with every stage of one run and is
// never modified by them.
type Environment struct {
	RunID    string
	Event    *event.Event
	Config   *PipelineDefinition
	Expander *expression.Expander
	Logger   logging.Logger
}

// NewEnvironment builds the environment for one event. A nil logger means the
// global logger.
func NewEnvironment(ev *event.Event, config *PipelineDefinition, expander *expression.Expander, logger logging.Logger) *Environment {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if ev == nil {
		ev = &event.Event{}
	}
	runID := uuid.NewString()
	return &Environment{
		RunID:    runID,
		Event:    ev,
		Config:   config,
		Expander: expander,
		Logger: logger.WithFields(
			logging.String("run_id", runID),
			logging.String("message_id", ev.ID),
		),
	}
}

// NewRunNamespace seeds a fresh namespace with the event and the globals.
func (e *Environment) NewRunNamespace() *Namespace {
	ns := NewNamespace()
	_ = ns.Set("event", e.Event.ToMap())

	var globals map[string]interface{}
	if e.Config != nil {
		globals = e.Config.Globals
	}
	_ = ns.Set("globals", expression.DeepCopyMap(globals))
	return ns
}
