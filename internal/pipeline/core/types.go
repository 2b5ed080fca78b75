package core

import (
	"fmt"
	"time"

	"pubsub2inbox/internal/pipeline/expression"
)

// Kind distinguishes the two stage lists of a pipeline
type Kind string

const (
	// KindProcessor stages contribute values to the namespace
	KindProcessor Kind = "processors"
	// KindOutput stages deliver the final namespace
	KindOutput Kind = "outputs"
)

// StageDefinition is a single configured processor or output
type StageDefinition struct {
	Type string `yaml:"type" json:"type"`
	// Output names the namespace entry a processor writes. It is taken
	// literally and never expanded.
	Output string                 `yaml:"output,omitempty" json:"output,omitempty"`
	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
	// KeyOrder is the order Config mappings were declared in, filled by the
	// loader
	KeyOrder expression.KeyOrder `yaml:"-" json:"-"`
}

// PipelineDefinition is the whole configuration file
type PipelineDefinition struct {
	Globals    map[string]interface{} `yaml:"globals,omitempty" json:"globals,omitempty"`
	Processors []StageDefinition      `yaml:"processors,omitempty" json:"processors,omitempty"`
	Outputs    []StageDefinition      `yaml:"outputs" json:"outputs"`
}

// Stages returns the definitions of the given kind
func (p *PipelineDefinition) Stages(kind Kind) []StageDefinition {
	if kind == KindProcessor {
		return p.Processors
	}
	return p.Outputs
}

// StageName is the diagnostic name of a stage, e.g. "processors[1] vertexgenai"
func StageName(kind Kind, index int, stageType string) string {
	return fmt.Sprintf("%s[%d] %s", kind, index, stageType)
}

// Status is the terminal state of a stage or a run
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StageResult records how a single stage went
type StageResult struct {
	Kind     Kind
	Index    int
	Type     string
	Output   string
	Status   Status
	Duration time.Duration
	Error    error
}

// Result is the outcome of one pipeline run
type Result struct {
	RunID     string
	Status    Status
	Namespace map[string]interface{}
	Stages    []StageResult
	Duration  time.Duration
}

// Failed returns the failing stage, if any
func (r *Result) Failed() (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			return s, true
		}
	}
	return StageResult{}, false
}
