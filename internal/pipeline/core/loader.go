package core

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/pipeline/expression"
	pipelineerrors "pubsub2inbox/internal/pipeline/errors"
	"pubsub2inbox/internal/pipeline/utils"
)

// LoadPipeline parses a YAML (or JSON) pipeline definition and validates it
// against catalog. A nil catalog skips the stage type check.
func LoadPipeline(data []byte, catalog Catalog) (*PipelineDefinition, error) {
	var pipeline PipelineDefinition

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pipeline); err != nil {
		if err == io.EOF {
			return nil, pipelineerrors.NewInvalidPipelineError("empty configuration")
		}
		return nil, fmt.Errorf("failed to parse pipeline configuration: %w", err)
	}

	normalize(&pipeline)
	if err := recordKeyOrder(data, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline configuration: %w", err)
	}

	if err := validatePipeline(&pipeline, catalog); err != nil {
		return nil, err
	}

	return &pipeline, nil
}

// LoadPipelineFromReader loads a pipeline definition from an io.Reader
func LoadPipelineFromReader(r io.Reader, catalog Catalog) (*PipelineDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline data: %w", err)
	}

	return LoadPipeline(data, catalog)
}

// LoadPipelineFile loads a pipeline definition from disk
func LoadPipelineFile(path string, catalog Catalog) (*PipelineDefinition, error) {
	if path == "" {
		return nil, errors.ConfigError("no pipeline configuration file specified")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read pipeline configuration %s: %v", path, err))
	}
	return LoadPipeline(data, catalog)
}

func normalize(p *PipelineDefinition) {
	if p.Globals == nil {
		p.Globals = map[string]interface{}{}
	}
	utils.Normalize(p.Globals)
	for _, kind := range []Kind{KindProcessor, KindOutput} {
		stages := p.Stages(kind)
		for i := range stages {
			if stages[i].Config == nil {
				stages[i].Config = map[string]interface{}{}
			}
			utils.Normalize(stages[i].Config)
		}
	}
}

// recordKeyOrder reads the document a second time as a node tree, which
// keeps the mapping order that decoding into Go maps loses
func recordKeyOrder(data []byte, p *PipelineDefinition) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	root := resolveNode(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		var stages []StageDefinition
		switch root.Content[i].Value {
		case string(KindProcessor):
			stages = p.Processors
		case string(KindOutput):
			stages = p.Outputs
		default:
			continue
		}

		list := resolveNode(root.Content[i+1])
		if list == nil || list.Kind != yaml.SequenceNode {
			continue
		}
		for j, item := range list.Content {
			if j >= len(stages) {
				break
			}
			config := mappingValue(resolveNode(item), "config")
			if config == nil {
				continue
			}
			order := expression.KeyOrder{}
			collectKeyOrder(config, "", order)
			stages[j].KeyOrder = order
		}
	}
	return nil
}

func collectKeyOrder(n *yaml.Node, path string, order expression.KeyOrder) {
	n = resolveNode(n)
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			// merged keys keep the fallback order
			if key.ShortTag() == "!!merge" {
				continue
			}
			keys = append(keys, key.Value)
			collectKeyOrder(n.Content[i+1], expression.JoinPath(path, key.Value), order)
		}
		order[path] = keys
	case yaml.SequenceNode:
		for i, item := range n.Content {
			collectKeyOrder(item, expression.IndexPath(path, i), order)
		}
	}
}

// resolveNode steps through document and alias nodes
func resolveNode(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolveNode(n.Content[i+1])
		}
	}
	return nil
}

// validatePipeline checks that every stage names a registered type and that
// there is somewhere to deliver to
func validatePipeline(p *PipelineDefinition, catalog Catalog) error {
	if len(p.Outputs) == 0 {
		return pipelineerrors.NewInvalidPipelineError("pipeline must have at least one output")
	}

	for _, kind := range []Kind{KindProcessor, KindOutput} {
		for i, stage := range p.Stages(kind) {
			if stage.Type == "" {
				return pipelineerrors.NewInvalidPipelineError("%s[%d] must have a type", kind, i)
			}
			if kind == KindOutput && stage.Output != "" {
				return pipelineerrors.NewInvalidPipelineError("%s[%d] %s: outputs do not write to the namespace", kind, i, stage.Type)
			}
			if catalog == nil {
				continue
			}
			known := catalog.HasProcessor(stage.Type)
			if kind == KindOutput {
				known = catalog.HasOutput(stage.Type)
			}
			if !known {
				return pipelineerrors.NewUnknownStageTypeError(string(kind), i, stage.Type)
			}
		}
	}

	return nil
}
