package stages

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"pubsub2inbox/internal/common/errors"
	commonhttp "pubsub2inbox/internal/common/http"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/pipeline/core"
	"pubsub2inbox/internal/pipeline/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// VertexGenAIProcessor calls the predict method of a Vertex AI publisher
// model with a templated request.
//
// Configuration:
//
//	location:    region of the endpoint (required)
//	modelId:     publisher model, e.g. chat-bison (required)
//	request:     predict request body, expanded structurally (required)
//	project:     defaults to the project of the credentials
//	apiEndpoint: defaults to https://{location}-aiplatform.googleapis.com
type VertexGenAIProcessor struct {
	deps *Dependencies
}

func NewVertexGenAIProcessor(deps *Dependencies) *VertexGenAIProcessor {
	return &VertexGenAIProcessor{deps: deps}
}

func (p *VertexGenAIProcessor) DefaultOutput() string {
	return "vertexgenai"
}

func (p *VertexGenAIProcessor) Process(ctx context.Context, sc *core.StageContext) (map[string]interface{}, error) {
	if err := sc.Require("location", "modelId", "request"); err != nil {
		return nil, err
	}

	location, err := sc.ExpandString("location")
	if err != nil {
		return nil, err
	}
	modelID, err := sc.ExpandString("modelId")
	if err != nil {
		return nil, err
	}
	project, err := sc.ExpandString("project")
	if err != nil {
		return nil, err
	}
	endpoint, err := sc.ExpandStringDefault("apiEndpoint", fmt.Sprintf("https://%s-aiplatform.googleapis.com", location))
	if err != nil {
		return nil, err
	}

	expanded, err := sc.ExpandValue("request")
	if err != nil {
		return nil, err
	}
	request, ok := expanded.(map[string]interface{})
	if !ok {
		return nil, errors.ValidationError(fmt.Sprintf("request must be a mapping, got %T", expanded)).
			WithContext("stage", sc.Name)
	}
	if err := ConsolidateMessages(request); err != nil {
		return nil, err.WithContext("stage", sc.Name)
	}

	client, credentialsProject, err := p.deps.googleClient(ctx)
	if err != nil {
		return nil, err
	}
	if project == "" {
		project = credentialsProject
	}
	if project == "" {
		project = p.deps.Project
	}
	if project == "" {
		return nil, errors.NotConfiguredError("project").WithContext("stage", sc.Name)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("request is not JSON serializable: %v", err))
	}

	apiURL := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		strings.TrimRight(endpoint, "/"), project, location, modelID)

	sc.Logger.Debug("Calling Vertex AI predict",
		logging.String("api_url", apiURL),
		logging.Any("request_body", request),
	)

	resp, err := commonhttp.Do(ctx, client, &commonhttp.Request{
		Method: http.MethodPost,
		URL:    apiURL,
		Headers: map[string]string{
			"User-Agent":   UserAgent,
			"Content-Type": "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, err
	}

	result, err := utils.DecodeJSON(resp.RawBody)
	if err != nil {
		return nil, errors.DownstreamError("Vertex AI returned a non-JSON response", resp.StatusCode, err)
	}

	return map[string]interface{}{sc.OutputVar: result}, nil
}

// ConsolidateMessages rewrites instances[*].messages so that authors
// alternate: walking from the newest message backwards, a message is kept
// only when its author differs from the last kept one, then chronological
// order is restored. Of consecutive messages by one author the newest wins.
// Every message must be a mapping with an author.
func ConsolidateMessages(request map[string]interface{}) *errors.AppError {
	instances, ok := request["instances"].([]interface{})
	if !ok {
		return nil
	}

	for n, item := range instances {
		instance, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		messages, ok := instance["messages"].([]interface{})
		if !ok {
			continue
		}

		kept := make([]interface{}, 0, len(messages))
		var lastAuthor string
		for i := len(messages) - 1; i >= 0; i-- {
			author, err := messageAuthor(messages[i])
			if err != nil {
				return err.WithContext("message", fmt.Sprintf("instances[%d].messages[%d]", n, i))
			}
			if len(kept) == 0 || author != lastAuthor {
				kept = append(kept, messages[i])
				lastAuthor = author
			}
		}
		for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
			kept[i], kept[j] = kept[j], kept[i]
		}
		instance["messages"] = kept
	}
	return nil
}

func messageAuthor(message interface{}) (string, *errors.AppError) {
	m, ok := message.(map[string]interface{})
	if !ok {
		return "", errors.ValidationError(fmt.Sprintf("message must be a mapping, got %T", message))
	}
	author, ok := m["author"]
	if !ok || author == nil {
		return "", errors.ValidationError("message has no author")
	}
	if s, ok := author.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", author), nil
}
