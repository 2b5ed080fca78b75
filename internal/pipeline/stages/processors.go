package stages

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"pubsub2inbox/internal/common/errors"
	commonhttp "pubsub2inbox/internal/common/http"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/pipeline/core"
	"pubsub2inbox/internal/pipeline/utils"
)

// GenericJSONProcessor decodes a JSON document, by default the event
// payload, into the namespace
type GenericJSONProcessor struct{}

const defaultJSONSource = "{{ .event.data }}"

func (p *GenericJSONProcessor) DefaultOutput() string {
	return "payload"
}

func (p *GenericJSONProcessor) Process(ctx context.Context, sc *core.StageContext) (map[string]interface{}, error) {
	if !sc.Has("data") {
		sc.Config["data"] = defaultJSONSource
	}
	source, err := sc.ExpandString("data")
	if err != nil {
		return nil, err
	}

	value, err := utils.DecodeJSON([]byte(source))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{sc.OutputVar: value}, nil
}

// SetVariableProcessor stores the structural expansion of value
type SetVariableProcessor struct{}

func (p *SetVariableProcessor) DefaultOutput() string {
	return "variable"
}

func (p *SetVariableProcessor) Process(ctx context.Context, sc *core.StageContext) (map[string]interface{}, error) {
	if err := sc.Require("value"); err != nil {
		return nil, err
	}
	value, err := sc.ExpandValue("value")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{sc.OutputVar: value}, nil
}

// HTTPProcessor calls a URL and stores {status, headers, body}; JSON bodies
// are decoded
type HTTPProcessor struct {
	deps *Dependencies
}

func NewHTTPProcessor(deps *Dependencies) *HTTPProcessor {
	return &HTTPProcessor{deps: deps}
}

func (p *HTTPProcessor) DefaultOutput() string {
	return "http"
}

func (p *HTTPProcessor) Process(ctx context.Context, sc *core.StageContext) (map[string]interface{}, error) {
	resp, err := doRequest(ctx, p.deps, sc, http.MethodGet)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]interface{}, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}

	var body interface{} = string(resp.RawBody)
	if decoded, err := utils.DecodeJSON(resp.RawBody); err == nil {
		body = decoded
	}

	return map[string]interface{}{
		sc.OutputVar: map[string]interface{}{
			"status":  resp.StatusCode,
			"headers": headers,
			"body":    body,
		},
	}, nil
}

// doRequest performs the request described by the url, method, headers and
// body keys of a stage. A body that is not a string is sent as JSON.
func doRequest(ctx context.Context, deps *Dependencies, sc *core.StageContext, defaultMethod string) (*commonhttp.Response, error) {
	if err := sc.Require("url"); err != nil {
		return nil, err
	}

	url, err := sc.ExpandString("url")
	if err != nil {
		return nil, err
	}
	method, err := sc.ExpandStringDefault("method", defaultMethod)
	if err != nil {
		return nil, err
	}
	headers, err := sc.ExpandStringMap("headers")
	if err != nil {
		return nil, err
	}
	if _, ok := headerValue(headers, "User-Agent"); !ok {
		headers["User-Agent"] = UserAgent
	}

	var body []byte
	if sc.Has("body") {
		value, err := sc.ExpandValue("body")
		if err != nil {
			return nil, err
		}
		switch b := value.(type) {
		case nil:
		case string:
			body = []byte(b)
		default:
			body, err = json.Marshal(b)
			if err != nil {
				return nil, errors.ValidationError(fmt.Sprintf("body is not JSON serializable: %v", err)).
					WithContext("stage", sc.Name)
			}
			if _, ok := headerValue(headers, "Content-Type"); !ok {
				headers["Content-Type"] = "application/json"
			}
		}
	}

	method = strings.ToUpper(method)
	sc.Logger.Debug("Sending HTTP request",
		logging.String("method", method),
		logging.String("url", url),
	)

	return commonhttp.Do(ctx, deps.httpClient(), &commonhttp.Request{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
	})
}

func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
