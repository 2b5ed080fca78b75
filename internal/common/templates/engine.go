package templates

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"strings"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/patrickmn/go-cache"
	"pubsub2inbox/internal/common/errors"
)

const captureFunc = "_capture"

// Engine parses and executes templates with a fixed function map.
// It is safe for concurrent use.
type Engine struct {
	funcMap template.FuncMap
	cache   *cache.Cache
	config  *EngineConfig
}

// EngineConfig configures the template engine behavior
type EngineConfig struct {
	// MaxTemplateSize bounds the length of a single template source in bytes
	MaxTemplateSize int `json:"max_template_size"`

	// CacheExpiration is how long a parsed template stays cached after last use
	CacheExpiration time.Duration `json:"cache_expiration"`
	CacheCleanup    time.Duration `json:"cache_cleanup"`
}

// compiled holds a parsed template and, for single-action templates, the
// variant that hands the action's value to the capture function.
type compiled struct {
	text    *template.Template
	capture *template.Template
}

// DefaultEngineConfig returns the configuration used when NewEngine gets nil
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxTemplateSize: 1024 * 1024, // 1MB
		CacheExpiration: 30 * time.Minute,
		CacheCleanup:    10 * time.Minute,
	}
}

// NewEngine creates a template engine. The base function map is extended with
// funcMaps in order.
func NewEngine(config *EngineConfig, funcMaps ...template.FuncMap) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}

	funcMap := baseFunctions()
	for _, fm := range funcMaps {
		for name, fn := range fm {
			funcMap[name] = fn
		}
	}
	// placeholder so single-action templates parse; replaced per evaluation
	funcMap[captureFunc] = func(v interface{}) string { return "" }

	return &Engine{
		funcMap: funcMap,
		cache:   cache.New(config.CacheExpiration, config.CacheCleanup),
		config:  config,
	}
}

// IsTemplate reports whether s carries at least one template action
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// HasFunction reports whether name is callable from templates
func (e *Engine) HasFunction(name string) bool {
	_, ok := e.funcMap[name]
	return ok && name != captureFunc
}

// Render executes src against data and returns the interpolated text
func (e *Engine) Render(src string, data interface{}) (string, error) {
	c, err := e.compile(src)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := c.text.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Evaluate executes src against data. A template consisting of a single
// action yields the action's value with its native type; any other template
// is rendered to a string.
func (e *Engine) Evaluate(src string, data interface{}) (interface{}, error) {
	c, err := e.compile(src)
	if err != nil {
		return nil, err
	}

	if c.capture == nil {
		var buf bytes.Buffer
		if err := c.text.Execute(&buf, data); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}

	tmpl, err := c.capture.Clone()
	if err != nil {
		return nil, errors.InternalError("failed to clone template", err)
	}

	// Clone does not carry options over
	tmpl.Option("missingkey=error")

	var result interface{}
	tmpl.Funcs(template.FuncMap{
		captureFunc: func(v interface{}) string {
			result = v
			return ""
		},
	})

	if err := tmpl.Execute(io.Discard, data); err != nil {
		return nil, err
	}
	return result, nil
}

// IsSingleAction reports whether src parses to exactly one action with no
// surrounding text and no variable declarations
func (e *Engine) IsSingleAction(src string) (bool, error) {
	c, err := e.compile(src)
	if err != nil {
		return false, err
	}
	return c.capture != nil, nil
}

// CompileTemplate parses src and stores it in the cache under its content hash
func (e *Engine) CompileTemplate(src string) error {
	_, err := e.compile(src)
	return err
}

func (e *Engine) compile(src string) (*compiled, error) {
	if len(src) > e.config.MaxTemplateSize {
		return nil, errors.ValidationError(fmt.Sprintf("template size %d exceeds maximum %d", len(src), e.config.MaxTemplateSize))
	}

	name := e.generateTemplateName(src)
	if cached, found := e.cache.Get(name); found {
		return cached.(*compiled), nil
	}

	text, err := e.parse(name, src)
	if err != nil {
		return nil, fmt.Errorf("template compilation failed: %w", err)
	}

	c := &compiled{text: text}
	if action := singleAction(text.Tree); action != nil {
		captureSrc := "{{" + action.Pipe.String() + " | " + captureFunc + "}}"
		c.capture, err = e.parse(name+"_capture", captureSrc)
		if err != nil {
			return nil, fmt.Errorf("template compilation failed: %w", err)
		}
	}

	e.cache.SetDefault(name, c)
	return c, nil
}

func (e *Engine) parse(name, src string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Funcs(e.funcMap).Parse(src)
}

// singleAction returns the only node of tree when it is a plain action
func singleAction(tree *parse.Tree) *parse.ActionNode {
	if tree == nil || tree.Root == nil || len(tree.Root.Nodes) != 1 {
		return nil
	}
	action, ok := tree.Root.Nodes[0].(*parse.ActionNode)
	if !ok || action.Pipe == nil || len(action.Pipe.Decl) > 0 {
		return nil
	}
	return action
}

// generateTemplateName generates a unique name for template caching
func (e *Engine) generateTemplateName(src string) string {
	hash := md5.Sum([]byte(src))
	return fmt.Sprintf("tmpl_%x", hash)
}

// CachedTemplates returns the number of parsed templates currently cached
func (e *Engine) CachedTemplates() int {
	return e.cache.ItemCount()
}

// ClearCache clears all cached templates
func (e *Engine) ClearCache() {
	e.cache.Flush()
}
