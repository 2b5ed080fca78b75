package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/pipeline/expression"
)

// Processor produces named values that are merged into the namespace.
type Processor interface {
	// DefaultOutput is the namespace entry written when the stage
	// definition does not name one
	DefaultOutput() string
	// Process returns the entries to merge, normally {sc.OutputVar: value}
	Process(ctx context.Context, sc *StageContext) (map[string]interface{}, error)
}

// Output delivers the final namespace somewhere. Nothing it returns is seen
// by later stages.
type Output interface {
	Output(ctx context.Context, sc *StageContext) error
}

// StageContext is what a stage sees while it runs: the shared environment,
// its own deep-copied configuration and a read-only view of the namespace.
type StageContext struct {
	Env       *Environment
	Kind      Kind
	Index     int
	Type      string
	Name      string
	OutputVar string
	Config    map[string]interface{}
	Namespace *Namespace
	Logger    logging.Logger

	data  map[string]interface{}
	order expression.KeyOrder
}

// NewStageContext binds a stage definition to the namespace as it stands.
func NewStageContext(env *Environment, kind Kind, index int, def StageDefinition, ns *Namespace) *StageContext {
	name := StageName(kind, index, def.Type)
	snapshot := ns.Snapshot()

	logger := env.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &StageContext{
		Env:       env,
		Kind:      kind,
		Index:     index,
		Type:      def.Type,
		Name:      name,
		OutputVar: def.Output,
		Config:    expression.DeepCopyMap(def.Config),
		Namespace: snapshot,
		Logger:    logger.WithFields(logging.String("stage", name)),
		data:      snapshot.All(),
		order:     def.KeyOrder,
	}
}

// Data returns the template data of this stage
func (sc *StageContext) Data() map[string]interface{} {
	return sc.data
}

// Has reports whether key is present in the stage configuration
func (sc *StageContext) Has(key string) bool {
	_, ok := sc.Config[key]
	return ok
}

// Require fails with a not-configured error naming the first absent key
func (sc *StageContext) Require(keys ...string) error {
	for _, key := range keys {
		if !sc.Has(key) {
			return errors.NotConfiguredError(key).WithContext("stage", sc.Name)
		}
	}
	return nil
}

// Raw returns the unexpanded configuration value of key
func (sc *StageContext) Raw(key string) interface{} {
	return sc.Config[key]
}

// Expand expands an arbitrary value against the namespace. Structural
// results are deep copied so stages may modify them freely.
func (sc *StageContext) Expand(value interface{}, mode expression.Mode) (interface{}, error) {
	return sc.expand(value, mode, nil)
}

func (sc *StageContext) expand(value interface{}, mode expression.Mode, order expression.KeyOrder) (interface{}, error) {
	if sc.Env == nil || sc.Env.Expander == nil {
		return nil, errors.ConfigError("stage has no template expander")
	}
	expanded, err := sc.Env.Expander.ExpandOrdered(sc.Name, value, sc.data, mode, order)
	if err != nil {
		return nil, err
	}
	return expression.DeepCopy(expanded), nil
}

// ExpandString interpolates key to a string; an absent key yields ""
func (sc *StageContext) ExpandString(key string) (string, error) {
	return sc.ExpandStringDefault(key, "")
}

// ExpandStringDefault interpolates key, or returns def when key is absent
func (sc *StageContext) ExpandStringDefault(key, def string) (string, error) {
	raw, ok := sc.Config[key]
	if !ok || raw == nil {
		return def, nil
	}
	if sc.Env == nil || sc.Env.Expander == nil {
		return "", errors.ConfigError("stage has no template expander")
	}
	s, err := sc.Env.Expander.ExpandString(sc.Name, raw, sc.data)
	if err != nil {
		return "", withKey(err, key)
	}
	return s, nil
}

// ExpandValue expands key in structural mode; an absent key yields nil.
// Mapping values are evaluated in the order they were declared.
func (sc *StageContext) ExpandValue(key string) (interface{}, error) {
	raw, ok := sc.Config[key]
	if !ok {
		return nil, nil
	}
	v, err := sc.expand(raw, expression.Structural, sc.order.Sub(key))
	if err != nil {
		return nil, withKey(err, key)
	}
	return v, nil
}

// ExpandBool expands key and interprets it as a boolean, returning def when
// key is absent
func (sc *StageContext) ExpandBool(key string, def bool) (bool, error) {
	if !sc.Has(key) {
		return def, nil
	}
	v, err := sc.ExpandValue(key)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return def, nil
	case int:
		return b != 0, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, errors.ValidationError(fmt.Sprintf("%s: %q is not a boolean", key, b)).WithContext("stage", sc.Name)
		}
		return parsed, nil
	default:
		return false, errors.ValidationError(fmt.Sprintf("%s: %T is not a boolean", key, v)).WithContext("stage", sc.Name)
	}
}

// ExpandStringList expands key into a list of strings. A single string is
// split on commas.
func (sc *StageContext) ExpandStringList(key string) ([]string, error) {
	v, err := sc.ExpandValue(key)
	if err != nil {
		return nil, err
	}
	return ToStringList(v), nil
}

// ExpandStringMap expands key into a string to string mapping, which is the
// shape of headers and attributes
func (sc *StageContext) ExpandStringMap(key string) (map[string]string, error) {
	v, err := sc.ExpandValue(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]string{}, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.ValidationError(fmt.Sprintf("%s must be a mapping, got %T", key, v)).WithContext("stage", sc.Name)
	}
	result := make(map[string]string, len(m))
	for k, item := range m {
		result[k] = toString(item)
	}
	return result, nil
}

// Decode expands key in structural mode and decodes it into out, which must
// be a pointer. Fields are matched on their `config` tag, loosely typed.
func (sc *StageContext) Decode(key string, out interface{}) error {
	v, err := sc.ExpandValue(key)
	if err != nil {
		return err
	}
	return DecodeValue(v, out)
}

// DecodeValue decodes an expanded value into out
func DecodeValue(v interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "config",
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.InternalError("failed to build config decoder", err)
	}
	if err := decoder.Decode(v); err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid configuration: %v", err))
	}
	return nil
}

// ToStringList converts an expanded value into a list of non-empty strings.
func ToStringList(v interface{}) []string {
	var result []string
	switch val := v.(type) {
	case nil:
	case string:
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	case []string:
		for _, item := range val {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	case []interface{}:
		for _, item := range val {
			if s := strings.TrimSpace(toString(item)); s != "" {
				result = append(result, s)
			}
		}
	default:
		result = append(result, toString(val))
	}
	return result
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// withKey records the configuration key on an expansion error
func withKey(err error, key string) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Type == errors.ErrTypeExpansion {
		appErr.WithContext("key", key)
	}
	return err
}
