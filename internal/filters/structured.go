package filters

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/pipeline/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// safeYAMLTags are the tags a decoded document may carry; anything else, such
// as application specific object tags, is refused
var safeYAMLTags = map[string]bool{
	"!!null":      true,
	"!!bool":      true,
	"!!int":       true,
	"!!float":     true,
	"!!str":       true,
	"!!timestamp": true,
	"!!binary":    true,
	"!!seq":       true,
	"!!map":       true,
	"!!merge":     true,
}

func makeList(v interface{}) []interface{} {
	switch items := v.(type) {
	case []interface{}:
		return items
	case nil:
		return []interface{}{nil}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		result := make([]interface{}, rv.Len())
		for i := range result {
			result[i] = rv.Index(i).Interface()
		}
		return result
	}
	return []interface{}{v}
}

func (l *Library) jsonEncode(v interface{}) (string, error) {
	data, err := json.Marshal(markFloats(v))
	if err != nil {
		return "", l.fail("json_encode", errors.ValidationError(fmt.Sprintf("failed to encode JSON: %v", err)))
	}
	return string(data), nil
}

func (l *Library) jsonDecode(s string) (interface{}, error) {
	v, err := utils.DecodeJSON([]byte(s))
	if err != nil {
		return nil, l.fail("json_decode", err)
	}
	return v, nil
}

func (l *Library) yamlEncode(v interface{}) (string, error) {
	data, err := yaml.Marshal(markFloats(v))
	if err != nil {
		return "", l.fail("yaml_encode", errors.ValidationError(fmt.Sprintf("failed to encode YAML: %v", err)))
	}
	return string(data), nil
}

func (l *Library) yamlDecode(s string) (interface{}, error) {
	v, err := decodeYAML(s)
	if err != nil {
		return nil, l.fail("yaml_decode", err)
	}
	return v, nil
}

// decodeYAML decodes a single document built only from plain scalars,
// sequences and mappings
func decodeYAML(s string) (interface{}, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to decode YAML: %v", err))
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	if err := checkYAMLTags(&doc); err != nil {
		return nil, err
	}

	var v interface{}
	if err := doc.Decode(&v); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to decode YAML: %v", err))
	}
	return utils.Normalize(v), nil
}

func checkYAMLTags(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode, yaml.SequenceNode, yaml.MappingNode:
		if tag := n.ShortTag(); !safeYAMLTags[tag] {
			return errors.ValidationError(fmt.Sprintf("refusing to decode YAML tag %s at line %d", tag, n.Line))
		}
	}
	for _, child := range n.Content {
		if err := checkYAMLTags(child); err != nil {
			return err
		}
	}
	return nil
}

// csvEncode writes one CSV row. Arguments: [option value]... row, where the
// options are delimiter, quotechar, lineterminator and quoting (minimal, all
// or nonnumeric).
func (l *Library) csvEncode(args ...interface{}) (string, error) {
	if len(args) == 0 || len(args)%2 == 0 {
		return "", l.fail("csv_encode", errors.ValidationError("csv_encode expects [option value]... row"))
	}

	delimiter, quote, terminator, quoting := ",", `"`, "\r\n", "minimal"
	for i := 0; i < len(args)-1; i += 2 {
		key, ok1 := args[i].(string)
		value, ok2 := args[i+1].(string)
		if !ok1 || !ok2 {
			return "", l.fail("csv_encode", errors.ValidationError("csv_encode options must be strings"))
		}
		switch key {
		case "delimiter":
			delimiter = value
		case "quotechar":
			quote = value
		case "lineterminator":
			terminator = value
		case "quoting":
			quoting = value
		default:
			return "", l.fail("csv_encode", errors.ValidationError(fmt.Sprintf("unknown csv_encode option %q", key)))
		}
	}
	if len([]rune(delimiter)) != 1 || len([]rune(quote)) != 1 {
		return "", l.fail("csv_encode", errors.ValidationError("delimiter and quotechar must be single characters"))
	}
	if quoting != "minimal" && quoting != "all" && quoting != "nonnumeric" {
		return "", l.fail("csv_encode", errors.ValidationError(fmt.Sprintf("unknown quoting %q", quoting)))
	}

	row := makeList(args[len(args)-1])
	fields := make([]string, len(row))
	for i, cell := range row {
		text := csvCell(cell)
		needsQuote := false
		switch quoting {
		case "all":
			needsQuote = true
		case "nonnumeric":
			needsQuote = !isNumber(cell)
		default:
			needsQuote = text != "" && strings.ContainsAny(text, delimiter+quote+"\r\n")
		}
		if needsQuote {
			text = quote + strings.ReplaceAll(text, quote, quote+quote) + quote
		}
		fields[i] = text
	}
	return strings.Join(fields, delimiter) + terminator, nil
}

func csvCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// jmespath queries v; arguments follow the pipe convention: expression, data
func (l *Library) jmespath(expression string, v interface{}) (interface{}, error) {
	result, err := jmespath.Search(expression, v)
	if err != nil {
		return nil, l.fail("jmespath", errors.ValidationError(fmt.Sprintf("jmespath %q: %v", expression, err)))
	}
	return result, nil
}
