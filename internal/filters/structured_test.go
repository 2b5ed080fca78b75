package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pubsub2inbox/internal/common/errors"
)

func roundTripValues() []interface{} {
	return []interface{}{
		"text",
		42,
		-7,
		3.25,
		1.0,
		-2.0,
		1e21,
		true,
		nil,
		[]interface{}{"a", 1, false, nil},
		[]interface{}{0.0},
		map[string]interface{}{
			"name":   "Ada",
			"count":  3,
			"ratio":  1.0,
			"nested": map[string]interface{}{"list": []interface{}{1.5, "x"}},
			"empty":  map[string]interface{}{},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	lib, _ := newTestLibrary(t)

	for _, v := range roundTripValues() {
		encoded, err := lib.jsonEncode(v)
		require.NoError(t, err)
		decoded, err := lib.jsonDecode(encoded)
		require.NoError(t, err)
		assert.Equal(t, v, decoded, "value %#v via %s", v, encoded)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	lib, _ := newTestLibrary(t)

	for _, v := range roundTripValues() {
		encoded, err := lib.yamlEncode(v)
		require.NoError(t, err)
		decoded, err := lib.yamlDecode(encoded)
		require.NoError(t, err)
		assert.Equal(t, v, decoded, "value %#v via %s", v, encoded)
	}
}

func TestEncodeKeepsFloatMarker(t *testing.T) {
	lib, _ := newTestLibrary(t)

	encoded, err := lib.jsonEncode(map[string]interface{}{"ratio": 1.0, "count": 1, "tiny": 1e-7})
	require.NoError(t, err)
	assert.Equal(t, `{"count":1,"ratio":1.0,"tiny":1e-07}`, encoded)

	encoded, err = lib.yamlEncode([]interface{}{2.0, 2, 2.5})
	require.NoError(t, err)
	assert.Equal(t, "- 2.0\n- 2\n- 2.5\n", encoded)

	_, err = lib.jsonEncode(math.NaN())
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestJSONDecodeErrors(t *testing.T) {
	lib, _ := newTestLibrary(t)

	for _, input := range []string{"", "{", `{"a": 1} trailing`} {
		_, err := lib.jsonDecode(input)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation), "input %q", input)
	}

	big, err := lib.jsonDecode(`{"n": 12345678901234567890, "f": 1e3}`)
	require.NoError(t, err)
	m := big.(map[string]interface{})
	assert.Equal(t, 1.2345678901234567e19, m["n"])
	assert.Equal(t, 1000.0, m["f"])
}

func TestJSONEncodeError(t *testing.T) {
	lib, _ := newTestLibrary(t)

	_, err := lib.jsonEncode(map[string]interface{}{"fn": func() {}})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestYAMLSafeDecode(t *testing.T) {
	lib, _ := newTestLibrary(t)

	out, err := lib.yamlDecode("a: 1\nb: [x, y]\n1: numeric key\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": 1,
		"b": []interface{}{"x", "y"},
		"1": "numeric key",
	}, out)

	_, err = lib.yamlDecode("!!exec/command [\"rm -rf /\"]")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = lib.yamlDecode("value: !custom 3")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = lib.yamlDecode("a: [unclosed")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	out, err = lib.yamlDecode("")
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = lib.yamlDecode("explicit: !!str 12\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"explicit": "12"}, out)
}

func TestMakeList(t *testing.T) {
	assert.Equal(t, []interface{}{"a"}, makeList("a"))
	assert.Equal(t, []interface{}{1, 2}, makeList([]interface{}{1, 2}))
	assert.Equal(t, []interface{}{"x", "y"}, makeList([]string{"x", "y"}))
	assert.Equal(t, []interface{}{map[string]interface{}{"k": 1}}, makeList(map[string]interface{}{"k": 1}))
	assert.Equal(t, []interface{}{nil}, makeList(nil))
}

func TestCSVEncode(t *testing.T) {
	lib, _ := newTestLibrary(t)

	tests := []struct {
		name     string
		args     []interface{}
		expected string
	}{
		{"default", []interface{}{[]interface{}{"a", 1, 2.5, nil}}, "a,1,2.5,\r\n"},
		{"minimal quoting", []interface{}{[]interface{}{"has,comma", `has "quote"`, "line\nbreak"}}, "\"has,comma\",\"has \"\"quote\"\"\",\"line\nbreak\"\r\n"},
		{"delimiter", []interface{}{"delimiter", ";", "lineterminator", "\n", []interface{}{"a;b", "c"}}, "\"a;b\";c\n"},
		{"quote all", []interface{}{"quoting", "all", []interface{}{"a", 1}}, "\"a\",\"1\"\r\n"},
		{"quote nonnumeric", []interface{}{"quoting", "nonnumeric", []interface{}{"a", 1}}, "\"a\",1\r\n"},
		{"custom quotechar", []interface{}{"quotechar", "'", []interface{}{"it's", "x,y"}}, "'it''s','x,y'\r\n"},
		{"string row", []interface{}{[]string{"x", "y"}}, "x,y\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := lib.csvEncode(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	for _, args := range [][]interface{}{
		{},
		{"delimiter", []interface{}{"a"}},
		{"delimiter", ";;", []interface{}{"a"}},
		{"quoting", "sometimes", []interface{}{"a"}},
		{"bogus", "x", []interface{}{"a"}},
	} {
		_, err := lib.csvEncode(args...)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation), "args %v", args)
	}
}

func TestJMESPath(t *testing.T) {
	lib, _ := newTestLibrary(t)

	data := map[string]interface{}{
		"alerts": []interface{}{
			map[string]interface{}{"name": "cpu", "state": "firing"},
			map[string]interface{}{"name": "disk", "state": "ok"},
		},
	}

	out, err := lib.jmespath("alerts[?state=='firing'].name", data)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"cpu"}, out)

	_, err = lib.jmespath("alerts[?", data)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
