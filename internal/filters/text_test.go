package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pubsub2inbox/internal/common/errors"
)

func TestTrim(t *testing.T) {
	assert.Equal(t, "a b", trim(" \t a b \n"))
	assert.Equal(t, "a b \n", ltrim(" \t a b \n"))
	assert.Equal(t, " \t a b", rtrim(" \t a b \n"))
	assert.Equal(t, "x", trim(" x "))
}

func TestRemoveMrkdwn(t *testing.T) {
	lib, _ := newTestLibrary(t)

	tests := []struct {
		name     string
		args     []interface{}
		expected string
	}{
		{"link text kept", []interface{}{"see <https://example.com|the docs> now"}, "see the docs now"},
		{"link url kept", []interface{}{true, "see <https://example.com|the docs> now"}, "see https://example.com now"},
		{"bold", []interface{}{"this is *important*!"}, "this is important!"},
		{"strikethrough", []interface{}{"~gone~ here"}, "gone here"},
		{"italic default", []interface{}{"an _emphasis_ word"}, "an emphasis word"},
		{"italic disabled", []interface{}{false, false, "an _emphasis_ word"}, "an _emphasis_ word"},
		{"unicode bold", []interface{}{"*qualité*"}, "qualité"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := lib.removeMrkdwn(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	_, err := lib.removeMrkdwn()
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	_, err = lib.removeMrkdwn("yes", "text")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	_, err = lib.removeMrkdwn(42)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestURLEncode(t *testing.T) {
	assert.Equal(t, "/path/with%20space%3Fand%26", urlencode("/path/with space?and&"))
	assert.Equal(t, "a-b_c.d~e", urlencode("a-b_c.d~e"))
	assert.Equal(t, "%C3%A9", urlencode("é"))
}

func TestReEscape(t *testing.T) {
	assert.Equal(t, `a\.b\*c`, reEscape("a.b*c"))
}

func TestAddLinks(t *testing.T) {
	out := addLinks("visit https://example.com/x?y=1 or ftp://no")
	assert.Equal(t, `visit <a href="https://example.com/x?y=1">https://example.com/x?y=1</a> or ftp://no`, out)
	assert.Equal(t, "no links", addLinks("no links"))
}

func TestStripHTMLAndMarkdown(t *testing.T) {
	assert.Equal(t, "Hello world", stripHTML("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "<p><strong>bold</strong></p>\n", markdown("**bold**"))
}

func TestParseString(t *testing.T) {
	lib, _ := newTestLibrary(t)

	tests := []struct {
		name     string
		format   string
		input    string
		expected interface{}
	}{
		{
			name:     "named text",
			format:   "Alert {name} fired",
			input:    "Alert disk-full fired",
			expected: map[string]interface{}{"name": "disk-full"},
		},
		{
			name:     "typed fields",
			format:   "{user:w} uploaded {count:d} files ({size:f} MB)",
			input:    "ada uploaded 12 files (3.5 MB)",
			expected: map[string]interface{}{"user": "ada", "count": 12, "size": 3.5},
		},
		{
			name:     "case insensitive literal",
			format:   "project: {project:S}",
			input:    "PROJECT: my-proj",
			expected: map[string]interface{}{"project": "my-proj"},
		},
		{
			name:     "anonymous field ignored",
			format:   "{} -> {target:l}",
			input:    "source -> dest",
			expected: map[string]interface{}{"target": "dest"},
		},
		{
			name:     "escaped braces",
			format:   "{{{key}}}",
			input:    "{value}",
			expected: map[string]interface{}{"key": "value"},
		},
		{
			name:     "no match",
			format:   "Alert {name} fired",
			input:    "Something else",
			expected: nil,
		},
		{
			name:     "whole string only",
			format:   "{n:d}",
			input:    "12 apples",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := lib.parseString(tt.format, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	_, err := lib.parseString("{name:q}", "x")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	_, err = lib.parseString("{unterminated", "x")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestParseStringNoMatchInTemplate(t *testing.T) {
	lib, _ := newTestLibrary(t)

	out, err := render(t, lib, `{{ parse_string "id={id:d}" .text }}`, map[string]interface{}{"text": "nothing"})
	require.NoError(t, err)
	assert.Nil(t, out)
}
