package filters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/russross/blackfriday/v2"
	"mvdan.cc/xurls/v2"
	"pubsub2inbox/internal/common/errors"
)

var (
	mrkdwnLinkURL  = regexp.MustCompile(`<([^|]*)\|[^|]*>`)
	mrkdwnLinkText = regexp.MustCompile(`<[^|]*\|([^|]*)>`)
	mrkdwnBold     = regexp.MustCompile(`\*([\p{L}\p{N}_\s!?(){}.,:;+=&]+)\*`)
	mrkdwnStrike   = regexp.MustCompile(`~([\p{L}\p{N}_\s!?(){}.,:;+=&]+)~`)
	mrkdwnItalic   = regexp.MustCompile(`_([a-zA-Z0-9\s!?(){}.,:;+=&]+?)_`)

	bareLinks = func() *regexp.Regexp {
		re, err := xurls.StrictMatchingScheme(`https?://`)
		if err != nil {
			panic(err)
		}
		return re
	}()
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func ltrim(s string) string {
	return strings.TrimLeftFunc(s, unicode.IsSpace)
}

func rtrim(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// removeMrkdwn strips Slack mrkdwn markers. Arguments: [links [italic]] text.
// With links the URL of <url|text> is kept, otherwise the display text.
func (l *Library) removeMrkdwn(args ...interface{}) (string, error) {
	if len(args) == 0 || len(args) > 3 {
		return "", l.fail("remove_mrkdwn", errors.ValidationError("remove_mrkdwn expects [links] [italic] text"))
	}
	text, ok := args[len(args)-1].(string)
	if !ok {
		return "", l.fail("remove_mrkdwn", errors.ValidationError(fmt.Sprintf("remove_mrkdwn expects a string, got %T", args[len(args)-1])))
	}

	links, italic := false, true
	flags := args[:len(args)-1]
	for i, flag := range flags {
		b, ok := flag.(bool)
		if !ok {
			return "", l.fail("remove_mrkdwn", errors.ValidationError(fmt.Sprintf("remove_mrkdwn flag %d must be a bool, got %T", i, flag)))
		}
		if i == 0 {
			links = b
		} else {
			italic = b
		}
	}

	if links {
		text = mrkdwnLinkURL.ReplaceAllString(text, "${1}")
	} else {
		text = mrkdwnLinkText.ReplaceAllString(text, "${1}")
	}
	text = mrkdwnBold.ReplaceAllString(text, "${1}")
	text = mrkdwnStrike.ReplaceAllString(text, "${1}")
	if italic {
		text = mrkdwnItalic.ReplaceAllString(text, "${1}")
	}
	return text, nil
}

// urlencode percent-encodes everything except unreserved characters and '/'
func urlencode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func reEscape(s string) string {
	return regexp.QuoteMeta(s)
}

func addLinks(s string) string {
	return bareLinks.ReplaceAllStringFunc(s, func(link string) string {
		return fmt.Sprintf(`<a href="%s">%s</a>`, link, link)
	})
}

func stripHTML(s string) string {
	return strip.StripTags(s)
}

func markdown(s string) string {
	return string(blackfriday.Run([]byte(s)))
}

// parse_string formats look like "{name} sent {count:d} files". Supported
// field types: none (any text), d (integer), f (float), w (word characters),
// S (non-whitespace), l (letters). Matching is case-insensitive and must cover
// the whole input.

type parseField struct {
	name string
	kind string
}

type parsePattern struct {
	re     *regexp.Regexp
	fields []parseField
}

var parsePatterns sync.Map

func compileParseFormat(format string) (*parsePattern, error) {
	if cached, ok := parsePatterns.Load(format); ok {
		return cached.(*parsePattern), nil
	}

	var (
		expr   strings.Builder
		fields []parseField
	)
	expr.WriteString(`(?is)^`)

	for i := 0; i < len(format); {
		switch {
		case strings.HasPrefix(format[i:], "{{"):
			expr.WriteString(`\{`)
			i += 2
		case strings.HasPrefix(format[i:], "}}"):
			expr.WriteString(`\}`)
			i += 2
		case format[i] == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return nil, errors.ValidationError(fmt.Sprintf("unterminated field in format %q", format))
			}
			field := format[i+1 : i+end]
			name, kind, _ := strings.Cut(field, ":")
			pattern, err := fieldPattern(kind)
			if err != nil {
				return nil, err
			}
			if name == "" {
				expr.WriteString("(?:" + pattern + ")")
			} else {
				if !isIdentifier(name) {
					return nil, errors.ValidationError(fmt.Sprintf("invalid field name %q in format %q", name, format))
				}
				expr.WriteString("(?P<f" + strconv.Itoa(len(fields)) + ">" + pattern + ")")
				fields = append(fields, parseField{name: name, kind: kind})
			}
			i += end + 1
		default:
			expr.WriteString(regexp.QuoteMeta(format[i : i+1]))
			i++
		}
	}
	expr.WriteString(`$`)

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid format %q: %v", format, err))
	}
	pattern := &parsePattern{re: re, fields: fields}
	parsePatterns.Store(format, pattern)
	return pattern, nil
}

func fieldPattern(kind string) (string, error) {
	switch kind {
	case "":
		return `.+?`, nil
	case "d":
		return `[-+]?\d+`, nil
	case "f":
		return `[-+]?(?:\d+\.\d*|\.\d+|\d+)(?:[eE][-+]?\d+)?`, nil
	case "w":
		return `[\p{L}\p{N}_]+`, nil
	case "S":
		return `\S+`, nil
	case "l":
		return `\p{L}+`, nil
	default:
		return "", errors.ValidationError(fmt.Sprintf("unsupported field type %q", kind))
	}
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && (unicode.IsDigit(r) || r == '.')) {
			continue
		}
		return false
	}
	return s != ""
}

// parseString matches s against format and returns the named fields, or nil
// when s does not match
func (l *Library) parseString(format, s string) (interface{}, error) {
	pattern, err := compileParseFormat(format)
	if err != nil {
		return nil, l.fail("parse_string", err)
	}

	match := pattern.re.FindStringSubmatch(s)
	if match == nil {
		return nil, nil
	}

	result := make(map[string]interface{}, len(pattern.fields))
	for i, field := range pattern.fields {
		raw := match[pattern.re.SubexpIndex("f"+strconv.Itoa(i))]
		switch field.kind {
		case "d":
			n, err := strconv.Atoi(strings.TrimPrefix(raw, "+"))
			if err != nil {
				return nil, l.fail("parse_string", errors.ValidationError(fmt.Sprintf("field %s: %v", field.name, err)))
			}
			result[field.name] = n
		case "f":
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, l.fail("parse_string", errors.ValidationError(fmt.Sprintf("field %s: %v", field.name, err)))
			}
			result[field.name] = f
		default:
			result[field.name] = raw
		}
	}
	return result, nil
}
