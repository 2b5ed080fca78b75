package filters

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/gcs"
)

var expirationParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

func (l *Library) readGCSObject(url string) (string, error) {
	data, err := l.readObject("read_gcs_object", url, 0, -1)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// readGCSObjectRange reads the inclusive byte range [start, end]; a negative
// end reads to the end of the object
func (l *Library) readGCSObjectRange(start, end interface{}, url string) (string, error) {
	from, err := toInt64(start)
	if err != nil {
		return "", l.fail("read_gcs_object_range", err)
	}
	to, err := toInt64(end)
	if err != nil {
		return "", l.fail("read_gcs_object_range", err)
	}
	if from < 0 || (to >= 0 && to < from) {
		return "", l.fail("read_gcs_object_range", errors.ValidationError(fmt.Sprintf("invalid byte range %d-%d", from, to)))
	}

	length := int64(-1)
	if to >= 0 {
		length = to - from + 1
	}

	data, err := l.readObject("read_gcs_object_range", url, from, length)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (l *Library) readObject(fn, url string, offset, length int64) ([]byte, error) {
	bucket, object, err := gcs.ParseURL(fn, url)
	if err != nil {
		return nil, l.fail(fn, err)
	}
	if l.objects == nil {
		return nil, l.fail(fn, errors.ConfigError("object storage is not configured"))
	}

	var data []byte
	err = gcs.With(l.context(), l.objects, func(store gcs.Store) error {
		var readErr error
		data, readErr = store.Read(l.context(), bucket, object, offset, length)
		return readErr
	})
	if err != nil {
		return nil, l.fail(fn, err)
	}
	return data, nil
}

// generateSignedURL issues a V4 signed GET URL valid until the time described
// by expiration, e.g. "2 hours", "tomorrow 9am" or an RFC 3339 timestamp
func (l *Library) generateSignedURL(expiration, url string) (string, error) {
	bucket, object, err := gcs.ParseURL("generate_signed_url", url)
	if err != nil {
		return "", l.fail("generate_signed_url", err)
	}

	now := l.now().UTC()
	expires, err := ParseExpiration(expiration, now)
	if err != nil {
		return "", l.fail("generate_signed_url", err)
	}
	if l.objects == nil {
		return "", l.fail("generate_signed_url", errors.ConfigError("object storage is not configured"))
	}

	var signed string
	err = gcs.With(l.context(), l.objects, func(store gcs.Store) error {
		var signErr error
		signed, signErr = store.SignedURL(l.context(), bucket, object, expires)
		return signErr
	})
	if err != nil {
		return "", l.fail("generate_signed_url", err)
	}
	return signed, nil
}

// absoluteLayouts are tried before natural language parsing. Layouts without
// a zone are read as UTC.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseExpiration resolves an absolute date or a natural language time
// expression relative to now. Bare durations such as "2 hours" are read as
// "in 2 hours". A natural language expression must be consumed entirely and
// the result must lie in the future.
func ParseExpiration(expression string, now time.Time) (time.Time, error) {
	text := strings.TrimSpace(expression)
	if text == "" {
		return time.Time{}, errors.ValidationError("empty expiration")
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return checkFuture(expression, t.UTC(), now)
		}
	}
	if d, err := time.ParseDuration(text); err == nil {
		return checkFuture(expression, now.Add(d), now)
	}

	partial := ""
	for _, candidate := range []string{text, "in " + text} {
		result, err := expirationParser.Parse(candidate, now)
		if err != nil {
			return time.Time{}, errors.ValidationError(fmt.Sprintf("failed to parse expiration %q: %v", expression, err))
		}
		if result == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(result.Text), candidate) {
			return checkFuture(expression, result.Time.UTC(), now)
		}
		if partial == "" {
			partial = result.Text
		}
	}
	if partial != "" {
		return time.Time{}, errors.ValidationError(fmt.Sprintf("ambiguous expiration %q: only %q is a time expression", expression, strings.TrimSpace(partial)))
	}
	return time.Time{}, errors.ValidationError(fmt.Sprintf("failed to parse expiration %q", expression))
}

func checkFuture(expression string, t, now time.Time) (time.Time, error) {
	if !t.After(now) {
		return time.Time{}, errors.ValidationError(fmt.Sprintf("expiration %q is not in the future", expression))
	}
	return t, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, errors.ValidationError(fmt.Sprintf("%v is not an integer", n))
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, errors.ValidationError(fmt.Sprintf("%q is not an integer", n))
		}
		return i, nil
	default:
		return 0, errors.ValidationError(fmt.Sprintf("expected an integer, got %T", v))
	}
}
