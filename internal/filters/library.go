// Package filters provides the extension functions callable from pipeline
// templates: text helpers, structured encoders and decoders, hashing, URL
// parsing and Cloud Storage access.
//
// Functions take the value they operate on as their last argument so they
// chain with pipes:
//
//	{{ .event.data | b64decode | json_decode }}
//	{{ .report.url | generate_signed_url "2 hours" }}
//
// Every failure is logged at debug level and returned to the template engine,
// which aborts the expansion.
package filters

import (
	"context"
	"text/template"
	"time"

	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/gcs"
)

// Library holds the collaborators of the I/O backed functions. The functions
// themselves keep no state between calls.
type Library struct {
	objects gcs.Opener
	logger  logging.Logger
	now     func() time.Time
}

// Option customizes a Library
type Option func(*Library)

// WithClock overrides the time source used to resolve relative expirations
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

// NewLibrary creates the function library. objects may be nil, in which case
// the object storage functions fail with a configuration error.
func NewLibrary(objects gcs.Opener, logger logging.Logger, opts ...Option) *Library {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	l := &Library{
		objects: objects,
		logger:  logger.WithFields(logging.String("component", "filters")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FuncMap returns the functions keyed by their template name
func (l *Library) FuncMap() template.FuncMap {
	return template.FuncMap{
		// text
		"trim":          trim,
		"ltrim":         ltrim,
		"rtrim":         rtrim,
		"remove_mrkdwn": l.removeMrkdwn,
		"urlencode":     urlencode,
		"re_escape":     reEscape,
		"add_links":     addLinks,
		"parse_string":  l.parseString,
		"strip_html":    stripHTML,
		"markdown":      markdown,

		// structured data
		"make_list":          makeList,
		"json_encode":        l.jsonEncode,
		"json_decode":        l.jsonDecode,
		"yaml_encode":        l.yamlEncode,
		"yaml_decode":        l.yamlDecode,
		"csv_encode":         l.csvEncode,
		"jmespath":           l.jmespath,
		"html_table_to_xlsx": l.htmlTableToXLSX,

		// binary and encodings
		"b64decode":     l.b64decode,
		"b64encode":     b64encode,
		"read_file":     l.readFile,
		"read_file_b64": l.readFileB64,
		"filemagic":     l.filemagic,
		"hash_string":   l.hashString,

		// URLs and objects
		"parse_url":             l.parseURL,
		"read_gcs_object":       l.readGCSObject,
		"read_gcs_object_range": l.readGCSObjectRange,
		"generate_signed_url":   l.generateSignedURL,
		"uuid":                  newUUID,
	}
}

// fail logs a function failure and hands the error back to the caller
func (l *Library) fail(fn string, err error) error {
	l.logger.Debug("Template function failed",
		logging.String("function", fn),
		logging.Err(err),
	)
	return err
}

func (l *Library) context() context.Context {
	return context.Background()
}
