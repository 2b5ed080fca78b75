package stages

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pubsub2inbox/internal/common/email"
	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/gcs"
	"pubsub2inbox/internal/pipeline/core"
)

// MailOutput sends an email through the configured SMTP service
type MailOutput struct {
	deps *Dependencies
}

type mailBody struct {
	Text string `config:"text"`
	HTML string `config:"html"`
}

type mailAttachment struct {
	Filename    string `config:"filename"`
	Content     string `config:"content"` // base64
	ContentType string `config:"contentType"`
}

func NewMailOutput(deps *Dependencies) *MailOutput {
	return &MailOutput{deps: deps}
}

func (o *MailOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("to", "subject"); err != nil {
		return err
	}
	if o.deps.Mail == nil {
		return errors.ConfigError("mail output requires SMTP settings").WithContext("stage", sc.Name)
	}

	msg := &email.Message{}
	var err error
	if msg.To, err = sc.ExpandStringList("to"); err != nil {
		return err
	}
	if msg.Cc, err = sc.ExpandStringList("cc"); err != nil {
		return err
	}
	if msg.Bcc, err = sc.ExpandStringList("bcc"); err != nil {
		return err
	}
	if msg.From, err = sc.ExpandString("from"); err != nil {
		return err
	}
	if msg.Subject, err = sc.ExpandString("subject"); err != nil {
		return err
	}
	if msg.Headers, err = sc.ExpandStringMap("headers"); err != nil {
		return err
	}

	rawBody, err := sc.ExpandValue("body")
	if err != nil {
		return err
	}
	if text, ok := rawBody.(string); ok {
		msg.Text = text
	} else {
		var body mailBody
		if err := core.DecodeValue(rawBody, &body); err != nil {
			return err
		}
		msg.Text, msg.HTML = body.Text, body.HTML
	}

	var attachments []mailAttachment
	if err := sc.Decode("attachments", &attachments); err != nil {
		return err
	}
	for i, a := range attachments {
		content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(a.Content))
		if err != nil {
			return errors.ValidationError(fmt.Sprintf("attachments[%d]: content is not valid base64: %v", i, err)).
				WithContext("stage", sc.Name)
		}
		if a.Filename == "" {
			return errors.NotConfiguredError(fmt.Sprintf("attachments[%d].filename", i)).WithContext("stage", sc.Name)
		}
		contentType := a.ContentType
		if contentType == "" {
			contentType = mimetype.Detect(content).String()
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    a.Filename,
			ContentType: contentType,
			Content:     content,
		})
	}

	return o.deps.Mail.Send(ctx, msg)
}

// WebhookOutput sends the expanded body to a URL, POST by default
type WebhookOutput struct {
	deps *Dependencies
}

func NewWebhookOutput(deps *Dependencies) *WebhookOutput {
	return &WebhookOutput{deps: deps}
}

func (o *WebhookOutput) Output(ctx context.Context, sc *core.StageContext) error {
	resp, err := doRequest(ctx, o.deps, sc, http.MethodPost)
	if err != nil {
		return err
	}
	sc.Logger.Info("Webhook delivered",
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", resp.Duration),
	)
	return nil
}

// GCSOutput writes an object to Cloud Storage
type GCSOutput struct {
	deps *Dependencies
}

func NewGCSOutput(deps *Dependencies) *GCSOutput {
	return &GCSOutput{deps: deps}
}

func (o *GCSOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("bucket", "object", "contents"); err != nil {
		return err
	}
	if o.deps.Storage == nil {
		return errors.ConfigError("gcs output requires a storage client").WithContext("stage", sc.Name)
	}

	bucket, err := sc.ExpandString("bucket")
	if err != nil {
		return err
	}
	object, err := sc.ExpandString("object")
	if err != nil {
		return err
	}
	contentType, err := sc.ExpandString("contentType")
	if err != nil {
		return err
	}
	decode, err := sc.ExpandBool("base64", false)
	if err != nil {
		return err
	}
	contents, err := expandPayload(sc, "contents")
	if err != nil {
		return err
	}
	if decode {
		contents, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(contents)))
		if err != nil {
			return errors.ValidationError(fmt.Sprintf("contents is not valid base64: %v", err)).WithContext("stage", sc.Name)
		}
	}
	if contentType == "" {
		contentType = mimetype.Detect(contents).String()
	}

	err = gcs.With(ctx, o.deps.Storage, func(store gcs.Store) error {
		return store.Write(ctx, bucket, object, contents, contentType)
	})
	if err != nil {
		return err
	}

	sc.Logger.Info("Object written",
		logging.String("bucket", bucket),
		logging.String("object", object),
		logging.Int("bytes", len(contents)),
	)
	return nil
}

// LoggerOutput writes a message to the application log
type LoggerOutput struct{}

func (o *LoggerOutput) Output(ctx context.Context, sc *core.StageContext) error {
	if err := sc.Require("message"); err != nil {
		return err
	}
	message, err := sc.ExpandString("message")
	if err != nil {
		return err
	}
	level, err := sc.ExpandStringDefault("level", "info")
	if err != nil {
		return err
	}

	switch strings.ToLower(level) {
	case "debug":
		sc.Logger.Debug(message)
	case "info":
		sc.Logger.Info(message)
	case "warn", "warning":
		sc.Logger.Warn(message)
	case "error":
		sc.Logger.Error(message, nil)
	default:
		return errors.ValidationError(fmt.Sprintf("unknown log level %q", level)).WithContext("stage", sc.Name)
	}
	return nil
}

// expandPayload expands key structurally; strings are used as is and
// anything else is JSON encoded
func expandPayload(sc *core.StageContext, key string) ([]byte, error) {
	value, err := sc.ExpandValue(key)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("%s is not JSON serializable: %v", key, err)).
				WithContext("stage", sc.Name)
		}
		return out, nil
	}
}

// expandDuration reads key as a Go duration ("90s", "1h") or a number of
// seconds; an absent key yields zero
func expandDuration(sc *core.StageContext, key string) (time.Duration, error) {
	value, err := sc.ExpandValue(key)
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(n * float64(time.Second)), nil
		}
	}
	return 0, errors.ValidationError(fmt.Sprintf("%s: %v is not a duration", key, value)).WithContext("stage", sc.Name)
}
