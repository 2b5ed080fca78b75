// Package event decodes the message that triggers a pipeline run from the
// transports the service accepts: Pub/Sub push requests, pulled Pub/Sub
// messages and local JSON files.
package event

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	jsoniter "github.com/json-iterator/go"

	"pubsub2inbox/internal/common/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is a decoded triggering message. It is never modified once built.
type Event struct {
	ID           string
	Data         []byte
	Attributes   map[string]string
	PublishTime  time.Time
	Subscription string
}

// pushMessage is the message object inside a push envelope. Both the
// camelCase and snake_case spellings occur in the wild.
type pushMessage struct {
	Data         string            `json:"data"`
	Attributes   map[string]string `json:"attributes"`
	MessageID    string            `json:"messageId"`
	MessageIDAlt string            `json:"message_id"`
	PublishTime  string            `json:"publishTime"`
	PublishAlt   string            `json:"publish_time"`
}

type pushEnvelope struct {
	Message      *pushMessage `json:"message"`
	Subscription string       `json:"subscription"`
}

// FromPushRequest decodes the body of a Pub/Sub push request.
func FromPushRequest(body []byte) (*Event, error) {
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid push request: %v", err))
	}
	if envelope.Message == nil {
		return nil, errors.ValidationError("invalid push request: no message")
	}

	msg := envelope.Message
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid push request: message data is not base64: %v", err))
	}

	ev := &Event{
		ID:           firstNonEmpty(msg.MessageID, msg.MessageIDAlt),
		Data:         data,
		Attributes:   copyAttributes(msg.Attributes),
		Subscription: envelope.Subscription,
	}
	if published := firstNonEmpty(msg.PublishTime, msg.PublishAlt); published != "" {
		ev.PublishTime, err = time.Parse(time.RFC3339Nano, published)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid push request: publish time %q", published))
		}
	}
	return ev, nil
}

// FromPubSubMessage converts a pulled message.
func FromPubSubMessage(msg *pubsub.Message, subscription string) *Event {
	data := make([]byte, len(msg.Data))
	copy(data, msg.Data)
	return &Event{
		ID:           msg.ID,
		Data:         data,
		Attributes:   copyAttributes(msg.Attributes),
		PublishTime:  msg.PublishTime,
		Subscription: subscription,
	}
}

// fileEvent is the layout of an event file. data is base64, text is taken
// as-is; text wins when both are present.
type fileEvent struct {
	Data         string            `json:"data"`
	Text         *string           `json:"text"`
	Attributes   map[string]string `json:"attributes"`
	MessageID    string            `json:"messageId"`
	PublishTime  string            `json:"publishTime"`
	Subscription string            `json:"subscription"`
}

// FromJSON decodes an event document.
func FromJSON(raw []byte) (*Event, error) {
	var doc fileEvent
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid event document: %v", err))
	}

	ev := &Event{
		ID:           doc.MessageID,
		Attributes:   copyAttributes(doc.Attributes),
		Subscription: doc.Subscription,
	}
	if doc.Text != nil {
		ev.Data = []byte(*doc.Text)
	} else if doc.Data != "" {
		data, err := base64.StdEncoding.DecodeString(doc.Data)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid event document: data is not base64: %v", err))
		}
		ev.Data = data
	}
	if doc.PublishTime != "" {
		t, err := time.Parse(time.RFC3339Nano, doc.PublishTime)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid event document: publish time %q", doc.PublishTime))
		}
		ev.PublishTime = t
	}
	return ev, nil
}

// FromFile reads an event document from disk.
func FromFile(path string) (*Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NotFoundError(fmt.Sprintf("event file %s", path)).WithContext("cause", err.Error())
	}
	return FromJSON(raw)
}

// ToMap renders the event the way templates see it under .event.
func (e *Event) ToMap() map[string]interface{} {
	attributes := make(map[string]interface{}, len(e.Attributes))
	for k, v := range e.Attributes {
		attributes[k] = v
	}

	publishTime := ""
	if !e.PublishTime.IsZero() {
		publishTime = e.PublishTime.UTC().Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"data":         string(e.Data),
		"attributes":   attributes,
		"messageId":    e.ID,
		"publishTime":  publishTime,
		"subscription": e.Subscription,
	}
}

func copyAttributes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
