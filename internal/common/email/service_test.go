package email

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	args := m.Called(ctx, from, to, msg)
	return args.Error(0)
}

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: io.Discard})
	require.NoError(t, err)
	return logger
}

func TestCompose(t *testing.T) {
	msg := &Message{
		From:    "Reports <reports@example.com>",
		To:      []string{"ada@example.com"},
		Cc:      []string{"Bob <bob@example.com>"},
		Bcc:     []string{"audit@example.com"},
		Subject: "Weekly report",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
		Attachments: []Attachment{
			{Filename: "report.csv", ContentType: "text/csv", Content: []byte("a,b\r\n")},
		},
		Headers: map[string]string{"X-Run": "42"},
	}

	raw, err := Compose(msg, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "audit@example.com")

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Weekly report", subject)
	assert.Equal(t, "42", mr.Header.Get("X-Run"))

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "ada@example.com", to[0].Address)

	cc, err := mr.Header.AddressList("Cc")
	require.NoError(t, err)
	require.Len(t, cc, 1)
	assert.Equal(t, "Bob", cc[0].Name)

	bodies := map[string]string{}
	var attachments []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(p.Body)
		require.NoError(t, err)

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, err := h.ContentType()
			require.NoError(t, err)
			bodies[ct] = string(content)
		case *mail.AttachmentHeader:
			name, err := h.Filename()
			require.NoError(t, err)
			attachments = append(attachments, name)
			assert.Equal(t, "a,b\r\n", string(content))
		}
	}

	assert.Equal(t, "plain body", bodies["text/plain"])
	assert.Equal(t, "<p>html body</p>", bodies["text/html"])
	assert.Equal(t, []string{"report.csv"}, attachments)
}

func TestComposeInvalidAddress(t *testing.T) {
	_, err := Compose(&Message{From: "not an address", To: []string{"a@example.com"}}, time.Now())
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = Compose(&Message{From: "a@example.com", To: []string{"@@"}}, time.Now())
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRecipients(t *testing.T) {
	msg := &Message{
		To:  []string{"A <a@example.com>"},
		Cc:  []string{"c@example.com"},
		Bcc: []string{"b@example.com", "garbage"},
	}
	assert.Equal(t, []string{"a@example.com", "c@example.com", "b@example.com"}, msg.Recipients())
}

func TestServiceSend(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "noreply@example.com",
		[]string{"a@example.com", "b@example.com"}, mock.MatchedBy(func(raw []byte) bool {
			return strings.Contains(string(raw), "Subject: Hello")
		})).Return(nil)

	svc := NewService(sender, "noreply@example.com", testLogger(t))
	err := svc.Send(context.Background(), &Message{
		To:      []string{"a@example.com"},
		Bcc:     []string{"b@example.com"},
		Subject: "Hello",
		Text:    "hi",
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestServiceSendErrors(t *testing.T) {
	sender := &mockSender{}
	svc := NewService(sender, "", testLogger(t))

	err := svc.Send(context.Background(), &Message{To: []string{"a@example.com"}})
	assert.True(t, errors.IsType(err, errors.ErrTypeNotConfigured))

	failing := &mockSender{}
	failing.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.ConnectionError("refused", nil))
	svc = NewService(failing, "noreply@example.com", testLogger(t))

	err = svc.Send(context.Background(), &Message{To: []string{"a@example.com"}, Subject: "x"})
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSMTPSenderRequiresHost(t *testing.T) {
	err := NewSMTPSender(SMTPConfig{}).Send(context.Background(), "a@example.com", []string{"b@example.com"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestSMTPSenderConnectionRefused(t *testing.T) {
	err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}).Send(context.Background(), "a@example.com", []string{"b@example.com"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestValidateEmailAddress(t *testing.T) {
	assert.True(t, ValidateEmailAddress("ada@example.com"))
	assert.True(t, ValidateEmailAddress("Ada <ada@example.com>"))
	assert.False(t, ValidateEmailAddress("ada@localhost"))
	assert.False(t, ValidateEmailAddress("nope"))
}
