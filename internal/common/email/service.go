// Package email composes MIME messages and hands them to an SMTP relay.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/logging"
)

// SMTPConfig holds relay settings
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	UseTLS     bool // STARTTLS
	UseSSL     bool // implicit TLS
	SkipVerify bool
}

// Attachment is a file attached to a message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a composed but not yet encoded email
type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
	Headers     map[string]string
}

// Recipients returns every envelope recipient, Bcc included
func (m *Message) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	for _, list := range [][]string{m.To, m.Cc, m.Bcc} {
		for _, raw := range list {
			if addr, err := mail.ParseAddress(raw); err == nil {
				all = append(all, addr.Address)
			}
		}
	}
	return all
}

// Sender delivers an encoded message
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Service composes and sends messages
type Service struct {
	sender Sender
	from   string
	logger logging.Logger
	now    func() time.Time
}

// NewService creates a new email service that sends with sender. from is the
// default sender address.
func NewService(sender Sender, from string, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{
		sender: sender,
		from:   from,
		logger: logger.WithFields(logging.String("component", "email")),
		now:    time.Now,
	}
}

// Send composes msg and delivers it
func (s *Service) Send(ctx context.Context, msg *Message) error {
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" {
		return errors.NotConfiguredError("from")
	}

	raw, err := Compose(msg, s.now())
	if err != nil {
		return err
	}

	sender, err := mail.ParseAddress(msg.From)
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid sender address %q: %v", msg.From, err))
	}

	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return errors.ValidationError("message has no valid recipients")
	}

	if err := s.sender.Send(ctx, sender.Address, recipients, raw); err != nil {
		s.logger.Error("Failed to send email", err, logging.Int("recipients", len(recipients)))
		return err
	}

	s.logger.Info("Email sent",
		logging.String("subject", msg.Subject),
		logging.Int("recipients", len(recipients)),
		logging.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

// Compose encodes msg as a MIME message. Bcc recipients are left out of the
// headers.
func Compose(msg *Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(msg.Subject)

	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid sender address %q: %v", msg.From, err))
	}
	h.SetAddressList("From", []*mail.Address{from})

	for name, list := range map[string][]string{"To": msg.To, "Cc": msg.Cc} {
		if len(list) == 0 {
			continue
		}
		addrs, err := parseAddresses(list)
		if err != nil {
			return nil, err
		}
		h.SetAddressList(name, addrs)
	}
	for k, v := range msg.Headers {
		h.Set(k, v)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, errors.InternalError("failed to create message", err)
	}

	if err := writeBody(mw, msg); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			mediaType, params = "application/octet-stream", nil
		}
		ah.SetContentType(mediaType, params)
		ah.SetFilename(a.Filename)

		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, errors.InternalError("failed to create attachment", err)
		}
		if _, err := w.Write(a.Content); err != nil {
			return nil, errors.InternalError("failed to write attachment", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.InternalError("failed to close attachment", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, errors.InternalError("failed to finish message", err)
	}
	return buf.Bytes(), nil
}

func writeBody(mw *mail.Writer, msg *Message) error {
	tw, err := mw.CreateInline()
	if err != nil {
		return errors.InternalError("failed to create message body", err)
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		var th mail.InlineHeader
		th.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		w, err := tw.CreatePart(th)
		if err != nil {
			return errors.InternalError("failed to create message part", err)
		}
		if _, err := io.WriteString(w, part.body); err != nil {
			return errors.InternalError("failed to write message part", err)
		}
		if err := w.Close(); err != nil {
			return errors.InternalError("failed to close message part", err)
		}
	}

	if err := tw.Close(); err != nil {
		return errors.InternalError("failed to close message body", err)
	}
	return nil
}

func parseAddresses(list []string) ([]*mail.Address, error) {
	addrs := make([]*mail.Address, 0, len(list))
	for _, raw := range list {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid address %q: %v", raw, err))
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// SMTPSender delivers through an SMTP relay, opening one connection per
// message
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates a sender for cfg
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{config: cfg}
}

// Send implements Sender
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if s.config.Host == "" {
		return errors.ConfigError("no SMTP host configured")
	}
	port := s.config.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	tlsConfig := &tls.Config{
		ServerName:         s.config.Host,
		InsecureSkipVerify: s.config.SkipVerify,
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if s.config.UseSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return errors.ConnectionError(fmt.Sprintf("failed to connect to SMTP server %s", addr), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return errors.ConnectionError("failed to create SMTP client", err)
	}
	defer client.Close()

	if !s.config.UseSSL && s.config.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return errors.ConnectionError("SMTP server does not support STARTTLS", nil)
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return errors.ConnectionError("STARTTLS failed", err)
		}
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return errors.ConnectionError("SMTP authentication failed", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return errors.DownstreamError(fmt.Sprintf("sender %s refused", from), 0, err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return errors.DownstreamError(fmt.Sprintf("recipient %s refused", rcpt), 0, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.DownstreamError("DATA refused", 0, err)
	}
	if _, err := w.Write(msg); err != nil {
		return errors.ConnectionError("failed to write message", err)
	}
	if err := w.Close(); err != nil {
		return errors.DownstreamError("message refused", 0, err)
	}

	return client.Quit()
}

// ValidateEmailAddress reports whether s parses as an address with a dotted
// domain
func ValidateEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	at := strings.LastIndex(addr.Address, "@")
	return at > 0 && strings.Contains(addr.Address[at+1:], ".")
}
