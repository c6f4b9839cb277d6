package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

const (
	DriverSMTP    = "smtp"
	DriverWebhook = "webhook"
	DriverGmail   = "gmail"
)

var (
	errSenderRequired    = errors.New("mail sender address is required")
	errRecipientRequired = errors.New("mail recipient address is required")
)

// Message is a two-part (text + HTML) notification email.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a notification message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New selects the transport named by cfg.Mail.Driver.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Sender, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Mail.Driver))
	var (
		sender Sender
		err    error
	)
	switch driver {
	case "", DriverSMTP:
		sender, err = NewSMTPSender(cfg.Mail)
	case DriverWebhook:
		sender, err = NewWebhookSender(cfg.Mail, nil)
	case DriverGmail:
		sender, err = NewGmailSender(ctx, cfg.Google)
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "mail_driver", driver), "mailer initialized")
	}
	return sender, nil
}

func (m Message) validate() error {
	if strings.TrimSpace(m.From) == "" {
		return errSenderRequired
	}
	if len(m.To) == 0 {
		return errRecipientRequired
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return errRecipientRequired
		}
	}
	return nil
}

// Compose renders msg as an RFC 5322 multipart/alternative message.
func Compose(msg Message, now time.Time) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: strings.TrimSpace(addr)})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mail writer: %w", err)
	}
	tw, err := w.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline writer: %w", err)
	}
	if err := writePart(tw, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.HTML) != "" {
		if err := writePart(tw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing inline writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		_ = pw.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}
