package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/movingops/jobreport-backend/pkg/config"
)

const implicitTLSPort = 465

// SMTPSender delivers mail over SMTP with PLAIN auth. Port 465 uses implicit TLS, others STARTTLS.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	now      func() time.Time
}

// NewSMTPSender validates the SMTP settings.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.SMTPPort <= 0 {
		return nil, errors.New("smtp port is required")
	}
	if strings.TrimSpace(cfg.SMTPUsername) == "" || cfg.SMTPPassword == "" {
		return nil, errors.New("smtp username/password is required")
	}
	return &SMTPSender{
		host:     host,
		port:     cfg.SMTPPort,
		username: strings.TrimSpace(cfg.SMTPUsername),
		password: cfg.SMTPPassword,
		timeout:  cfg.Timeout,
		now:      time.Now,
	}, nil
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

func (s *SMTPSender) dial() (*smtp.Client, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: s.host}
	if s.port == implicitTLSPort {
		return smtp.DialTLS(s.addr(), tlsCfg)
	}
	return smtp.DialStartTLS(s.addr(), tlsCfg)
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	raw, err := Compose(msg, s.now())
	if err != nil {
		return err
	}

	c, err := s.dial()
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", s.addr(), err)
	}
	defer c.Close()

	if s.timeout > 0 {
		c.CommandTimeout = s.timeout
		c.SubmissionTimeout = s.timeout
	}

	// Best-effort close on context cancel.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.SendMail(msg.From, msg.To, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return c.Quit()
}
