package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/google"
)

const gmailUser = "me"

// GmailSender sends through the Gmail API as the authenticated user.
type GmailSender struct {
	svc *gmailapi.Service
	now func() time.Time
}

// NewGmailSender builds a Gmail client with the send scope.
func NewGmailSender(ctx context.Context, cfg config.GoogleConfig, opts ...option.ClientOption) (*GmailSender, error) {
	opts = append([]option.ClientOption{option.WithScopes(gmailapi.GmailSendScope)}, opts...)
	svc, err := gmailapi.NewService(ctx, google.ClientOptions(cfg, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return &GmailSender{svc: svc, now: time.Now}, nil
}

// Send implements Sender.
func (s *GmailSender) Send(ctx context.Context, msg Message) error {
	raw, err := Compose(msg, s.now())
	if err != nil {
		return err
	}
	out := &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := s.svc.Users.Messages.Send(gmailUser, out).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	return nil
}
