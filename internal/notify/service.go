package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/movingops/jobreport-backend/internal/jobs"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/db/models"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/enums"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/mailer"
)

const (
	OutcomeSent      = "sent"
	OutcomeNoJobs    = "no_jobs"
	OutcomeDuplicate = "already_sent"
)

// TodayLister lists the current business day's jobs.
type TodayLister interface {
	TodayJobs(ctx context.Context) ([]jobs.Job, error)
}

// ServiceParams wires the reminder service.
type ServiceParams struct {
	Jobs       TodayLister
	Repository Repository
	Sender     mailer.Sender
	Clock      *bizclock.Clock
	Logger     *logger.Logger
	BaseURL    string
	From       string
	To         string
}

// Service sends the daily "fill out the report" reminder at most once per day.
type Service struct {
	jobs    TodayLister
	repo    Repository
	sender  mailer.Sender
	clock   *bizclock.Clock
	logg    *logger.Logger
	baseURL string
	from    string
	to      string
}

// Result describes what a reminder check did.
type Result struct {
	Date    string `json:"date"`
	Jobs    int    `json:"jobs"`
	Outcome string `json:"outcome"`
	Link    string `json:"link,omitempty"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Jobs == nil {
		return nil, errors.New("job lister required")
	}
	if params.Repository == nil {
		return nil, errors.New("notification repository required")
	}
	if params.Sender == nil {
		return nil, errors.New("mail sender required")
	}
	if params.Clock == nil {
		return nil, errors.New("business clock required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	to := strings.TrimSpace(params.To)
	if to == "" {
		to = strings.TrimSpace(params.From)
	}
	return &Service{
		jobs:    params.Jobs,
		repo:    params.Repository,
		sender:  params.Sender,
		clock:   params.Clock,
		logg:    params.Logger,
		baseURL: params.BaseURL,
		from:    strings.TrimSpace(params.From),
		to:      to,
	}, nil
}

// CheckAndNotify emails the day's form link when today has jobs and no reminder was sent yet.
// force resends even when today's reminder is already logged.
func (s *Service) CheckAndNotify(ctx context.Context, force bool) (Result, error) {
	date := bizclock.FormatDate(s.clock.Today())
	ctx = s.logg.WithDate(ctx, date)
	link := jobs.FormLink(s.baseURL, "", date)
	result := Result{Date: date, Link: link}

	today, err := s.jobs.TodayJobs(ctx)
	if err != nil {
		s.logg.Error(ctx, "loading today's jobs failed", err)
		return result, err
	}
	result.Jobs = len(today)
	if len(today) == 0 {
		result.Outcome = OutcomeNoJobs
		s.logg.Info(ctx, "no jobs today; reminder skipped")
		return result, nil
	}

	if !force {
		prior, err := s.repo.Find(ctx, date, enums.NotificationKindDailyReminder)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading notification log")
		}
		if prior != nil {
			result.Outcome = OutcomeDuplicate
			s.logg.Info(s.logg.WithField(ctx, "sent_at", prior.SentAt), "reminder already sent today")
			return result, nil
		}
	}

	text, html, err := reminderBodies(len(today), link)
	if err != nil {
		return result, err
	}
	msg := mailer.Message{
		From:    s.from,
		To:      []string{s.to},
		Subject: Subject(len(today)),
		Text:    text,
		HTML:    html,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "fallback_link", link), "sending reminder failed; open the form link manually", err)
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("sending reminder failed; form link: %s", link))
	}

	entry := &models.NotificationLog{
		Date:      date,
		Kind:      enums.NotificationKindDailyReminder,
		Recipient: s.to,
		Subject:   msg.Subject,
		JobCount:  len(today),
		SentAt:    s.clock.Now().UTC(),
	}
	if err := s.repo.Record(ctx, entry); err != nil {
		// the mail went out; a missing log entry only risks a duplicate reminder
		s.logg.Error(ctx, "recording reminder failed", err)
	}
	result.Outcome = OutcomeSent
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(today)), "reminder sent")
	return result, nil
}
