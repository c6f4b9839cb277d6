package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/calendar"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/retry"
)

const (
	// FormMarker prefixes the report link written into event descriptions.
	FormMarker = "Job Report Form:"
	// FormPath is the report form route relative to the public base URL.
	FormPath = "/api/v1/reports/form"
)

var formLine = regexp.MustCompile(regexp.QuoteMeta(FormMarker) + `[ \t]*[^\s<]*`)

// Adapter turns calendar events into Jobs for a business-local day.
type Adapter struct {
	source     EventSource
	clock      *bizclock.Clock
	classifier *Classifier
	retry      retry.Policy
	logg       *logger.Logger
}

// NewAdapter wires the adapter dependencies.
func NewAdapter(source EventSource, clock *bizclock.Clock, classifier *Classifier, policy retry.Policy, logg *logger.Logger) (*Adapter, error) {
	if source == nil {
		return nil, errors.New("event source required")
	}
	if clock == nil {
		return nil, errors.New("business clock required")
	}
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Adapter{source: source, clock: clock, classifier: classifier, retry: policy, logg: logg}, nil
}

// Clock exposes the business clock used to resolve days.
func (a *Adapter) Clock() *bizclock.Clock {
	return a.clock
}

// FetchJobs returns the jobs starting on day in the business timezone, sorted by start time.
// A zero day means today.
func (a *Adapter) FetchJobs(ctx context.Context, day time.Time) ([]Job, error) {
	if day.IsZero() {
		day = a.clock.Today()
	}
	start, end := a.clock.DayWindow(day)
	ctx = a.withDate(ctx, bizclock.FormatDate(start))

	var events []calendar.Event
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		events, err = a.source.ListEvents(ctx, start, end)
		if err != nil && retry.IsTransient(err) && a.logg != nil {
			a.logg.Warn(ctx, "calendar fetch failed, retrying")
		}
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching calendar events")
	}

	jobs := make([]Job, 0, len(events))
	for _, ev := range events {
		jobs = append(jobs, a.toJob(ev))
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Start.Before(jobs[j].Start)
	})
	if a.logg != nil {
		a.logg.Info(a.logg.WithField(ctx, "count", len(jobs)), "calendar jobs loaded")
	}
	return jobs, nil
}

// TodayJobs returns today's jobs.
func (a *Adapter) TodayJobs(ctx context.Context) ([]Job, error) {
	return a.FetchJobs(ctx, a.clock.Today())
}

// TomorrowJobs returns tomorrow's jobs.
func (a *Adapter) TomorrowJobs(ctx context.Context) ([]Job, error) {
	return a.FetchJobs(ctx, a.clock.Tomorrow())
}

// YesterdayJobs returns yesterday's jobs.
func (a *Adapter) YesterdayJobs(ctx context.Context) ([]Job, error) {
	return a.FetchJobs(ctx, a.clock.Yesterday())
}

// LinkForm writes the report link into the event description, replacing a previous link.
func (a *Adapter) LinkForm(ctx context.Context, jobID, link string) error {
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		ev, err := a.source.GetEvent(ctx, jobID)
		if err != nil {
			return err
		}
		updated := WithFormLink(ev.Description, link)
		if updated == ev.Description {
			return nil
		}
		return a.source.UpdateDescription(ctx, jobID, updated)
	})
	if err != nil {
		return fmt.Errorf("linking report form to event %s: %w", jobID, err)
	}
	return nil
}

func (a *Adapter) toJob(ev calendar.Event) Job {
	summary := strings.TrimSpace(ev.Summary)
	if summary == "" {
		summary = UntitledSummary
	}
	location := strings.TrimSpace(ev.Location)
	if location == "" {
		location = NoLocation
	}
	return Job{
		ID:       ev.ID,
		Summary:  summary,
		Start:    ev.Start,
		Location: location,
		Source:   a.classifier.Classify(ev.Description, ev.ColorID),

		FormLinked: formLine.MatchString(ev.Description),
	}
}

func (a *Adapter) withDate(ctx context.Context, date string) context.Context {
	if a.logg == nil {
		return ctx
	}
	return a.logg.WithDate(ctx, date)
}

// WithFormLink replaces the marker line in description or appends one.
func WithFormLink(description, link string) string {
	line := FormMarker + " " + link
	if formLine.MatchString(description) {
		return formLine.ReplaceAllLiteralString(description, line)
	}
	if strings.TrimSpace(description) == "" {
		return line
	}
	return strings.TrimRight(description, "\n") + "\n\n" + line
}

// FormLink builds the per-job report URL. An empty jobID yields the whole-day form link.
func FormLink(baseURL, jobID, date string) string {
	q := url.Values{}
	if jobID != "" {
		q.Set("job_id", jobID)
	}
	if date != "" {
		q.Set("date", date)
	}
	link := strings.TrimRight(baseURL, "/") + FormPath
	if encoded := q.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return link
}
