package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/google"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

const listFields = "nextPageToken,items(id,summary,description,location,colorId,start,end)"

var (
	errCalendarRequired     = errors.New("calendar id is required")
	errClientNotInitialized = errors.New("calendar client not initialized")
)

// Event is the subset of a calendar event the job pipeline reads.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	ColorID     string
	Start       time.Time
	AllDay      bool
}

// Client reads and annotates events on one Google Calendar.
type Client struct {
	svc        *calendarapi.Service
	calendarID string
	loc        *time.Location
}

// NewClient builds a Calendar v3 client from config.
func NewClient(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	loc, err := cfg.Business.Location()
	if err != nil {
		return nil, err
	}
	svc, err := calendarapi.NewService(ctx, google.ClientOptions(cfg.Google, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	client, err := NewWithService(svc, cfg.Google.CalendarID, loc)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "calendar_id", client.calendarID), "calendar client initialized")
	}
	return client, nil
}

// NewWithService wraps an existing Calendar service. All-day events are anchored in loc.
func NewWithService(svc *calendarapi.Service, calendarID string, loc *time.Location) (*Client, error) {
	id := strings.TrimSpace(calendarID)
	if id == "" {
		return nil, errCalendarRequired
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{svc: svc, calendarID: id, loc: loc}, nil
}

// ListEvents returns single (expanded) events starting in [timeMin, timeMax), ordered by start time.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	if c == nil || c.svc == nil {
		return nil, errClientNotInitialized
	}
	call := c.svc.Events.List(c.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Fields(listFields)

	var events []Event
	err := call.Pages(ctx, func(page *calendarapi.Events) error {
		for _, item := range page.Items {
			if item == nil {
				continue
			}
			ev, err := c.toEvent(item)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// GetEvent fetches a single event.
func (c *Client) GetEvent(ctx context.Context, eventID string) (Event, error) {
	if c == nil || c.svc == nil {
		return Event{}, errClientNotInitialized
	}
	item, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("getting event %s: %w", eventID, err)
	}
	return c.toEvent(item)
}

// UpdateDescription patches only the event description.
func (c *Client) UpdateDescription(ctx context.Context, eventID, description string) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	patch := &calendarapi.Event{Description: description, ForceSendFields: []string{"Description"}}
	if _, err := c.svc.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patching event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) toEvent(item *calendarapi.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		ColorID:     item.ColorId,
	}
	if item.Start == nil {
		return ev, nil
	}
	switch {
	case item.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, fmt.Errorf("parsing start of event %s: %w", item.Id, err)
		}
		ev.Start = start.In(c.loc)
	case item.Start.Date != "":
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, c.loc)
		if err != nil {
			return Event{}, fmt.Errorf("parsing all-day start of event %s: %w", item.Id, err)
		}
		ev.Start = start
		ev.AllDay = true
	}
	return ev, nil
}
