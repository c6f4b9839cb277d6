package jobs

import (
	"context"
	"time"

	"github.com/movingops/jobreport-backend/pkg/calendar"
	"github.com/movingops/jobreport-backend/pkg/enums"
)

const (
	UntitledSummary = "Untitled Job"
	NoLocation      = "No Location"
)

// Job is a scheduled calendar event projected for reporting.
type Job struct {
	ID       string          `json:"id"`
	Summary  string          `json:"summary"`
	Start    time.Time       `json:"start"`
	Location string          `json:"location"`
	Source   enums.JobSource `json:"source"`

	// FormLinked is set when the event description already carries a report form line.
	FormLinked bool `json:"-"`
}

// EventSource is the calendar surface the adapter depends on.
type EventSource interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error)
	GetEvent(ctx context.Context, eventID string) (calendar.Event, error)
	UpdateDescription(ctx context.Context, eventID, description string) error
}
