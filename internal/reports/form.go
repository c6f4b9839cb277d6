package reports

import (
	"context"
	"strings"

	"github.com/movingops/jobreport-backend/internal/jobs"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/enums"
)

// Form is the model a client renders as the crew report form.
type Form struct {
	Date               string    `json:"date"`
	SingleJobMode      bool      `json:"single_job_mode"`
	Jobs               []FormJob `json:"jobs"`
	StatusOptions      []string  `json:"status_options"`
	PaymentRequiredFor []string  `json:"payment_required_for"`
}

// FormJob is one job entry of the form.
type FormJob struct {
	JobID    string     `json:"job_id"`
	Summary  string     `json:"summary"`
	Location string     `json:"location"`
	Start    string     `json:"start,omitempty"`
	Source   string     `json:"source"`
	Status   string     `json:"status,omitempty"`
	Reported bool       `json:"reported"`
	Hidden   FormHidden `json:"hidden"`
}

// FormHidden are the values posted back unchanged with the form.
type FormHidden struct {
	JobID         string `json:"job_id"`
	Date          string `json:"date"`
	Source        string `json:"source"`
	SingleJobMode bool   `json:"single_job_mode"`
}

// Form builds the report form for date, today when blank. A jobID narrows it to that job.
func (s *Service) Form(ctx context.Context, date, jobID string) (Form, error) {
	day := s.clock.Today()
	if strings.TrimSpace(date) != "" {
		parsed, err := s.clock.ParseDate(date)
		if err != nil {
			return Form{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid data: "+err.Error()).
				WithDetails(map[string]string{"field": "date"})
		}
		day = parsed
	}
	date = bizclock.FormatDate(day)
	jobID = strings.TrimSpace(jobID)
	single := jobID != ""
	ctx = s.logg.WithDate(ctx, date)

	found, err := s.jobs.FetchJobs(ctx, day)
	if err != nil {
		s.logg.Error(ctx, "loading jobs for form failed", err)
		return Form{}, err
	}

	form := Form{
		Date:               date,
		SingleJobMode:      single,
		Jobs:               []FormJob{},
		StatusOptions:      statusOptions(),
		PaymentRequiredFor: paymentStatuses(),
	}
	for _, job := range found {
		if single && job.ID != jobID {
			continue
		}
		form.Jobs = append(form.Jobs, formJob(job, date, single))
	}

	if single {
		entry, err := s.singleJob(ctx, form.Jobs, jobID, date)
		if err != nil {
			return Form{}, err
		}
		form.Jobs = []FormJob{entry}
	}
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(form.Jobs)), "form loaded")
	return form, nil
}

// singleJob resolves the one job of a single-job form, falling back to its ledger row
// when the event is no longer on the calendar for that date.
func (s *Service) singleJob(ctx context.Context, listed []FormJob, jobID, date string) (FormJob, error) {
	ref, exists, err := s.ledger.FindRow(ctx, jobID)
	if err != nil {
		return FormJob{}, err
	}
	if len(listed) > 0 {
		entry := listed[0]
		if exists {
			entry.Status = ref.Data.Status
			entry.Reported = ref.Data.Reported()
		}
		return entry, nil
	}
	if !exists {
		return FormJob{}, pkgerrors.New(pkgerrors.CodeNotFound, "job not found").
			WithDetails(map[string]string{"job_id": jobID, "date": date})
	}
	source := sourceOrOther(ref.Data.Source).String()
	return FormJob{
		JobID:    jobID,
		Summary:  ref.Data.Summary,
		Location: jobs.NoLocation,
		Source:   source,
		Status:   ref.Data.Status,
		Reported: ref.Data.Reported(),
		Hidden:   FormHidden{JobID: jobID, Date: ref.Data.Date, Source: source, SingleJobMode: true},
	}, nil
}

func formJob(job jobs.Job, date string, single bool) FormJob {
	entry := FormJob{
		JobID:    job.ID,
		Summary:  job.Summary,
		Location: job.Location,
		Source:   job.Source.String(),
		Hidden:   FormHidden{JobID: job.ID, Date: date, Source: job.Source.String(), SingleJobMode: single},
	}
	if !job.Start.IsZero() {
		entry.Start = job.Start.Format("3:04 PM")
	}
	return entry
}

func statusOptions() []string {
	statuses := enums.JobStatuses()
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, st.String())
	}
	return out
}

func paymentStatuses() []string {
	var out []string
	for _, st := range enums.JobStatuses() {
		if st.RequiresPayment() {
			out = append(out, st.String())
		}
	}
	return out
}
