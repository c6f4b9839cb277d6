package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/movingops/jobreport-backend/internal/jobs"
	"github.com/movingops/jobreport-backend/internal/ledger"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/enums"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

// Ledger is the write surface of the ledger store used by submissions.
type Ledger interface {
	FindRow(ctx context.Context, jobID string) (ledger.RowRef, bool, error)
	UpdateRow(ctx context.Context, sub ledger.Submission) (ledger.RowRef, error)
	AppendRows(ctx context.Context, rows []ledger.LedgerRow) (ledger.AppendResult, error)
}

// Guard rejects duplicate reports.
type Guard interface {
	CheckDate(ctx context.Context, date string, override bool) error
	CheckJob(ctx context.Context, jobID string, override bool) (ledger.RowRef, bool, error)
}

// JobLister lists the scheduled jobs of a business day.
type JobLister interface {
	FetchJobs(ctx context.Context, day time.Time) ([]jobs.Job, error)
}

// ServiceParams wires the submission service.
type ServiceParams struct {
	Ledger Ledger
	Guard  Guard
	Jobs   JobLister
	Clock  *bizclock.Clock
	Logger *logger.Logger
}

// Service accepts crew reports and writes them to the ledger.
type Service struct {
	ledger Ledger
	guard  Guard
	jobs   JobLister
	clock  *bizclock.Clock
	logg   *logger.Logger
}

// NewService validates the wiring.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, errors.New("ledger required")
	}
	if params.Guard == nil {
		return nil, errors.New("guard required")
	}
	if params.Jobs == nil {
		return nil, errors.New("job lister required")
	}
	if params.Clock == nil {
		return nil, errors.New("business clock required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{
		ledger: params.Ledger,
		guard:  params.Guard,
		jobs:   params.Jobs,
		clock:  params.Clock,
		logg:   params.Logger,
	}, nil
}

// SubmitJob records a single job's report into its prepopulated row.
func (s *Service) SubmitJob(ctx context.Context, in SubmissionInput, override bool) (ledger.RowRef, error) {
	sub, err := Validate(in)
	if err != nil {
		s.logg.Warn(s.logg.WithJobID(ctx, in.JobID), "submission rejected: "+err.Error())
		return ledger.RowRef{}, err
	}
	ctx = s.logg.WithJobID(ctx, sub.JobID)

	if _, _, err := s.guard.CheckJob(ctx, sub.JobID, override); err != nil {
		return ledger.RowRef{}, err
	}
	ref, err := s.ledger.UpdateRow(ctx, sub)
	if err != nil {
		s.logFailure(ctx, "saving job report failed", err)
		return ledger.RowRef{}, err
	}
	s.logg.Info(s.logg.WithField(ctx, "status", sub.Status), "job report saved")
	return ref, nil
}

// SubmitDay records a whole day's reports. Every row is validated before anything is written.
// The date-level duplicate check only applies when none of the jobs were prepopulated.
func (s *Service) SubmitDay(ctx context.Context, date string, inputs []SubmissionInput, override bool) (ledger.AppendResult, error) {
	day, err := s.clock.ParseDate(date)
	if err != nil {
		return ledger.AppendResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid data: "+err.Error()).
			WithDetails(map[string]string{"field": "date"})
	}
	date = bizclock.FormatDate(day)
	ctx = s.logg.WithDate(ctx, date)
	if len(inputs) == 0 {
		return ledger.AppendResult{}, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data: No jobs submitted")
	}

	rows := make([]ledger.LedgerRow, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		sub, err := Validate(in)
		if err != nil {
			s.logg.Warn(ctx, "day submission rejected: "+err.Error())
			return ledger.AppendResult{}, err
		}
		if _, dup := seen[sub.JobID]; dup {
			return ledger.AppendResult{}, invalid(sub.JobID, "job_id", "Invalid data: Job submitted twice")
		}
		seen[sub.JobID] = struct{}{}
		rows = append(rows, ledger.LedgerRow{
			Date:         date,
			JobID:        sub.JobID,
			Summary:      strings.TrimSpace(in.Summary),
			Status:       sub.Status,
			TotalRevenue: sub.TotalRevenue,
			NetRevenue:   sub.NetRevenue,
			PaymentType:  sub.PaymentType,
			Source:       sourceOrOther(in.Source).String(),
		})
	}

	prepopulated := false
	for _, row := range rows {
		_, exists, err := s.guard.CheckJob(ctx, row.JobID, override)
		if err != nil {
			return ledger.AppendResult{}, err
		}
		prepopulated = prepopulated || exists
	}
	if !prepopulated {
		if err := s.guard.CheckDate(ctx, date, override); err != nil {
			return ledger.AppendResult{}, err
		}
	}

	result, err := s.ledger.AppendRows(ctx, rows)
	if err != nil {
		s.logFailure(ctx, "saving day report failed", err)
		return result, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"created": len(result.Created),
		"updated": len(result.Updated),
	}), "day report saved")
	return result, nil
}

func (s *Service) logFailure(ctx context.Context, msg string, err error) {
	if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		s.logg.Error(ctx, msg, err)
		return
	}
	s.logg.Warn(ctx, msg+": "+err.Error())
}

func sourceOrOther(raw string) enums.JobSource {
	src, err := enums.ParseJobSource(strings.TrimSpace(raw))
	if err != nil {
		return enums.JobSourceOther
	}
	return src
}
