package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/movingops/jobreport-backend/internal/jobs"
	"github.com/movingops/jobreport-backend/internal/ledger"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/metrics"
)

const (
	PassTomorrow  = "tomorrow"
	PassYesterday = "yesterday"
	PassManual    = "manual"

	stageFetch  = "fetch"
	stageLookup = "lookup"
	stageCreate = "create"
	stageLink   = "link"
)

// JobSource supplies a day's jobs and annotates events with their report link.
type JobSource interface {
	FetchJobs(ctx context.Context, day time.Time) ([]jobs.Job, error)
	LinkForm(ctx context.Context, jobID, link string) error
}

// Ledger is the subset of the ledger store the driver writes through.
type Ledger interface {
	FindRow(ctx context.Context, jobID string) (ledger.RowRef, bool, error)
	CreateRow(ctx context.Context, row ledger.NewRow) (int, error)
}

// Failure records one job (or a whole pass fetch) that could not be processed.
type Failure struct {
	JobID string `json:"job_id,omitempty"`
	Stage string `json:"stage"`
	Error string `json:"error"`

	err error
}

// PassReport summarizes one day's pass.
type PassReport struct {
	Pass     string    `json:"pass"`
	Date     string    `json:"date"`
	Found    int       `json:"found"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures,omitempty"`
}

// Err combines the pass failures.
func (p PassReport) Err() error {
	var err error
	for _, f := range p.Failures {
		err = multierr.Append(err, f.err)
	}
	return err
}

// Report summarizes a reconciliation run.
type Report struct {
	Passes []PassReport `json:"passes"`
}

// Created counts rows created across passes.
func (r Report) Created() int {
	n := 0
	for _, p := range r.Passes {
		n += p.Created
	}
	return n
}

// Err combines every failure of the run, nil when all jobs succeeded.
func (r Report) Err() error {
	var err error
	for _, p := range r.Passes {
		err = multierr.Append(err, p.Err())
	}
	return err
}

// Driver prepopulates tomorrow's jobs and backfills yesterday's missing rows.
type Driver struct {
	source  JobSource
	ledger  Ledger
	clock   *bizclock.Clock
	baseURL string
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// Option configures optional driver behavior.
type Option func(*Driver)

// WithMetrics counts per-pass outcomes.
func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// NewDriver wires the driver dependencies.
func NewDriver(source JobSource, l Ledger, clock *bizclock.Clock, baseURL string, logg *logger.Logger, opts ...Option) (*Driver, error) {
	if source == nil {
		return nil, errors.New("job source required")
	}
	if l == nil {
		return nil, errors.New("ledger required")
	}
	if clock == nil {
		return nil, errors.New("business clock required")
	}
	d := &Driver{source: source, ledger: l, clock: clock, baseURL: baseURL, logg: logg}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Run executes the tomorrow pass then the yesterday pass. The passes are independent:
// a failure in one never skips the other. Per-job failures are isolated in the report.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	var report Report
	report.Passes = append(report.Passes, d.runPass(ctx, PassTomorrow, d.clock.Tomorrow()))
	report.Passes = append(report.Passes, d.runPass(ctx, PassYesterday, d.clock.Yesterday()))
	d.info(d.field(ctx, "created", report.Created()), "reconciliation complete")
	return report, report.Err()
}

// RunDay reconciles a single business day.
func (d *Driver) RunDay(ctx context.Context, day time.Time) (PassReport, error) {
	pass := d.runPass(ctx, PassManual, d.clock.StartOfDay(day))
	return pass, pass.Err()
}

func (d *Driver) runPass(ctx context.Context, pass string, day time.Time) PassReport {
	date := bizclock.FormatDate(day)
	report := PassReport{Pass: pass, Date: date}
	ctx = d.field(ctx, "pass", pass)
	if d.logg != nil {
		ctx = d.logg.WithDate(ctx, date)
	}

	found, err := d.source.FetchJobs(ctx, day)
	if err != nil {
		report.Failures = append(report.Failures, newFailure("", stageFetch, err))
		d.metrics.AddReconciled(pass, "fetch_failed", 1)
		d.error(ctx, "fetching jobs failed", err)
		return report
	}
	report.Found = len(found)
	if len(found) == 0 {
		d.info(ctx, "no jobs scheduled")
		return report
	}

	for _, job := range found {
		created, failure := d.processJob(ctx, job, date)
		switch {
		case failure != nil:
			report.Failures = append(report.Failures, *failure)
		case created:
			report.Created++
		default:
			report.Skipped++
		}
	}
	d.metrics.AddReconciled(pass, "created", report.Created)
	d.metrics.AddReconciled(pass, "skipped", report.Skipped)
	d.metrics.AddReconciled(pass, "failed", len(report.Failures))
	d.info(d.fields(ctx, map[string]any{
		"found":   report.Found,
		"created": report.Created,
		"skipped": report.Skipped,
		"failed":  len(report.Failures),
	}), "pass complete")
	return report
}

// processJob creates a missing row and links the form. A row is never created twice.
// An existing unreported row whose event still lacks the form line is linked again.
func (d *Driver) processJob(ctx context.Context, job jobs.Job, date string) (bool, *Failure) {
	if d.logg != nil {
		ctx = d.logg.WithJobID(ctx, job.ID)
	}

	ref, exists, err := d.ledger.FindRow(ctx, job.ID)
	if err != nil {
		d.error(ctx, "ledger lookup failed", err)
		return false, failurePtr(job.ID, stageLookup, err)
	}
	if exists {
		if job.FormLinked || ref.Data.Reported() {
			return false, nil
		}
		if err := d.source.LinkForm(ctx, job.ID, jobs.FormLink(d.baseURL, job.ID, date)); err != nil {
			d.error(ctx, "relinking report form failed", err)
			return false, failurePtr(job.ID, stageLink, err)
		}
		d.info(ctx, "report form relinked")
		return false, nil
	}

	_, err = d.ledger.CreateRow(ctx, ledger.NewRow{Date: date, JobID: job.ID, Summary: job.Summary, Source: job.Source})
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return false, nil
	}
	if err != nil {
		d.error(ctx, "creating ledger row failed", err)
		return false, failurePtr(job.ID, stageCreate, err)
	}

	if err := d.source.LinkForm(ctx, job.ID, jobs.FormLink(d.baseURL, job.ID, date)); err != nil {
		d.error(ctx, "linking report form failed", err)
		return false, failurePtr(job.ID, stageLink, err)
	}
	d.info(ctx, "job prepopulated")
	return true, nil
}

func newFailure(jobID, stage string, err error) Failure {
	wrapped := fmt.Errorf("%s %s: %w", stage, jobID, err)
	if jobID == "" {
		wrapped = fmt.Errorf("%s: %w", stage, err)
	}
	return Failure{JobID: jobID, Stage: stage, Error: err.Error(), err: wrapped}
}

func failurePtr(jobID, stage string, err error) *Failure {
	f := newFailure(jobID, stage, err)
	return &f
}

func (d *Driver) field(ctx context.Context, key string, value any) context.Context {
	if d.logg == nil {
		return ctx
	}
	return d.logg.WithField(ctx, key, value)
}

func (d *Driver) fields(ctx context.Context, fields map[string]any) context.Context {
	if d.logg == nil {
		return ctx
	}
	return d.logg.WithFields(ctx, fields)
}

func (d *Driver) info(ctx context.Context, msg string) {
	if d.logg != nil {
		d.logg.Info(ctx, msg)
	}
}

func (d *Driver) error(ctx context.Context, msg string, err error) {
	if d.logg != nil {
		d.logg.Error(ctx, msg, err)
	}
}
