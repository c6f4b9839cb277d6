package reports

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movingops/jobreport-backend/internal/guard"
	"github.com/movingops/jobreport-backend/internal/jobs"
	"github.com/movingops/jobreport-backend/internal/ledger"
	"github.com/movingops/jobreport-backend/internal/ledger/memory"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/enums"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

type fakeLister struct {
	jobs map[string][]jobs.Job
	err  error
	days []string
}

func (f *fakeLister) FetchJobs(_ context.Context, day time.Time) ([]jobs.Job, error) {
	date := bizclock.FormatDate(day)
	f.days = append(f.days, date)
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs[date], nil
}

type fixture struct {
	svc     *Service
	store   *ledger.Store
	backend *memory.Backend
	lister  *fakeLister
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2026, 2, 10, 18, 30, 0, 0, time.UTC)
	clock := bizclock.New(loc, func() time.Time { return now })

	backend := memory.New()
	store, err := ledger.NewStore(backend, clock, nil)
	require.NoError(t, err)
	g, err := guard.New(store)
	require.NoError(t, err)
	lister := &fakeLister{jobs: map[string][]jobs.Job{}}
	svc, err := NewService(ServiceParams{
		Ledger: store,
		Guard:  g,
		Jobs:   lister,
		Clock:  clock,
		Logger: logger.New(logger.Options{ServiceName: "reports-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, backend: backend, lister: lister}
}

func (f *fixture) prepopulate(t *testing.T, date, id string) {
	t.Helper()
	_, err := f.store.CreateRow(context.Background(), ledger.NewRow{Date: date, JobID: id, Summary: "Move " + id, Source: enums.JobSourceYelp})
	require.NoError(t, err)
}

func (f *fixture) row(t *testing.T, id string) ledger.LedgerRow {
	t.Helper()
	ref, ok, err := f.store.FindRow(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "row %s missing", id)
	return ref.Data
}

func TestSubmitJobUpdatesPrepopulatedRow(t *testing.T) {
	f := newFixture(t)
	f.prepopulate(t, "2026-02-10", "a")

	ref, err := f.svc.SubmitJob(context.Background(), SubmissionInput{
		JobID: "a", Status: "Yes", TotalRevenue: "450", NetRevenue: "", PaymentType: "Zelle",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "Feb 2026", ref.Table)

	row := f.row(t, "a")
	assert.Equal(t, "Yes", row.Status)
	assert.Equal(t, "450", row.TotalRevenue)
	assert.Equal(t, "0", row.NetRevenue)
	assert.Equal(t, "Zelle", row.PaymentType)
	assert.Equal(t, "2026-02-10 10:30:00", row.SubmittedAt)
	assert.Equal(t, "Move a", row.Summary)
	assert.Equal(t, "Yelp", row.Source)
}

func TestSubmitJobRejectsDoubleSubmissionUnlessOverridden(t *testing.T) {
	f := newFixture(t)
	f.prepopulate(t, "2026-02-10", "a")
	ctx := context.Background()
	in := SubmissionInput{JobID: "a", Status: "Cancelled"}

	_, err := f.svc.SubmitJob(ctx, in, false)
	require.NoError(t, err)

	_, err = f.svc.SubmitJob(ctx, in, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	in.Status = "Rescheduled"
	_, err = f.svc.SubmitJob(ctx, in, true)
	require.NoError(t, err)
	assert.Equal(t, "Rescheduled", f.row(t, "a").Status)
}

func TestSubmitJobUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitJob(context.Background(), SubmissionInput{JobID: "ghost", Status: "Other"}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, f.backend.Rows("Feb 2026"))
}

func TestSubmitJobValidationWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.prepopulate(t, "2026-02-10", "a")
	updates := f.backend.Calls("Update")

	_, err := f.svc.SubmitJob(context.Background(), SubmissionInput{
		JobID: "a", Status: "Yes", TotalRevenue: "-5", PaymentType: "Cash",
	}, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, updates, f.backend.Calls("Update"))
	assert.Empty(t, f.row(t, "a").Status)
}

func TestSubmitDayAppendsAndGuardsDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.SubmitDay(ctx, "2026-02-10", []SubmissionInput{
		{JobID: "b", Summary: "Move b", Status: "Yes", TotalRevenue: "100", PaymentType: "Cash", Source: "Google LSA"},
		{JobID: "a", Summary: "Move a", Status: "Cancelled", Source: "nonsense"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, result.Created)
	assert.Equal(t, "Google LSA", f.row(t, "b").Source)
	assert.Equal(t, "Other", f.row(t, "a").Source)

	_, err = f.svc.SubmitDay(ctx, "2026-02-10", []SubmissionInput{{JobID: "c", Status: "Other"}}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	result, err = f.svc.SubmitDay(ctx, "2026-02-10", []SubmissionInput{{JobID: "c", Status: "Other"}}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, result.Created)
}

func TestSubmitDaySkipsDateGuardForPrepopulatedJobs(t *testing.T) {
	f := newFixture(t)
	f.prepopulate(t, "2026-02-10", "a")
	f.prepopulate(t, "2026-02-10", "b")

	result, err := f.svc.SubmitDay(context.Background(), "2026-02-10", []SubmissionInput{
		{JobID: "a", Status: "Yes", TotalRevenue: "200", PaymentType: "Card"},
		{JobID: "walk-in", Summary: "Walk in", Status: "Other"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Updated)
	assert.Equal(t, []string{"walk-in"}, result.Created)
	assert.Equal(t, "Yes", f.row(t, "a").Status)
	assert.Empty(t, f.row(t, "b").Status)
}

func TestSubmitDayRejectsWholeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitDay(ctx, "2026-02-10", []SubmissionInput{
		{JobID: "a", Status: "Other"},
		{JobID: "b", Status: "Yes", TotalRevenue: "ten", PaymentType: "Cash"},
	}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.backend.Rows("Feb 2026"))

	_, err = f.svc.SubmitDay(ctx, "2026-02-10", []SubmissionInput{{JobID: "a", Status: "Other"}, {JobID: "a", Status: "Other"}}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.SubmitDay(ctx, "02/10/2026", []SubmissionInput{{JobID: "a", Status: "Other"}}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.SubmitDay(ctx, "2026-02-10", nil, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSubmitDayFailedWriteCanBeRetried(t *testing.T) {
	f := newFixture(t)
	f.prepopulate(t, "2026-02-10", "a")
	ctx := context.Background()
	batch := []SubmissionInput{
		{JobID: "a", Status: "Yes", TotalRevenue: "200", PaymentType: "Card"},
		{JobID: "walk-in", Summary: "Walk in", Status: "Other"},
	}

	f.backend.Fail("InsertRows", errors.New("503 backend error"))
	_, err := f.svc.SubmitDay(ctx, "2026-02-10", batch, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, f.row(t, "a").Status)
	assert.Empty(t, f.row(t, "a").TotalRevenue)

	f.backend.Fail("InsertRows", nil)
	result, err := f.svc.SubmitDay(ctx, "2026-02-10", batch, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Updated)
	assert.Equal(t, []string{"walk-in"}, result.Created)
	assert.Equal(t, "Yes", f.row(t, "a").Status)
}

func TestSubmitDayRejectsReportedJob(t *testing.T) {
	f := newFixture(t)
	f.prepopulate(t, "2026-02-10", "a")
	ctx := context.Background()
	_, err := f.svc.SubmitJob(ctx, SubmissionInput{JobID: "a", Status: "Other"}, false)
	require.NoError(t, err)

	_, err = f.svc.SubmitDay(ctx, "2026-02-10", []SubmissionInput{{JobID: "a", Status: "Cancelled"}}, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, "Other", f.row(t, "a").Status)
}

func TestFormListsDayJobs(t *testing.T) {
	f := newFixture(t)
	loc := time.FixedZone("PST", -8*3600)
	f.lister.jobs["2026-02-10"] = []jobs.Job{
		{ID: "a", Summary: "Move a", Location: "1 Main St", Start: time.Date(2026, 2, 10, 9, 0, 0, 0, loc), Source: enums.JobSourceYelp},
		{ID: "b", Summary: "Move b", Location: jobs.NoLocation, Source: enums.JobSourceOther},
	}

	form, err := f.svc.Form(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-10", form.Date)
	assert.False(t, form.SingleJobMode)
	require.Len(t, form.Jobs, 2)
	assert.Equal(t, "9:00 AM", form.Jobs[0].Start)
	assert.Equal(t, FormHidden{JobID: "a", Date: "2026-02-10", Source: "Yelp"}, form.Jobs[0].Hidden)
	assert.Empty(t, form.Jobs[1].Start)
	assert.Equal(t, []string{"Yes", "Cancelled", "Rescheduled", "Other", "Completed"}, form.StatusOptions)
	assert.Equal(t, []string{"Yes", "Completed"}, form.PaymentRequiredFor)
}

func TestFormSingleJobMode(t *testing.T) {
	f := newFixture(t)
	f.lister.jobs["2026-02-11"] = []jobs.Job{
		{ID: "a", Summary: "Move a", Location: "x", Source: enums.JobSourceYelp},
		{ID: "b", Summary: "Move b", Location: "y", Source: enums.JobSourceOther},
	}
	f.prepopulate(t, "2026-02-11", "b")
	f.prepopulate(t, "2026-02-11", "moved")
	ctx := context.Background()

	form, err := f.svc.Form(ctx, "2026-02-11", "b")
	require.NoError(t, err)
	assert.True(t, form.SingleJobMode)
	require.Len(t, form.Jobs, 1)
	assert.Equal(t, "b", form.Jobs[0].JobID)
	assert.True(t, form.Jobs[0].Hidden.SingleJobMode)
	assert.False(t, form.Jobs[0].Reported)

	form, err = f.svc.Form(ctx, "2026-02-11", "moved")
	require.NoError(t, err)
	require.Len(t, form.Jobs, 1)
	assert.Equal(t, "Move moved", form.Jobs[0].Summary)
	assert.Equal(t, "Yelp", form.Jobs[0].Source)

	_, err = f.svc.Form(ctx, "2026-02-11", "ghost")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Form(ctx, "tomorrow", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
