package jobs

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/calendar"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/enums"
	"github.com/movingops/jobreport-backend/pkg/retry"
)

type fakeSource struct {
	events      []calendar.Event
	listErrs    []error
	listCalls   int
	gotMin      time.Time
	gotMax      time.Time
	byID        map[string]calendar.Event
	updated     map[string]string
	updateCalls int
}

func (f *fakeSource) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error) {
	f.listCalls++
	f.gotMin, f.gotMax = timeMin, timeMax
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return nil, err
	}
	return f.events, nil
}

func (f *fakeSource) GetEvent(_ context.Context, id string) (calendar.Event, error) {
	ev, ok := f.byID[id]
	if !ok {
		return calendar.Event{}, &googleapi.Error{Code: http.StatusNotFound}
	}
	return ev, nil
}

func (f *fakeSource) UpdateDescription(_ context.Context, id, description string) error {
	f.updateCalls++
	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[id] = description
	ev := f.byID[id]
	ev.Description = description
	f.byID[id] = ev
	return nil
}

func testClock(t *testing.T) *bizclock.Clock {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2026, 2, 10, 20, 0, 0, 0, time.UTC)
	return bizclock.New(loc, func() time.Time { return now })
}

func newAdapter(t *testing.T, src EventSource) *Adapter {
	t.Helper()
	a, err := NewAdapter(src, testClock(t), nil, retry.Policy{Attempts: 3}, nil)
	require.NoError(t, err)
	return a
}

func TestFetchJobsDefaultsToTodayAndSorts(t *testing.T) {
	clock := testClock(t)
	day := clock.Today()
	src := &fakeSource{events: []calendar.Event{
		{ID: "late", Summary: "Afternoon move", Start: day.Add(14 * time.Hour), ColorID: "2"},
		{ID: "early", Start: day.Add(8 * time.Hour), Description: "Source: Yelp"},
	}}
	a := newAdapter(t, src)

	jobs, err := a.FetchJobs(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "2026-02-10T00:00:00-08:00", src.gotMin.Format(time.RFC3339))
	assert.Equal(t, "2026-02-11T00:00:00-08:00", src.gotMax.Format(time.RFC3339))

	assert.Equal(t, "early", jobs[0].ID)
	assert.Equal(t, "Untitled Job", jobs[0].Summary)
	assert.Equal(t, "No Location", jobs[0].Location)
	assert.Equal(t, enums.JobSourceYelp, jobs[0].Source)
	assert.Equal(t, enums.JobSourceGoogleLSA, jobs[1].Source)
}

func TestFetchJobsMarksLinkedEvents(t *testing.T) {
	day := testClock(t).Today()
	src := &fakeSource{events: []calendar.Event{
		{ID: "linked", Start: day.Add(8 * time.Hour), Description: "notes\n\nJob Report Form: https://reports.example.com/report?job_id=linked"},
		{ID: "bare", Start: day.Add(9 * time.Hour), Description: "notes"},
	}}

	jobs, err := newAdapter(t, src).FetchJobs(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].FormLinked)
	assert.False(t, jobs[1].FormLinked)
}

func TestFetchJobsRetriesTransientFailures(t *testing.T) {
	src := &fakeSource{listErrs: []error{&googleapi.Error{Code: http.StatusTooManyRequests}}}
	a := newAdapter(t, src)

	jobs, err := a.TomorrowJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 2, src.listCalls)
	assert.Equal(t, "2026-02-11", bizclock.FormatDate(src.gotMin))
}

func TestFetchJobsSurfacesDependencyError(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	src := &fakeSource{listErrs: []error{unavailable, unavailable, unavailable, unavailable}}
	a := newAdapter(t, src)

	_, err := a.YesterdayJobs(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, src.listCalls)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
}

func TestLinkFormReplacesExistingLink(t *testing.T) {
	src := &fakeSource{byID: map[string]calendar.Event{
		"evt-1": {ID: "evt-1", Description: "3 bedroom\n\nJob Report Form: http://old/form?job_id=evt-1"},
	}}
	a := newAdapter(t, src)

	link := FormLink("http://localhost:5001/", "evt-1", "2026-02-11")
	require.NoError(t, a.LinkForm(context.Background(), "evt-1", link))
	assert.Equal(t, "3 bedroom\n\nJob Report Form: http://localhost:5001/api/v1/reports/form?date=2026-02-11&job_id=evt-1", src.updated["evt-1"])

	// Same link again is a no-op.
	require.NoError(t, a.LinkForm(context.Background(), "evt-1", link))
	assert.Equal(t, 1, src.updateCalls)
}

func TestLinkFormMissingEvent(t *testing.T) {
	a := newAdapter(t, &fakeSource{byID: map[string]calendar.Event{}})
	assert.Error(t, a.LinkForm(context.Background(), "ghost", "http://x"))
}

func TestWithFormLink(t *testing.T) {
	assert.Equal(t, "Job Report Form: http://a", WithFormLink("", "http://a"))
	assert.Equal(t, "notes\n\nJob Report Form: http://a", WithFormLink("notes\n", "http://a"))
	assert.Equal(t, "<b>x</b> Job Report Form: http://b<br>end", WithFormLink("<b>x</b> Job Report Form: http://a<br>end", "http://b"))
}

func TestFormLink(t *testing.T) {
	assert.Equal(t, "https://reports.example.com/api/v1/reports/form?date=2026-02-10", FormLink("https://reports.example.com", "", "2026-02-10"))
}
