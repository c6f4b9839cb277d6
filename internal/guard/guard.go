package guard

import (
	"context"
	"errors"

	"github.com/movingops/jobreport-backend/internal/ledger"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
)

// Ledger is the read surface of the ledger store used for duplicate checks.
type Ledger interface {
	RowExistsForDate(ctx context.Context, date string) (bool, error)
	FindRow(ctx context.Context, jobID string) (ledger.RowRef, bool, error)
}

// Guard prevents double form generation and double submission.
type Guard struct {
	ledger Ledger
}

// New builds a guard over the ledger.
func New(l Ledger) (*Guard, error) {
	if l == nil {
		return nil, errors.New("ledger required")
	}
	return &Guard{ledger: l}, nil
}

// DateExists reports whether the date already has any ledger row.
func (g *Guard) DateExists(ctx context.Context, date string) (bool, error) {
	return g.ledger.RowExistsForDate(ctx, date)
}

// CheckDate rejects a whole-day report when rows for the date exist, unless overridden.
func (g *Guard) CheckDate(ctx context.Context, date string, override bool) error {
	exists, err := g.ledger.RowExistsForDate(ctx, date)
	if err != nil {
		return err
	}
	if exists && !override {
		return pkgerrors.New(pkgerrors.CodeConflict, "report already exists for date").
			WithDetails(map[string]string{"date": date})
	}
	return nil
}

// CheckJob rejects a second submission for a job that already has a reported status,
// unless overridden. It returns the job's row when one exists.
func (g *Guard) CheckJob(ctx context.Context, jobID string, override bool) (ledger.RowRef, bool, error) {
	ref, ok, err := g.ledger.FindRow(ctx, jobID)
	if err != nil {
		return ledger.RowRef{}, false, err
	}
	if ok && ref.Data.Reported() && !override {
		return ref, true, pkgerrors.New(pkgerrors.CodeConflict, "job already reported").
			WithDetails(map[string]string{"job_id": jobID, "status": ref.Data.Status, "submitted_at": ref.Data.SubmittedAt})
	}
	return ref, ok, nil
}
