package controllers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/movingops/jobreport-backend/api/responses"
	"github.com/movingops/jobreport-backend/api/validators"
	"github.com/movingops/jobreport-backend/internal/ledger"
	"github.com/movingops/jobreport-backend/internal/notify"
	"github.com/movingops/jobreport-backend/internal/reconcile"
	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Reconciler interface {
	Run(ctx context.Context) (reconcile.Report, error)
	RunDay(ctx context.Context, day time.Time) (reconcile.PassReport, error)
}

type Notifier interface {
	CheckAndNotify(ctx context.Context, force bool) (notify.Result, error)
}

type SummaryBuilder interface {
	Rebuild(ctx context.Context) (ledger.Summary, error)
}

type LedgerReader interface {
	MonthTables(ctx context.Context) ([]string, error)
	ExportMonth(ctx context.Context, label string, w io.Writer) error
}

type DateChecker interface {
	DateExists(ctx context.Context, date string) (bool, error)
}

// AdminReconcile runs both reconciliation passes, or a single pass for ?date=.
// Per-job failures are reported in the body; the request itself still succeeds.
func AdminReconcile(svc Reconciler, clock *bizclock.Clock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || clock == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			day, err := clock.ParseDate(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid data: "+err.Error()))
				return
			}
			pass, err := svc.RunDay(r.Context(), day)
			if err != nil {
				logPartial(r.Context(), logg, err)
			}
			responses.WriteSuccess(w, reconcile.Report{Passes: []reconcile.PassReport{pass}})
			return
		}

		report, err := svc.Run(r.Context())
		if err != nil {
			logPartial(r.Context(), logg, err)
		}
		responses.WriteSuccess(w, report)
	}
}

// AdminNotify runs the daily reminder check; ?force=true resends an already-sent reminder.
func AdminNotify(svc Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifier unavailable"))
			return
		}
		force, err := validators.ParseQueryBool(r, "force")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckAndNotify(r.Context(), force)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminSummary regenerates the Summary table and returns the computed totals.
func AdminSummary(svc SummaryBuilder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "summary unavailable"))
			return
		}
		summary, err := svc.Rebuild(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminLedgerMonths lists the month tables in chronological order.
func AdminLedgerMonths(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}
		months, err := svc.MonthTables(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if months == nil {
			months = []string{}
		}
		responses.WriteSuccess(w, map[string]any{"months": months})
	}
}

// AdminLedgerExport streams a month table as an xlsx workbook. {month} is either a
// table name ("Feb 2026") or YYYY-MM.
func AdminLedgerExport(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}
		label, err := monthLabel(chi.URLParam(r, "month"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var buf bytes.Buffer
		if err := svc.ExportMonth(r.Context(), label, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename := strings.ReplaceAll(label, " ", "-") + ".xlsx"
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil && logg != nil {
			logg.Error(r.Context(), "writing ledger export failed", err)
		}
	}
}

// AdminDateExists reports whether the ledger already holds a row for ?date=.
func AdminDateExists(svc DateChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guard unavailable"))
			return
		}
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data: date is required").
				WithDetails(map[string]string{"field": "date"}))
			return
		}
		exists, err := svc.DateExists(r.Context(), date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"date": date, "exists": exists})
	}
}

func monthLabel(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if ledger.IsMonthTable(raw) {
		return raw, nil
	}
	label, err := bizclock.MonthLabel(raw + "-01")
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Invalid data: month must look like 2026-02 or \"Feb 2026\"").
			WithDetails(map[string]string{"field": "month"})
	}
	return label, nil
}

func logPartial(ctx context.Context, logg *logger.Logger, err error) {
	if logg == nil {
		return
	}
	logg.Warn(logg.WithField(ctx, "error", err.Error()), "reconciliation finished with failures")
}
