package controllers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/movingops/jobreport-backend/api/middleware"
	"github.com/movingops/jobreport-backend/api/responses"
	"github.com/movingops/jobreport-backend/api/validators"
	"github.com/movingops/jobreport-backend/internal/ledger"
	"github.com/movingops/jobreport-backend/internal/reports"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/metrics"
)

const (
	modeSingle = "single"
	modeDay    = "day"

	maxFormBytes = 1 << 20
	maxFieldLen  = 1024
)

// ReportsService is the crew-facing form and submission surface.
type ReportsService interface {
	Form(ctx context.Context, date, jobID string) (reports.Form, error)
	SubmitJob(ctx context.Context, in reports.SubmissionInput, override bool) (ledger.RowRef, error)
	SubmitDay(ctx context.Context, date string, inputs []reports.SubmissionInput, override bool) (ledger.AppendResult, error)
}

// SubmitRequest is the JSON submission body. Form posts are decoded into the same shape.
type SubmitRequest struct {
	Date          string                    `json:"date"`
	SingleJobMode bool                      `json:"single_job_mode"`
	Override      bool                      `json:"override"`
	Jobs          []reports.SubmissionInput `json:"jobs" validate:"required,min=1"`
}

type SubmitResponse struct {
	Mode    string         `json:"mode"`
	Date    string         `json:"date,omitempty"`
	Row     *ledger.RowRef `json:"row,omitempty"`
	Created []string       `json:"created,omitempty"`
	Updated []string       `json:"updated,omitempty"`
}

// ReportForm returns the form model for ?date= (today when blank), narrowed by ?job_id=.
func ReportForm(svc ReportsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		q := r.URL.Query()
		form, err := svc.Form(r.Context(), q.Get("date"), validators.SanitizeString(q.Get("job_id"), maxFieldLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

// SubmitReport records a single job (single_job_mode) or a whole day of jobs.
// override is honoured only for admin requests.
func SubmitReport(svc ReportsService, m *metrics.LedgerMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		req, err := decodeSubmit(w, r)
		if err != nil {
			m.IncSubmission("unknown", "invalid")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode := modeDay
		if req.SingleJobMode {
			mode = modeSingle
		}
		if req.Override && !middleware.IsAdmin(r.Context()) {
			m.IncSubmission(mode, "unauthorized")
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "override requires an admin token"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"mode": mode, "jobs": len(req.Jobs), "override": req.Override})
		}

		if req.SingleJobMode {
			if len(req.Jobs) != 1 {
				m.IncSubmission(mode, "invalid")
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data: Single job mode takes exactly one job"))
				return
			}
			ref, err := svc.SubmitJob(ctx, req.Jobs[0], req.Override)
			if err != nil {
				m.IncSubmission(mode, resultLabel(err))
				responses.WriteError(ctx, logg, w, err)
				return
			}
			m.IncSubmission(mode, "ok")
			responses.WriteSuccess(w, SubmitResponse{Mode: mode, Date: ref.Data.Date, Row: &ref})
			return
		}

		result, err := svc.SubmitDay(ctx, req.Date, req.Jobs, req.Override)
		if err != nil {
			m.IncSubmission(mode, resultLabel(err))
			responses.WriteError(ctx, logg, w, err)
			return
		}
		m.IncSubmission(mode, "ok")
		responses.WriteSuccessStatus(w, http.StatusCreated, SubmitResponse{
			Mode:    mode,
			Date:    req.Date,
			Created: result.Created,
			Updated: result.Updated,
		})
	}
}

func decodeSubmit(w http.ResponseWriter, r *http.Request) (SubmitRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return decodeSubmitForm(w, r)
	}
	var req SubmitRequest
	if err := validators.DecodeJSONBody(w, r, &req); err != nil {
		return SubmitRequest{}, err
	}
	return req, nil
}

// decodeSubmitForm reads the HTML form layout: repeated job_id values plus
// status_<id>, total_<id>, net_<id>, payment_<id>, summary_<id> and source_<id>.
func decodeSubmitForm(w http.ResponseWriter, r *http.Request) (SubmitRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return SubmitRequest{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body")
	}
	form := r.PostForm

	req := SubmitRequest{
		Date:          strings.TrimSpace(form.Get("date")),
		SingleJobMode: validators.ParseFormBool(form.Get("single_job_mode")),
		Override:      validators.ParseFormBool(form.Get("override")),
	}
	for _, raw := range form["job_id"] {
		id := validators.SanitizeString(raw, maxFieldLen)
		if id == "" {
			continue
		}
		req.Jobs = append(req.Jobs, reports.SubmissionInput{
			JobID:        id,
			Summary:      validators.SanitizeString(form.Get("summary_"+id), maxFieldLen),
			Status:       validators.SanitizeString(form.Get("status_"+id), 64),
			TotalRevenue: validators.SanitizeString(form.Get("total_"+id), 64),
			NetRevenue:   validators.SanitizeString(form.Get("net_"+id), 64),
			PaymentType:  validators.SanitizeString(form.Get("payment_"+id), 64),
			Source:       validators.SanitizeString(form.Get("source_"+id), 64),
		})
	}
	if len(req.Jobs) == 0 {
		return SubmitRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data: No jobs submitted")
	}
	return req, nil
}

func resultLabel(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return "invalid"
	case pkgerrors.CodeConflict:
		return "duplicate"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeDependency:
		return "backend_error"
	}
	return "error"
}
