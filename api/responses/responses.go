package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

// SuccessEnvelope wraps every 2xx JSON body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// callerFacing codes describe a problem with the request itself, so their
// message is safe to echo back.
var callerFacing = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:   true,
	pkgerrors.CodeUnauthorized: true,
	pkgerrors.CodeNotFound:     true,
	pkgerrors.CodeConflict:     true,
	pkgerrors.CodeIdempotency:  true,
	pkgerrors.CodeRateLimit:    true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError maps err onto its HTTP status and JSON envelope. 5xx responses are
// logged as errors with the full chain, everything else as a warning.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	public := APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if callerFacing[typed.Code()] && typed.Message() != "" {
		public.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		public.Details = typed.Details()
	}

	if logg != nil {
		logRejection(ctx, logg, meta.HTTPStatus, typed)
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: public})
}

func logRejection(ctx context.Context, logg *logger.Logger, status int, err *pkgerrors.Error) {
	fields := pkgerrors.LogFields(err)
	if status < http.StatusInternalServerError {
		logg.Warn(logg.WithFields(ctx, fields), "request.rejected")
		return
	}
	// Error adds these two itself.
	delete(fields, "error")
	delete(fields, "error_code")
	logg.Error(logg.WithFields(ctx, fields), "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent; an encode failure only truncates the body.
	_ = json.NewEncoder(w).Encode(payload)
}
