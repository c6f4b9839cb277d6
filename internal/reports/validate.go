package reports

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/movingops/jobreport-backend/internal/ledger"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/enums"
)

const (
	msgRevenueNegative = "Invalid data: Revenue cannot be negative"
	msgRevenueNumber   = "Invalid data: Revenue must be a number"
	msgPaymentRequired = "Invalid data: Payment type is required"
	msgInvalidStatus   = "Invalid data: Unknown job status"
	msgJobIDRequired   = "Invalid data: Job ID is required"

	zeroRevenue = "0"
)

// SubmissionInput is one job's crew report as received from the form.
type SubmissionInput struct {
	JobID        string `json:"job_id" validate:"required,max=1024"`
	Summary      string `json:"summary,omitempty" validate:"max=1024"`
	Status       string `json:"status" validate:"required,jobstatus"`
	TotalRevenue string `json:"total_revenue"`
	NetRevenue   string `json:"net_revenue"`
	PaymentType  string `json:"payment_type" validate:"max=64"`
	Source       string `json:"source,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("jobstatus", func(fl validator.FieldLevel) bool {
		return enums.JobStatus(fl.Field().String()).IsValid()
	})
	return v
}

// Validate checks a submission and normalizes it for the ledger.
// Blank revenue becomes "0"; anything else must be a non-negative decimal.
// Nothing is written when validation fails.
func Validate(in SubmissionInput) (ledger.Submission, error) {
	in.JobID = strings.TrimSpace(in.JobID)
	in.Status = strings.TrimSpace(in.Status)
	in.PaymentType = strings.TrimSpace(in.PaymentType)

	if err := validate.Struct(in); err != nil {
		return ledger.Submission{}, structError(in.JobID, err)
	}

	total, err := normalizeRevenue(in.JobID, "total_revenue", in.TotalRevenue)
	if err != nil {
		return ledger.Submission{}, err
	}
	net, err := normalizeRevenue(in.JobID, "net_revenue", in.NetRevenue)
	if err != nil {
		return ledger.Submission{}, err
	}

	if enums.JobStatus(in.Status).RequiresPayment() && in.PaymentType == "" {
		return ledger.Submission{}, invalid(in.JobID, "payment_type", msgPaymentRequired)
	}

	return ledger.Submission{
		JobID:        in.JobID,
		Status:       in.Status,
		TotalRevenue: total,
		NetRevenue:   net,
		PaymentType:  in.PaymentType,
	}, nil
}

func normalizeRevenue(jobID, field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zeroRevenue, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return "", invalid(jobID, field, msgRevenueNumber)
	}
	if amount.IsNegative() {
		return "", invalid(jobID, field, msgRevenueNegative)
	}
	return raw, nil
}

func structError(jobID string, err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid data")
	}
	fe := errs[0]
	switch fe.Field() {
	case "job_id":
		return invalid(jobID, "job_id", msgJobIDRequired)
	case "status":
		return invalid(jobID, "status", msgInvalidStatus)
	}
	return invalid(jobID, fe.Field(), "Invalid data: "+fe.Field()+" is invalid")
}

func invalid(jobID, field, msg string) error {
	details := map[string]string{"field": field}
	if jobID != "" {
		details["job_id"] = jobID
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}
