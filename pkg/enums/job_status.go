package enums

import "fmt"

// JobStatus is the crew-reported outcome stored in the ledger Status column.
// A blank status means the job was prepopulated but not yet reported.
type JobStatus string

const (
	JobStatusYes         JobStatus = "Yes"
	JobStatusCancelled   JobStatus = "Cancelled"
	JobStatusRescheduled JobStatus = "Rescheduled"
	JobStatusOther       JobStatus = "Other"
	JobStatusCompleted   JobStatus = "Completed"
)

var validJobStatuses = []JobStatus{
	JobStatusYes,
	JobStatusCancelled,
	JobStatusRescheduled,
	JobStatusOther,
	JobStatusCompleted,
}

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known JobStatus.
func (s JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// RequiresPayment reports whether a payment type must accompany the status.
func (s JobStatus) RequiresPayment() bool {
	return s == JobStatusYes || s == JobStatusCompleted
}

// JobStatuses returns the statuses offered on the report form, in display order.
func JobStatuses() []JobStatus {
	out := make([]JobStatus, len(validJobStatuses))
	copy(out, validJobStatuses)
	return out
}

// ParseJobStatus converts raw input into a JobStatus.
func ParseJobStatus(value string) (JobStatus, error) {
	for _, candidate := range validJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", value)
}
