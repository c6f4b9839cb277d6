package enums

import "fmt"

// JobSource identifies the marketing channel a job was booked through.
type JobSource string

const (
	JobSourceYelp      JobSource = "Yelp"
	JobSourceGoogleLSA JobSource = "Google LSA"
	JobSourceOther     JobSource = "Other"
)

var validJobSources = []JobSource{
	JobSourceYelp,
	JobSourceGoogleLSA,
	JobSourceOther,
}

// String implements fmt.Stringer.
func (s JobSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known JobSource.
func (s JobSource) IsValid() bool {
	for _, candidate := range validJobSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseJobSource converts raw input into a JobSource.
func ParseJobSource(value string) (JobSource, error) {
	for _, candidate := range validJobSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job source %q", value)
}
