package errors

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// LogFields flattens err into structured log fields: the message, the typed code
// when present, each wrapped layer, and the status of any Google API failure.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	fields["error_chain"] = chain

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		fields["google_status"] = apiErr.Code
		fields["google_message"] = apiErr.Message
		if len(apiErr.Errors) > 0 {
			fields["google_reason"] = apiErr.Errors[0].Reason
		}
	}
	return fields
}
