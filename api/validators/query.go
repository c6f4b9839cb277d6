package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
)

// ParseQueryBool reads an optional boolean query parameter.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// ParseFormBool treats "on", "yes" and strconv.ParseBool truthy values as true.
func ParseFormBool(raw string) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "on", "yes":
		return true
	}
	value, err := strconv.ParseBool(raw)
	return err == nil && value
}
