package google

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/movingops/jobreport-backend/pkg/config"
)

// ClientOptions returns the credential options shared by the Calendar, Sheets and Gmail clients.
// Inline JSON wins over a credentials file; with neither set, application default credentials apply.
func ClientOptions(cfg config.GoogleConfig, extra ...option.ClientOption) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ApplicationCredentials))
	}
	return append(opts, extra...)
}
