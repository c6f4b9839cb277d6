package instance

import (
	"os"

	"github.com/movingops/jobreport-backend/pkg/env"
)

// ID identifies this process in logs and lock ownership: the dyno name when
// running on the platform, else the host name.
func ID() string {
	if id := env.First("", "DYNO", "JOBREPORT_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
