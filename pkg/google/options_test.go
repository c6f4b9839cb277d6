package google

import (
	"testing"

	"google.golang.org/api/option"

	"github.com/movingops/jobreport-backend/pkg/config"
)

func TestClientOptions(t *testing.T) {
	if got := ClientOptions(config.GoogleConfig{}); len(got) != 0 {
		t.Fatalf("expected no options without credentials, got %d", len(got))
	}
	if got := ClientOptions(config.GoogleConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/creds.json"}); len(got) != 1 {
		t.Fatalf("expected a single credential option, got %d", len(got))
	}
	if got := ClientOptions(config.GoogleConfig{ApplicationCredentials: "/tmp/creds.json"}, option.WithScopes("x")); len(got) != 2 {
		t.Fatalf("expected credential plus extra option, got %d", len(got))
	}
}
