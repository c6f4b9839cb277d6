package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/logger"
)

func TestNewServerUsesConfig(t *testing.T) {
	cfg := &config.Config{
		App:  config.AppConfig{Port: "5001"},
		HTTP: config.HTTPConfig{ReadTimeout: 7 * time.Second, WriteTimeout: 9 * time.Second},
	}
	srv := NewServer(cfg, "", http.NotFoundHandler())
	assert.Equal(t, ":5001", srv.Addr)
	assert.Equal(t, 7*time.Second, srv.ReadTimeout)
	assert.Equal(t, 9*time.Second, srv.WriteTimeout)

	assert.Equal(t, ":8080", NewServer(cfg, "8080", http.NotFoundHandler()).Addr)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: "0"}}
	srv := NewServer(cfg, "", http.NotFoundHandler())
	srv.Addr = "127.0.0.1:0"
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, logg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
