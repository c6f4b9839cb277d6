package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithJobID(ctx, "evt-1")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"job_id\":\"evt-1\"")) {
		t.Fatalf("expected job_id field; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}
}

func TestLoggerDebugRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("info"), Output: buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug entry should be filtered at info level; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel("DEBUG"); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", lvl)
	}
}

func TestLoggerErrorTagsClassifiedErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	log.Error(context.Background(), "save failed", pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("quota"), "append rows"))

	if !bytes.Contains(buf.Bytes(), []byte(`"error_code":"DEPENDENCY_ERROR"`)) {
		t.Fatalf("expected error code field; entry=%s", buf.String())
	}
}

func TestWithFieldsDoesNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	parent := log.WithField(context.Background(), "pass", "tomorrow")
	_ = log.WithFields(parent, map[string]any{"job_id": "evt-1", "date": "2026-02-11"})
	log.Info(parent, "pass started")

	if !bytes.Contains(buf.Bytes(), []byte(`"pass":"tomorrow"`)) {
		t.Fatalf("expected parent field; entry=%s", buf.String())
	}
	if bytes.Contains(buf.Bytes(), []byte("evt-1")) {
		t.Fatalf("child fields leaked into parent; entry=%s", buf.String())
	}
}
