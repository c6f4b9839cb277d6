package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
)

const submitPath = "/api/v1/reports/submit"

type fakeStore struct {
	data map[string]string
	dels int
	sets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.dels++
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func submitRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, submitPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"submit", http.MethodPost, submitPath, submitIdempotencyTTL, true},
		{"admin reconcile", http.MethodPost, "/api/admin/v1/reconcile", adminIdempotencyTTL, true},
		{"form read", http.MethodGet, "/api/v1/reports/form", 0, false},
		{"submit via get", http.MethodGet, submitPath, 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, submitRequest(`{"job_id":"a"}`, ""))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("handler executed %d times, expected 2", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key, got %v", store.data)
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, submitRequest(`{"job_id":"a"}`, "abc"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, submitRequest(`{"job_id":"a"}`, "abc"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, submitRequest(`{"job_id":"a"}`, "retry"))
	second := httptest.NewRecorder()
	mw(handler).ServeHTTP(second, submitRequest(`{"job_id":"a"}`, "retry"))

	if first.Code != http.StatusServiceUnavailable || second.Code != http.StatusOK {
		t.Fatalf("unexpected statuses %d then %d", first.Code, second.Code)
	}
	if calls != 2 {
		t.Fatalf("handler executed %d times, expected 2", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), submitRequest(`{"job_id":"a"}`, "xyz"))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, submitRequest(`{"job_id":"b"}`, "xyz"))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)

	var nested *httptest.ResponseRecorder
	var handler http.Handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if nested == nil {
			nested = httptest.NewRecorder()
			mw(handler).ServeHTTP(nested, submitRequest(`{"job_id":"a"}`, "busy"))
		}
		w.WriteHeader(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, submitRequest(`{"job_id":"a"}`, "busy"))

	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", first.Code)
	}
	if nested.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %d", nested.Code)
	}
}

func TestIdempotencyReplayIsMarked(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Feb-2026.xlsx"`)
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, submitRequest(`{}`, "mark"))
	if first.Header().Get(replayedHeader) != "" {
		t.Fatalf("first response must not be marked as replay")
	}

	again := httptest.NewRecorder()
	mw(handler).ServeHTTP(again, submitRequest(`{}`, "mark"))
	if again.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker")
	}
	if again.Header().Get("Content-Disposition") != `attachment; filename="Feb-2026.xlsx"` {
		t.Fatalf("expected disposition restored, got %q", again.Header().Get("Content-Disposition"))
	}
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	big := `{"notes":"` + strings.Repeat("x", maxIdempotentBody) + `"}`
	mw(handler).ServeHTTP(resp, submitRequest(big, "big"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if calls != 0 {
		t.Fatalf("handler must not run for an oversized body")
	}
	if len(store.data) != 0 {
		t.Fatalf("oversized request must not reserve a key, got %v", store.data)
	}
}

func TestIdempotencyCompletesRecordWithoutReleasingKey(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), submitRequest(`{"job_id":"a"}`, "swap"))

	if store.dels != 0 {
		t.Fatalf("completed key must not be deleted, got %d deletes", store.dels)
	}
	if store.sets != 1 {
		t.Fatalf("expected the pending record to be overwritten once, got %d", store.sets)
	}
	var record idempotencyRecord
	for _, v := range store.data {
		if err := json.Unmarshal([]byte(v), &record); err != nil {
			t.Fatalf("decode record: %v", err)
		}
	}
	if record.State != recordComplete || record.Status != http.StatusOK {
		t.Fatalf("unexpected stored record %+v", record)
	}
}
