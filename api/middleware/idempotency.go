package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/movingops/jobreport-backend/api/responses"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
	pkgredis "github.com/movingops/jobreport-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	submitIdempotencyTTL = 24 * time.Hour
	adminIdempotencyTTL  = time.Hour
	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL = 2 * time.Minute
	// maxIdempotentBody caps what is buffered for hashing.
	maxIdempotentBody = 1 << 20
)

// idempotencyRule opts a method and path (exact or prefix) into key tracking.
type idempotencyRule struct {
	method string
	path   string
	prefix bool
	ttl    time.Duration
}

func (rule idempotencyRule) matches(method, path string) bool {
	if rule.method != method {
		return false
	}
	if rule.prefix {
		return strings.HasPrefix(path, rule.path)
	}
	return path == rule.path
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, path: "/api/v1/reports/submit", ttl: submitIdempotencyTTL},
	{method: http.MethodPost, path: "/api/admin/v1/", prefix: true, ttl: adminIdempotencyTTL},
}

func routeTTL(method, path string) (time.Duration, bool) {
	for _, rule := range idempotencyRules {
		if rule.matches(method, path) {
			return rule.ttl, true
		}
	}
	return 0, false
}

const (
	recordPending  = "pending"
	recordComplete = "complete"
)

// replayHeaders are copied into the stored record and restored on replay.
var replayHeaders = []string{"Content-Type", "Content-Disposition"}

type idempotencyRecord struct {
	State       string            `json:"state"`
	RequestHash string            `json:"request_hash"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// Idempotency makes keyed POSTs safe to retry. The first request with a given
// Idempotency-Key reserves it, runs, and stores its outcome; repeats replay that
// outcome. A repeat that arrives while the first is still running, or that
// carries a different payload, is rejected with 409. Server errors release the
// key so the client can retry. Requests without the header are not tracked.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, tracked := routeTTL(r.Method, r.URL.Path)
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !tracked || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large").
						WithDetails(map[string]string{"limit_bytes": strconv.Itoa(maxIdempotentBody)}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r.URL.RawQuery, body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			reserved, err := reserve(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayOrReject(ctx, store, logg, w, key, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// the client is done with this request; storing must outlive its context
			storeCtx := context.WithoutCancel(ctx)
			if capture.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(storeCtx, key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			// overwrite the pending record in place so the key is never free in between
			if err := complete(storeCtx, store, key, hash, capture, ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	payload, err := json.Marshal(idempotencyRecord{State: recordPending, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(payload), pendingTTL)
}

func complete(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, capture *responseCapture, ttl time.Duration) error {
	record := idempotencyRecord{
		State:       recordComplete,
		RequestHash: hash,
		Status:      capture.statusCode(),
		Body:        capture.body.Bytes(),
	}
	for _, name := range replayHeaders {
		if value := capture.Header().Get(name); value != "" {
			if record.Headers == nil {
				record.Headers = map[string]string{}
			}
			record.Headers[name] = value
		}
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload), ttl)
}

func replayOrReject(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, hash string) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the first request released the key between our reserve and read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case record.State != recordComplete:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		for name, value := range record.Headers {
			w.Header().Set(name, value)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// idempotencyScope keeps keys from colliding across endpoints and privilege levels.
func idempotencyScope(r *http.Request) string {
	scope := r.Method + "|" + r.URL.Path
	if IsAdmin(r.Context()) {
		scope += "|admin"
	}
	return scope
}

func requestHash(rawQuery string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(rawQuery))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseCapture tees the response so it can be stored after the handler returns.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
