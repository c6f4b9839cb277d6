package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RowHint is an unverified guess at where a job's row lives.
type RowHint struct {
	Table string
	Row   int
}

// RowIndex caches job row positions. Hints are always verified against the table before use.
type RowIndex interface {
	Lookup(ctx context.Context, jobID string) (RowHint, bool, error)
	Remember(ctx context.Context, jobID string, hint RowHint) error
	// Invalidate drops every hint pointing into table, e.g. after rows shift.
	Invalidate(ctx context.Context, table string) error
}

// KV is the subset of the redis client the index needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	RowIndexKey(parts ...string) string
}

const rowIndexTTL = 30 * 24 * time.Hour

// RedisRowIndex stores hints as "table|row|generation". Bumping a table's generation
// invalidates all its hints at once without scanning keys.
type RedisRowIndex struct {
	kv KV
}

// NewRedisRowIndex wraps a redis-backed key value store.
func NewRedisRowIndex(kv KV) *RedisRowIndex {
	return &RedisRowIndex{kv: kv}
}

func (r *RedisRowIndex) jobKey(jobID string) string {
	return r.kv.RowIndexKey("job", jobID)
}

func (r *RedisRowIndex) generationKey(table string) string {
	return r.kv.RowIndexKey("gen", table)
}

func (r *RedisRowIndex) generation(ctx context.Context, table string) (int64, error) {
	raw, err := r.kv.Get(ctx, r.generationKey(table))
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Lookup implements RowIndex.
func (r *RedisRowIndex) Lookup(ctx context.Context, jobID string) (RowHint, bool, error) {
	raw, err := r.kv.Get(ctx, r.jobKey(jobID))
	if errors.Is(err, redis.Nil) {
		return RowHint{}, false, nil
	}
	if err != nil {
		return RowHint{}, false, fmt.Errorf("row index lookup: %w", err)
	}
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return RowHint{}, false, nil
	}
	row, err := strconv.Atoi(parts[1])
	if err != nil {
		return RowHint{}, false, nil
	}
	gen, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return RowHint{}, false, nil
	}
	current, err := r.generation(ctx, parts[0])
	if err != nil {
		return RowHint{}, false, fmt.Errorf("row index generation: %w", err)
	}
	if gen != current {
		return RowHint{}, false, nil
	}
	return RowHint{Table: parts[0], Row: row}, true, nil
}

// Remember implements RowIndex.
func (r *RedisRowIndex) Remember(ctx context.Context, jobID string, hint RowHint) error {
	gen, err := r.generation(ctx, hint.Table)
	if err != nil {
		return fmt.Errorf("row index generation: %w", err)
	}
	value := fmt.Sprintf("%s|%d|%d", hint.Table, hint.Row, gen)
	if err := r.kv.Set(ctx, r.jobKey(jobID), value, rowIndexTTL); err != nil {
		return fmt.Errorf("row index remember: %w", err)
	}
	return nil
}

// Invalidate implements RowIndex.
func (r *RedisRowIndex) Invalidate(ctx context.Context, table string) error {
	if _, err := r.kv.Incr(ctx, r.generationKey(table)); err != nil {
		return fmt.Errorf("row index invalidate: %w", err)
	}
	return nil
}

type noopIndex struct{}

func (noopIndex) Lookup(context.Context, string) (RowHint, bool, error) { return RowHint{}, false, nil }
func (noopIndex) Remember(context.Context, string, RowHint) error      { return nil }
func (noopIndex) Invalidate(context.Context, string) error             { return nil }
