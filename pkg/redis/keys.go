package redis

import "strings"

const keyNamespace = "jr"

// Keys builds namespaced key names: "jr:<kind>:<parts...>" with blank parts dropped.
type Keys struct{}

func (Keys) build(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey names the stored outcome of one keyed request.
func (k Keys) IdempotencyKey(scope, id string) string {
	return k.build("idempotency", scope, id)
}

// LockKey names the scheduler lock for one job in one environment.
func (k Keys) LockKey(env, job string) string {
	if strings.TrimSpace(env) == "" {
		env = "local"
	}
	return k.build("lock", env, job)
}

// RowIndexKey names job row hints and per-table generations.
func (k Keys) RowIndexKey(parts ...string) string {
	return k.build("row_index", parts...)
}

func (k Keys) rateWindowKey(scope string, bucket int64) string {
	return k.build("rate_limit", scope, itoa(bucket))
}
