package redis

import (
	"context"
	"strconv"
	"time"
)

// Set stores value with an optional TTL (zero keeps it forever).
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// Get returns the string at key, or redis.Nil when it is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotInitialized
	}
	return c.cmd.Get(ctx, key).Result()
}

// SetNX stores value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

// Incr bumps the counter at key.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	if c.cmd == nil {
		return 0, errNotInitialized
	}
	return c.cmd.Incr(ctx, key).Result()
}

// Del removes keys; missing keys are ignored.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// FixedWindowAllow counts one hit against scope in the current window and reports
// whether the count is still within limit. Windows are aligned to multiples of
// window since the epoch, so each one gets a fresh key that expires on its own.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.cmd == nil {
		return false, 0, errNotInitialized
	}
	if window <= 0 {
		window = time.Minute
	}
	bucket := c.now().UnixNano() / int64(window)
	key := c.rateWindowKey(scope, bucket)

	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// one extra window of slack so a slow first request never leaves the key immortal
		if err := c.cmd.Expire(ctx, key, 2*window).Err(); err != nil {
			return true, count, err
		}
	}
	return count <= limit, count, nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
