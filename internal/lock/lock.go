// Package lock keeps two scheduler runs from working the same queue document at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLocked = errors.New("another run holds the queue lock")
	ErrLost   = errors.New("lock expired or was taken over")
)

// Locker guards one named resource. Refresh and Release must be called with the token Acquire returned.
type Locker interface {
	Acquire(ctx context.Context, name string) (token string, err error)
	Refresh(ctx context.Context, name, token string) error
	Release(ctx context.Context, name, token string) error
}

// Nop always succeeds; used when no redis is configured.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (string, error) { return "", nil }
func (Nop) Refresh(context.Context, string, string) error   { return nil }
func (Nop) Release(context.Context, string, string) error   { return nil }

// Keep refreshes the lock every interval until stop is called or ctx is done. stop waits for the
// refresher to exit.
func Keep(ctx context.Context, l Locker, name, token string, every time.Duration, log zerolog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.Refresh(ctx, name, token); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Str("lock", name).Msg("refresh run lock")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Ping verifies the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return client.Ping(ctx).Err()
}

var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refresh = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a single-instance lock: SET NX with a TTL, released by compare-and-delete.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func key(name string) string { return "teesched:lock:" + name }

func (r *Redis) Acquire(ctx context.Context, name string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key(name), token, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrLocked)
	}
	return token, nil
}

// Refresh resets the TTL of a lock still held with token.
func (r *Redis) Refresh(ctx context.Context, name, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	n, err := refresh.Run(ctx, r.client, []string{key(name)}, token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", name, ErrLost)
	}
	return nil
}

// RefreshEvery is how often a held lock should be refreshed.
func (r *Redis) RefreshEvery() time.Duration { return r.ttl / 3 }

func (r *Redis) Release(ctx context.Context, name, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	n, err := release.Run(ctx, r.client, []string{key(name)}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", name, ErrLost)
	}
	return nil
}
