// Package lock implements the row-level date-range lock spec.md §5
// requires: only one generation run may touch a given date range at a
// time, and overlapping ranges must wait rather than race each other's
// writes. It is a Redis `SET key value NX PX <ttl>` lease, renewed by a
// background goroutine for as long as the caller holds it and released
// with a compare-and-delete Lua script so a lease that has already
// expired and been reacquired by someone else is never torn down out
// from under them.
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:schedule:"

// releaseScript deletes the key only if it still holds the value this
// lease set, so a lease whose TTL already expired (and was reacquired
// by another run) can never delete someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Manager acquires and renews date-range locks against a Redis client.
type Manager struct {
	client    *redis.Client
	ttl       time.Duration
	pollEvery time.Duration
}

// NewManager builds a Manager. ttl is the lease length (renewed at half
// that interval); pollEvery is the backoff between overlap checks while
// a caller waits for a conflicting range to free up.
func NewManager(client *redis.Client, ttl, pollEvery time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	return &Manager{client: client, ttl: ttl, pollEvery: pollEvery}
}

// Lease is a held lock, kept alive by a background renewal goroutine
// until Release is called.
type Lease struct {
	client *redis.Client
	key    string
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Acquire blocks, polling with backoff, until no active lease overlaps
// [start, end] and this caller holds the range's own key, or ctx is
// cancelled.
func (m *Manager) Acquire(ctx context.Context, start, end time.Time) (*Lease, error) {
	key := rangeKey(start, end)
	token := uuid.NewString()

	for {
		overlapping, err := m.hasOverlap(ctx, key, start, end)
		if err != nil {
			return nil, err
		}
		if !overlapping {
			ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
			if err != nil {
				return nil, fmt.Errorf("acquire schedule lock: %w", err)
			}
			if ok {
				return m.lease(key, token), nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollEvery):
		}
	}
}

func (m *Manager) lease(key, token string) *Lease {
	leaseCtx, cancel := context.WithCancel(context.Background())
	l := &Lease{client: m.client, key: key, token: token, cancel: cancel, done: make(chan struct{})}
	go l.renew(leaseCtx, m.ttl)
	return l
}

func (l *Lease) renew(ctx context.Context, ttl time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.client.Expire(context.Background(), l.key, ttl)
		}
	}
}

// Release stops the renewal goroutine and deletes the key, provided it
// still holds this lease's token.
func (l *Lease) Release(ctx context.Context) error {
	l.cancel()
	<-l.done
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}

// hasOverlap scans active lease keys for any whose date range overlaps
// [start, end], ignoring ownKey (a caller re-checking before acquiring
// its own range should not be blocked by a stale entry from a previous
// failed attempt at the identical range).
func (m *Manager) hasOverlap(ctx context.Context, ownKey string, start, end time.Time) (bool, error) {
	iter := m.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == ownKey {
			continue
		}
		s, e, ok := parseRangeKey(key)
		if !ok {
			continue
		}
		if rangesOverlap(start, end, s, e) {
			return true, nil
		}
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("scan schedule locks: %w", err)
	}
	return false, nil
}

// rangesOverlap reports whether [s1,e1] and [s2,e2] share any day,
// inclusive of both endpoints.
func rangesOverlap(s1, e1, s2, e2 time.Time) bool {
	return !s1.After(e2) && !s2.After(e1)
}

func rangeKey(start, end time.Time) string {
	return fmt.Sprintf("%s%s_%s", keyPrefix, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func parseRangeKey(key string) (start, end time.Time, ok bool) {
	rest := strings.TrimPrefix(key, keyPrefix)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	s, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	e, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return s, e, true
}
