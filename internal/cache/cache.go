// Package cache keeps short-lived lookup data and cross-process locks in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	messageKeyPrefix = "message:"
	lockKeyPrefix    = "lock:"

	// MessageTTL bounds how long an external id stays resolvable from Redis.
	MessageTTL = 24 * time.Hour
)

type Store struct {
	client *redis.Client
	now    func() time.Time
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// PutMessage maps a provider message id to its log row.
func (s *Store) PutMessage(ctx context.Context, externalID string, logID int64) error {
	value := fmt.Sprintf("%d:%s", logID, s.now().UTC().Format(time.RFC3339))
	if err := s.client.Set(ctx, messageKeyPrefix+externalID, value, MessageTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache message id: %w", err)
	}
	return nil
}

// LookupMessage returns the log id cached for externalID. ok is false on a
// cache miss.
func (s *Store) LookupMessage(ctx context.Context, externalID string) (logID int64, ok bool, err error) {
	value, err := s.client.Get(ctx, messageKeyPrefix+externalID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cached message id: %w", err)
	}

	raw, _, _ := strings.Cut(value, ":")
	logID, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed cached message entry %q: %w", value, err)
	}
	return logID, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// TryLock acquires name for ttl. When the lock is held elsewhere ok is false
// and release is nil. release only deletes the key if this caller still
// owns it.
func (s *Store) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	ok, err = s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
