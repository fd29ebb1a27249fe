package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStatusTTL = 24 * time.Hour

// RedisStore keeps outcomes in Redis so any orchestrator replica can
// answer a status poll.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func statusKey(studentID int) string {
	return fmt.Sprintf("saga:status:%d", studentID)
}

func (s *RedisStore) Record(ctx context.Context, studentID int, outcome Outcome) error {
	if err := s.client.Set(ctx, statusKey(studentID), string(outcome), s.ttl).Err(); err != nil {
		return fmt.Errorf("record status for student %d: %w", studentID, err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, studentID int) (Outcome, bool, error) {
	value, err := s.client.Get(ctx, statusKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup status for student %d: %w", studentID, err)
	}
	return Outcome(value), true, nil
}

var _ Store = (*RedisStore)(nil)
