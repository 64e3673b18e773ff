package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps correlation state in redis, so callbacks can be served
// by any process behind a load balancer.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *RedisStore) key(sessionID, uid string) string {
	return s.prefix + ":" + sessionID + ":" + uid
}

func (s *RedisStore) Put(ctx context.Context, sessionID, uid string, c Correlation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sessionID, uid), payload, s.ttl).Err()
}

func (s *RedisStore) Take(ctx context.Context, sessionID, uid string) (Correlation, bool, error) {
	payload, err := s.client.GetDel(ctx, s.key(sessionID, uid)).Result()
	if errors.Is(err, redis.Nil) {
		return Correlation{}, false, nil
	}
	if err != nil {
		return Correlation{}, false, err
	}

	var c Correlation
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Correlation{}, false, err
	}
	return c, true, nil
}

// NewRedisStore builds a redis-backed store and falls back to an in-memory
// store when redis is unreachable. The returned error reports the failed
// connection while the fallback stays usable.
func NewRedisStore(addr, pass string, db int, ttl time.Duration) (Store, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if addr == "" {
		return NewMemoryStore(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return NewMemoryStore(ttl), err
	}

	return &RedisStore{
		client: client,
		prefix: "omnipay:corr",
		ttl:    ttl,
	}, nil
}
