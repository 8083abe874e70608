package store

import (
	"fmt"
	"time"
)

// RedisStateStore keeps short-lived per-user conversation flags, such
// as "the next message from this user is a support request". Flags are
// visible to every bot process and expire on their own.
type RedisStateStore struct {
	client *RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisStateStore(redisClient *RedisClient, prefix string, ttlHours int) *RedisStateStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStateStore{
		client: redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStateStore) flagKey(userID int64, name string) string {
	return fmt.Sprintf("%s:user_flag:%s:%d", s.prefix, name, userID)
}

func (s *RedisStateStore) SetFlag(userID int64, name string, value bool) error {
	key := s.flagKey(userID, name)
	if !value {
		return s.client.Del(key)
	}
	return s.client.Set(key, "1", s.ttl)
}

func (s *RedisStateStore) GetFlag(userID int64, name string) (bool, error) {
	v, err := s.client.Get(s.flagKey(userID, name))
	if err != nil {
		return false, err
	}
	return v != "", nil
}
