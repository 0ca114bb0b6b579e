package listener

import (
	"context"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/cachemux/pkg/errors"
)

const defaultHashKey = "cachemux:listeners"

// RedisStore keeps registrations in a single Redis hash so every
// instance and the external watchdog see the same registry.
type RedisStore struct {
	client  goredis.UniversalClient
	hashKey string
}

// NewRedisStore creates a RedisStore. hashKey may be empty to use the
// default.
func NewRedisStore(client goredis.UniversalClient, hashKey string) *RedisStore {
	if hashKey == "" {
		hashKey = defaultHashKey
	}
	return &RedisStore{client: client, hashKey: hashKey}
}

func (s *RedisStore) Put(ctx context.Context, l *Listener) error {
	data, err := json.Marshal(l)
	if err != nil {
		return errors.NewInternalError("encode listener: " + err.Error())
	}
	if err := s.client.HSet(ctx, s.hashKey, l.ID, data).Err(); err != nil {
		return errors.NewUpstreamUnavailableError("redis", "listener write failed: "+err.Error())
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Listener, error) {
	data, err := s.client.HGet(ctx, s.hashKey, id).Bytes()
	if err == goredis.Nil {
		return nil, errors.NewNotFoundError("listener not found: " + id)
	}
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError("redis", "listener read failed: "+err.Error())
	}
	var l Listener
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.NewInternalError("decode listener: " + err.Error())
	}
	return &l, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Listener, error) {
	entries, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError("redis", "listener list failed: "+err.Error())
	}
	out := make([]*Listener, 0, len(entries))
	for _, raw := range entries {
		var l Listener
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, errors.NewInternalError("decode listener: " + err.Error())
		}
		out = append(out, &l)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.hashKey, id).Result()
	if err != nil {
		return errors.NewUpstreamUnavailableError("redis", "listener delete failed: "+err.Error())
	}
	if removed == 0 {
		return errors.NewNotFoundError("listener not found: " + id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
