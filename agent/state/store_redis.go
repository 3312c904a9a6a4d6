package state

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	errx "github.com/tanpawarit/chative-retail-assistant/pkg/errx"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

const scanBatchSize = 100

// RedisStore persists sessions in Redis. Every Save refreshes the TTL, so an
// idle session expires after the retention window and then reads as
// ErrStateNotFound.
type RedisStore struct {
	client redis.Cmdable
	opts   kvOptions
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.Cmdable, opts ...StoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	o := applyKVOptions(opts)
	if o.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return &RedisStore{client: client, opts: o}, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, blob []byte) error {
	key, err := s.opts.key(sessionID)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, blob, s.opts.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("redis: failed to save session")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	key, err := s.opts.key(sessionID)
	if err != nil {
		return nil, err
	}

	blob, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		logx.Error().Err(err).Str("session_id", sessionID).Msg("redis: failed to load session")
		return nil, errx.WrapRedis(err)
	}
	return blob, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.opts.key(sessionID)
	if err != nil {
		return err
	}

	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("redis: failed to delete session")
		return errx.WrapRedis(err)
	}
	if n == 0 {
		return ErrStateNotFound
	}
	return nil
}

func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := s.opts.sessionIDFromKey(key); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(keys))
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			logx.Error().Err(err).Int("keys", end-start).Msg("redis: failed to clear sessions")
			return errx.WrapRedis(err)
		}
	}
	return nil
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, s.opts.keyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		// SCAN may return a key more than once.
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		logx.Error().Err(err).Msg("redis: failed to scan session keys")
		return nil, errx.WrapRedis(err)
	}
	return keys, nil
}
