// Package redisstore keeps cached records in Redis as JSON documents, so
// several processes can share one cache.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketkit/internal/model"
)

// Key is a store key with a stable string form.
type Key interface {
	comparable
	String() string
}

// Store is a Redis-backed store.Store. Records are kept under prefix:key.
type Store[K Key, R model.Record[K]] struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New returns a store writing under prefix. A zero ttl keeps records forever.
func New[K Key, R model.Record[K]](rdb redis.UniversalClient, prefix string, ttl time.Duration) *Store[K, R] {
	return &Store[K, R]{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store[K, R]) redisKey(k K) string {
	return s.prefix + ":" + k.String()
}

func (s *Store[K, R]) Read(ctx context.Context, k K) (R, bool, error) {
	var zero R
	raw, err := s.rdb.Get(ctx, s.redisKey(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", k.String(), err)
	}
	var r R
	if err := json.Unmarshal(raw, &r); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", k.String(), err)
	}
	return r, true, nil
}

func (s *Store[K, R]) ReadAll(ctx context.Context, keys []K) ([]R, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.redisKey(k)
	}
	vals, err := s.rdb.MGet(ctx, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]R, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r R
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", names[i], err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Write stores all records in one MULTI/EXEC so readers see either the old
// or the new batch.
func (s *Store[K, R]) Write(ctx context.Context, records []R) error {
	if len(records) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, r := range records {
			raw, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode %s: %w", r.StoreKey().String(), err)
			}
			p.Set(ctx, s.redisKey(r.StoreKey()), raw, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

func (s *Store[K, R]) Delete(ctx context.Context, k K) error {
	return s.rdb.Del(ctx, s.redisKey(k)).Err()
}
