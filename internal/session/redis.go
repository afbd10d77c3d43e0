// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "streamgate:session:"
	maxUpdateRetries = 100
	scanBatch        = 256
)

// RedisStore keeps sessions as JSON values. Updates use optimistic
// WATCH/MULTI transactions; keys also expire natively after the session TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an established client. ttl is applied on every write.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session: %w", err)
	}
	sess, ok := decodeSession(ctx, id, data)
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) Update(ctx context.Context, seed Session, fn UpdateFunc) (Session, error) {
	key := s.key(seed.ID)
	var out Session

	txf := func(tx *redis.Tx) error {
		cur := seed
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get session: %w", err)
		default:
			if stored, ok := decodeSession(ctx, seed.ID, data); ok {
				cur = stored
			}
		}
		cur.created = false

		if err := fn(&cur); err != nil {
			return err
		}
		buf, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = cur
		return nil
	}

	for range maxUpdateRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Session{}, err
	}
	return Session{}, ErrConflict
}

// Sweep walks the keyspace with SCAN and deletes each expired session inside
// its own WATCH so a concurrent touch wins over the deletion.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		deleted := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			var sess Session
			if err := json.Unmarshal(data, &sess); err == nil && !sess.LastActiveAt.Before(cutoff) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			deleted = err == nil
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("sweep %s: %w", key, err)
		}
		if deleted {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan sessions: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func decodeSession(ctx context.Context, id string, data []byte) (Session, bool) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.ID != id {
		logger := log.WithComponentFromContext(ctx, "session")
		logger.Warn().
			Err(err).
			Str("event", "session.corrupt").
			Msg("ignoring undecodable session record")
		return Session{}, false
	}
	return sess, true
}
