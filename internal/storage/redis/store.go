// Package redis stores session state in Redis, one string key per session key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/pkg/database"
)

const keyPrefix = "storefront:session:"

// Store implements storage.Store for one session using Redis.
type Store struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewStore creates a Redis-backed store for sessionID. Every Set refreshes the
// key's TTL; a zero ttl keeps keys without expiry.
func NewStore(client *redis.Client, sessionID string, ttl time.Duration) *Store {
	return &Store{
		client:    client,
		sessionID: sessionID,
		ttl:       ttl,
	}
}

// Key returns the Redis key holding key for the store's session.
func (s *Store) Key(key string) string {
	return keyPrefix + s.sessionID + ":" + key
}

// Get retrieves the raw value of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, end := database.Instrument(ctx, "redis", "get", "GET")
	data, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		end(nil)
		return nil, storage.KeyNotFound(key)
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set writes value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, end := database.Instrument(ctx, "redis", "set", "SET")
	err := s.client.Set(ctx, s.Key(key), value, s.ttl).Err()
	end(err)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, end := database.Instrument(ctx, "redis", "delete", "DEL")
	err := s.client.Del(ctx, s.Key(key)).Err()
	end(err)
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Factory opens Redis stores sharing one client.
type Factory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFactory creates a factory of Redis session stores.
func NewFactory(client *redis.Client, ttl time.Duration) *Factory {
	return &Factory{client: client, ttl: ttl}
}

// ForSession returns the store of sessionID.
func (f *Factory) ForSession(sessionID string) storage.Store {
	return NewStore(f.client, sessionID, f.ttl)
}
