package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/batman-nair/TimeTrak/internal/config"
	"github.com/batman-nair/TimeTrak/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	sessionStore *sessionStore
	blacklist    *blacklistStore
}

// Open creates a new Redis-backed storage instance. breakDelay is the
// session-break grace window applied when folding activity samples.
func Open(cfg config.RedisConfig, breakDelay time.Duration) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:       client,
		sessionStore: &sessionStore{client: client, breakDelay: breakDelay},
		blacklist:    &blacklistStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Sessions returns the SessionStore implementation
func (s *Store) Sessions() storage.SessionStore {
	return s.sessionStore
}

// Blacklist returns the BlacklistStore implementation
func (s *Store) Blacklist() storage.BlacklistStore {
	return s.blacklist
}

func identityKey(scopeID, identityID string) string {
	return fmt.Sprintf("timetrak:scope:%s:identity:%s", scopeID, identityID)
}

func identityIndexKey(scopeID string) string {
	return fmt.Sprintf("timetrak:scope:%s:identities", scopeID)
}

func blacklistKey(scopeID string) string {
	return fmt.Sprintf("timetrak:blacklist:%s", scopeID)
}
