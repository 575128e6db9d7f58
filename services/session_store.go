package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionCart maps a product id (as text) to a quantity for an anonymous visitor
type SessionCart map[string]int

// SessionStore keeps session carts between requests
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (SessionCart, error)
	Add(ctx context.Context, sessionID, productID string, delta int) (SessionCart, error)
	Remove(ctx context.Context, sessionID, productID string) (SessionCart, error)
	Clear(ctx context.Context, sessionID string) error
}

var sessionStoreInstance SessionStore

// GetSessionStore returns the configured session store
func GetSessionStore() SessionStore {
	return sessionStoreInstance
}

// SetSessionStore sets the session store instance
func SetSessionStore(store SessionStore) {
	sessionStoreInstance = store
}

// RedisSessionStore keeps each session cart in a Redis hash with a sliding TTL
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore connects to redisURL (redis://[:password@]host:port/db)
func NewRedisSessionStore(redisURL string, ttl time.Duration) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSessionStore{client: client, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return "cart_session:" + sessionID
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (SessionCart, error) {
	values, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session cart: %w", err)
	}

	cart := make(SessionCart, len(values))
	for productID, raw := range values {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		cart[productID] = qty
	}
	return cart, nil
}

func (s *RedisSessionStore) Add(ctx context.Context, sessionID, productID string, delta int) (SessionCart, error) {
	key := sessionKey(sessionID)

	qty, err := s.client.HIncrBy(ctx, key, productID, int64(delta)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to update session cart: %w", err)
	}
	if qty <= 0 {
		if err := s.client.HDel(ctx, key, productID).Err(); err != nil {
			return nil, fmt.Errorf("failed to update session cart: %w", err)
		}
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to refresh session TTL: %w", err)
	}

	return s.Load(ctx, sessionID)
}

func (s *RedisSessionStore) Remove(ctx context.Context, sessionID, productID string) (SessionCart, error) {
	if err := s.client.HDel(ctx, sessionKey(sessionID), productID).Err(); err != nil {
		return nil, fmt.Errorf("failed to update session cart: %w", err)
	}
	return s.Load(ctx, sessionID)
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session cart: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// MemorySessionStore keeps session carts in process memory.
// Used when no Redis URL is configured and in tests. Like the Redis store,
// a session expires ttl after it was last touched; ttl <= 0 keeps sessions forever.
type MemorySessionStore struct {
	mu      sync.Mutex
	carts   map[string]SessionCart
	touched map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessionStore creates an empty in-process store
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		carts:   make(map[string]SessionCart),
		touched: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (SessionCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(sessionID)
	return s.copyLocked(sessionID), nil
}

func (s *MemorySessionStore) Add(_ context.Context, sessionID, productID string, delta int) (SessionCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(sessionID)
	cart, ok := s.carts[sessionID]
	if !ok {
		cart = make(SessionCart)
		s.carts[sessionID] = cart
		s.touched[sessionID] = s.now()
	}
	cart[productID] += delta
	if cart[productID] <= 0 {
		delete(cart, productID)
	}
	return s.copyLocked(sessionID), nil
}

func (s *MemorySessionStore) Remove(_ context.Context, sessionID, productID string) (SessionCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(sessionID)
	delete(s.carts[sessionID], productID)
	return s.copyLocked(sessionID), nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked(sessionID)
	return nil
}

// Len returns the number of sessions currently held
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

// Cleanup drops every session idle for longer than the ttl
func (s *MemorySessionStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sessionID := range s.carts {
		if s.expiredLocked(sessionID) {
			s.dropLocked(sessionID)
		}
	}
}

// StartCleanup periodically runs Cleanup until stop is closed
func (s *MemorySessionStore) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// touchLocked expires a stale session, then slides the expiry of a live one
func (s *MemorySessionStore) touchLocked(sessionID string) {
	if s.expiredLocked(sessionID) {
		s.dropLocked(sessionID)
		return
	}
	if _, ok := s.carts[sessionID]; ok {
		s.touched[sessionID] = s.now()
	}
}

func (s *MemorySessionStore) expiredLocked(sessionID string) bool {
	if s.ttl <= 0 {
		return false
	}
	last, ok := s.touched[sessionID]
	return ok && s.now().Sub(last) > s.ttl
}

func (s *MemorySessionStore) dropLocked(sessionID string) {
	delete(s.carts, sessionID)
	delete(s.touched, sessionID)
}

func (s *MemorySessionStore) copyLocked(sessionID string) SessionCart {
	out := make(SessionCart, len(s.carts[sessionID]))
	for k, v := range s.carts[sessionID] {
		out[k] = v
	}
	return out
}
