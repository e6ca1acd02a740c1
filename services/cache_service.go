package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"jerkyClubAPI/internal/leaderboard"
	"jerkyClubAPI/internal/score"
	"jerkyClubAPI/internal/user"
)

const (
	leaderboardTTL = 60 * time.Second
	positionTTL    = 2 * time.Minute
	profileTTL     = 10 * time.Minute
)

// cacheBackend is the minimal byte store the cache layer runs on. Redis in
// production, an in-process map in tests and when REDIS_ADDR is unset.
type cacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type redisBackend struct {
	client *redis.Client
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string]memoryEntry)}
}

func (b *memoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	b.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) Del(_ context.Context, keys ...string) error {
	b.mu.Lock()
	for _, key := range keys {
		delete(b.entries, key)
	}
	b.mu.Unlock()
	return nil
}

// CacheService is the multi-level cache over leaderboard pages, per-user
// positions and profile cards. Read failures degrade to a miss, write
// failures log and clear the key so a stale value can never stick around.
type CacheService struct {
	backend cacheBackend

	// Known leaderboard keys, so engagement invalidation can membership-test
	// every cached page without scanning the backend.
	mu     sync.Mutex
	lbKeys map[string]score.Period
}

func NewCacheService() *CacheService {
	svc := &CacheService{lbKeys: make(map[string]score.Period)}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Println("Cache: REDIS_ADDR not set, using in-process cache")
		svc.backend = newMemoryBackend()
		return svc
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis ping failed (%v), falling back to in-process cache", err)
		svc.backend = newMemoryBackend()
		return svc
	}

	log.Printf("Cache: connected to Redis at %s", addr)
	svc.backend = &redisBackend{client: client}
	return svc
}

// newCacheServiceForTest skips the Redis probe.
func newCacheServiceForTest() *CacheService {
	return &CacheService{backend: newMemoryBackend(), lbKeys: make(map[string]score.Period)}
}

func leaderboardKey(period score.Period, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", period, limit)
}

func positionKey(userID uuid.UUID, period score.Period) string {
	return fmt.Sprintf("position:%s:%s", userID, period)
}

func profileKey(userID uuid.UUID) string {
	return fmt.Sprintf("profile:%s", userID)
}

func (s *CacheService) GetLeaderboard(ctx context.Context, period score.Period, limit int) (*leaderboard.View, bool) {
	raw, ok, err := s.backend.Get(ctx, leaderboardKey(period, limit))
	if err != nil {
		log.Printf("Warning: cache get leaderboard %s/%d: %v", period, limit, err)
		cacheRequests.WithLabelValues("leaderboard", "error").Inc()
		return nil, false
	}
	if !ok {
		cacheRequests.WithLabelValues("leaderboard", "miss").Inc()
		return nil, false
	}
	var view leaderboard.View
	if err := json.Unmarshal(raw, &view); err != nil {
		log.Printf("Warning: cache decode leaderboard %s/%d: %v", period, limit, err)
		s.deleteKeys(ctx, leaderboardKey(period, limit))
		cacheRequests.WithLabelValues("leaderboard", "error").Inc()
		return nil, false
	}
	cacheRequests.WithLabelValues("leaderboard", "hit").Inc()
	return &view, true
}

func (s *CacheService) SetLeaderboard(ctx context.Context, view *leaderboard.View, limit int) {
	key := leaderboardKey(view.Period, limit)

	s.mu.Lock()
	s.lbKeys[key] = view.Period
	s.mu.Unlock()

	raw, err := json.Marshal(view)
	if err != nil {
		log.Printf("Warning: cache encode leaderboard %s: %v", key, err)
		return
	}
	if err := s.backend.Set(ctx, key, raw, leaderboardTTL); err != nil {
		log.Printf("Warning: cache set %s: %v", key, err)
		s.deleteKeys(ctx, key)
	}
}

func (s *CacheService) GetPosition(ctx context.Context, userID uuid.UUID, period score.Period) (*leaderboard.Position, bool) {
	raw, ok, err := s.backend.Get(ctx, positionKey(userID, period))
	if err != nil {
		log.Printf("Warning: cache get position %s/%s: %v", userID, period, err)
		cacheRequests.WithLabelValues("position", "error").Inc()
		return nil, false
	}
	if !ok {
		cacheRequests.WithLabelValues("position", "miss").Inc()
		return nil, false
	}
	var pos leaderboard.Position
	if err := json.Unmarshal(raw, &pos); err != nil {
		s.deleteKeys(ctx, positionKey(userID, period))
		cacheRequests.WithLabelValues("position", "error").Inc()
		return nil, false
	}
	cacheRequests.WithLabelValues("position", "hit").Inc()
	return &pos, true
}

func (s *CacheService) SetPosition(ctx context.Context, userID uuid.UUID, pos *leaderboard.Position) {
	key := positionKey(userID, pos.Period)
	raw, err := json.Marshal(pos)
	if err != nil {
		log.Printf("Warning: cache encode position %s: %v", key, err)
		return
	}
	if err := s.backend.Set(ctx, key, raw, positionTTL); err != nil {
		log.Printf("Warning: cache set %s: %v", key, err)
		s.deleteKeys(ctx, key)
	}
}

func (s *CacheService) GetProfile(ctx context.Context, userID uuid.UUID) (*user.ProfileDisplay, bool) {
	raw, ok, err := s.backend.Get(ctx, profileKey(userID))
	if err != nil {
		log.Printf("Warning: cache get profile %s: %v", userID, err)
		cacheRequests.WithLabelValues("profile", "error").Inc()
		return nil, false
	}
	if !ok {
		cacheRequests.WithLabelValues("profile", "miss").Inc()
		return nil, false
	}
	var profile user.ProfileDisplay
	if err := json.Unmarshal(raw, &profile); err != nil {
		s.deleteKeys(ctx, profileKey(userID))
		cacheRequests.WithLabelValues("profile", "error").Inc()
		return nil, false
	}
	cacheRequests.WithLabelValues("profile", "hit").Inc()
	return &profile, true
}

func (s *CacheService) SetProfile(ctx context.Context, profile *user.ProfileDisplay) {
	key := profileKey(profile.UserID)
	raw, err := json.Marshal(profile)
	if err != nil {
		log.Printf("Warning: cache encode profile %s: %v", key, err)
		return
	}
	if err := s.backend.Set(ctx, key, raw, profileTTL); err != nil {
		log.Printf("Warning: cache set %s: %v", key, err)
		s.deleteKeys(ctx, key)
	}
}

// InvalidateEngagement runs the invalidation protocol for one user's
// engagement change stamped at ts. Position keys go per window membership;
// cached leaderboard pages only go when the user actually sits in them.
func (s *CacheService) InvalidateEngagement(ctx context.Context, userID uuid.UUID, ts time.Time) {
	now := time.Now()

	var keys []string
	for _, period := range score.Periods {
		if score.InWindow(period, ts, now) {
			keys = append(keys, positionKey(userID, period))
		}
	}
	s.deleteKeys(ctx, keys...)
	cacheInvalidations.WithLabelValues("engagement").Inc()

	s.mu.Lock()
	lbKeys := make(map[string]score.Period, len(s.lbKeys))
	for key, period := range s.lbKeys {
		lbKeys[key] = period
	}
	s.mu.Unlock()

	for key, period := range lbKeys {
		if !score.InWindow(period, ts, now) {
			continue
		}
		raw, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			log.Printf("Warning: cache membership read %s: %v", key, err)
			s.deleteKeys(ctx, key)
			continue
		}
		if !ok {
			continue
		}
		var view leaderboard.View
		if err := json.Unmarshal(raw, &view); err != nil {
			s.deleteKeys(ctx, key)
			continue
		}
		for _, entry := range view.Entries {
			if entry.UserID == userID {
				s.deleteKeys(ctx, key)
				break
			}
		}
	}
}

// InvalidateProfile drops the profile card after identity fields change.
func (s *CacheService) InvalidateProfile(ctx context.Context, userID uuid.UUID) {
	s.deleteKeys(ctx, profileKey(userID))
	cacheInvalidations.WithLabelValues("profile").Inc()
}

func (s *CacheService) deleteKeys(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.backend.Del(ctx, keys...); err != nil {
		log.Printf("Warning: cache delete %v: %v", keys, err)
	}
}
