// Package viewstate persists small per-user console state in Redis: the
// appointment screen's filter/search/week window, MFA progress and the
// calendar onboarding flag. It never stores appointment data.
package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "console:viewstate"
	DefaultTTL = 7 * 24 * time.Hour
)

// Screen names a persisted piece of state.
type Screen string

const (
	ScreenAppointments       Screen = "appointments"
	ScreenMFA                Screen = "mfa"
	ScreenCalendarOnboarding Screen = "calendar_onboarding"
)

// Store reads and writes JSON values with a sliding TTL.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a Redis-backed state store. A non-positive ttl uses DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: client, ttl: ttl}
}

// Key builds the Redis key for a user's screen state.
func Key(userID string, screen Screen) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, screen)
}

// Get decodes the value for (userID, screen) into dst. It reports false when
// nothing is stored.
func (s *Store) Get(ctx context.Context, userID string, screen Screen, dst any) (bool, error) {
	if s == nil || s.redis == nil {
		return false, nil
	}
	data, err := s.redis.Get(ctx, Key(userID, screen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("viewstate: get %s: %w", screen, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("viewstate: unmarshal %s: %w", screen, err)
	}
	return true, nil
}

// Put stores value for (userID, screen) and resets its TTL.
func (s *Store) Put(ctx context.Context, userID string, screen Screen, value any) error {
	if s == nil || s.redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("viewstate: marshal %s: %w", screen, err)
	}
	if err := s.redis.Set(ctx, Key(userID, screen), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("viewstate: set %s: %w", screen, err)
	}
	return nil
}

// Delete removes the stored value for (userID, screen).
func (s *Store) Delete(ctx context.Context, userID string, screen Screen) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, Key(userID, screen)).Err(); err != nil {
		return fmt.Errorf("viewstate: delete %s: %w", screen, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.redis == nil {
		return errors.New("viewstate: redis not configured")
	}
	return s.redis.Ping(ctx).Err()
}
