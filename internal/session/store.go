package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waply/waply-web/internal/upstream"
)

const (
	keyPrefix     = "session:v1:"
	fetchPrefix   = "fetch:v1:"
	fetchGuardTTL = 30 * time.Second
)

// Store holds per-session state in Redis: the bearer token written at login,
// the keypad digit buffer, the reminder edit snapshot and the last
// successfully fetched reminder list. The token is a single slot, overwritten
// on each login and read by the events flow afterwards.
type Store struct {
	cache *redis.Client
	ttl   time.Duration
}

// New builds a Store with the given session TTL.
func New(cache *redis.Client, ttl time.Duration) *Store {
	return &Store{cache: cache, ttl: ttl}
}

func (s *Store) key(sid, field string) string {
	return keyPrefix + sid + ":" + field
}

// SetToken stores the session token returned by a successful login.
func (s *Store) SetToken(ctx context.Context, sid, token string) error {
	return s.cache.Set(ctx, s.key(sid, "token"), token, s.ttl).Err()
}

// Token returns the stored session token, or "" when none is set.
func (s *Store) Token(ctx context.Context, sid string) (string, error) {
	token, err := s.cache.Get(ctx, s.key(sid, "token")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

// ClearToken removes the session token.
func (s *Store) ClearToken(ctx context.Context, sid string) error {
	return s.cache.Del(ctx, s.key(sid, "token")).Err()
}

// SavePinBuffer persists the keypad buffer between keypress requests. The
// buffer serializes as the 0-4 digits filled so far, left to right.
func (s *Store) SavePinBuffer(ctx context.Context, sid, digits string) error {
	return s.cache.Set(ctx, s.key(sid, "pinbuf"), digits, s.ttl).Err()
}

// PinBuffer returns the stored keypad digits, or "" when empty.
func (s *Store) PinBuffer(ctx context.Context, sid string) (string, error) {
	digits, err := s.cache.Get(ctx, s.key(sid, "pinbuf")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read pin buffer: %w", err)
	}
	return digits, nil
}

// ClearPinBuffer empties the keypad buffer.
func (s *Store) ClearPinBuffer(ctx context.Context, sid string) error {
	return s.cache.Del(ctx, s.key(sid, "pinbuf")).Err()
}

// EditSnapshot pairs the reminder under edit with the form values captured
// when the edit was opened. The snapshot is the baseline for the structural
// is-edited comparison.
type EditSnapshot struct {
	ReminderID string          `json:"reminderId"`
	Form       json.RawMessage `json:"form"`
}

// SaveEditSnapshot stores the open-time snapshot of an edit form.
func (s *Store) SaveEditSnapshot(ctx context.Context, sid string, snap EditSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode edit snapshot: %w", err)
	}
	return s.cache.Set(ctx, s.key(sid, "editsnap"), payload, s.ttl).Err()
}

// LoadEditSnapshot returns the stored snapshot. The second return is false
// when no edit is open.
func (s *Store) LoadEditSnapshot(ctx context.Context, sid string) (EditSnapshot, bool, error) {
	raw, err := s.cache.Get(ctx, s.key(sid, "editsnap")).Result()
	if errors.Is(err, redis.Nil) {
		return EditSnapshot{}, false, nil
	}
	if err != nil {
		return EditSnapshot{}, false, fmt.Errorf("read edit snapshot: %w", err)
	}
	var snap EditSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return EditSnapshot{}, false, fmt.Errorf("decode edit snapshot: %w", err)
	}
	return snap, true, nil
}

// ClearEditSnapshot closes the edit, resetting the workflow state.
func (s *Store) ClearEditSnapshot(ctx context.Context, sid string) error {
	return s.cache.Del(ctx, s.key(sid, "editsnap")).Err()
}

// SaveReminders caches the last successfully fetched reminder list so a
// failed re-fetch can render stale data instead of an empty page.
func (s *Store) SaveReminders(ctx context.Context, sid string, reminders []upstream.Reminder) error {
	payload, err := json.Marshal(reminders)
	if err != nil {
		return fmt.Errorf("encode reminders: %w", err)
	}
	return s.cache.Set(ctx, s.key(sid, "reminders"), payload, s.ttl).Err()
}

// Reminders returns the cached reminder list. The second return is false
// when nothing has been fetched yet.
func (s *Store) Reminders(ctx context.Context, sid string) ([]upstream.Reminder, bool, error) {
	raw, err := s.cache.Get(ctx, s.key(sid, "reminders")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read reminders: %w", err)
	}
	var reminders []upstream.Reminder
	if err := json.Unmarshal([]byte(raw), &reminders); err != nil {
		return nil, false, fmt.Errorf("decode reminders: %w", err)
	}
	return reminders, true, nil
}

// BeginFetch reserves the at-most-one-in-flight slot for a (session, filter)
// pair. It returns false when a fetch for the same key is already running.
func (s *Store) BeginFetch(ctx context.Context, sid, filter string) (bool, error) {
	ok, err := s.cache.SetNX(ctx, fetchPrefix+sid+":"+filter, "1", fetchGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve fetch: %w", err)
	}
	return ok, nil
}

// EndFetch releases the in-flight slot.
func (s *Store) EndFetch(ctx context.Context, sid, filter string) {
	s.cache.Del(ctx, fetchPrefix+sid+":"+filter)
}
