package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/zoombulk/internal/logging"
)

// Store is a key-value cache with expiry-aware reads.
type Store interface {
	// Get decodes the cached payload for key into dst. It reports false on a
	// missing, unreadable, corrupt or expired entry and never returns an error.
	Get(ctx context.Context, key string, dst any) bool

	// Set stores value under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

var (
	// ErrCorrupt marks an entry that could not be decoded.
	ErrCorrupt = errors.New("cache entry is corrupt")

	// ErrExpired marks an entry read past its TTL.
	ErrExpired = errors.New("cache entry is expired")
)

// Entry is the on-disk (or on-wire) document for one cache key.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	StoredAt   time.Time       `json:"stored_at"`
	TTLSeconds *int64          `json:"ttl_seconds"`
}

// ExpiresAt returns the instant the entry stops being valid, or the zero
// time if it never expires.
func (e *Entry) ExpiresAt() time.Time {
	if e.TTLSeconds == nil {
		return time.Time{}
	}
	return e.StoredAt.Add(time.Duration(*e.TTLSeconds) * time.Second)
}

// Expired reports whether the entry is stale at now.
func (e *Entry) Expired(now time.Time) bool {
	exp := e.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !now.Before(exp)
}

// Key derives the cache key for a purpose tag and a credential set, so that
// distinct accounts and OAuth apps never share entries.
func Key(purpose, accountID, clientID string) string {
	return sanitize(purpose) + "_" + sanitize(accountID) + "_" + sanitize(clientID)
}

// sanitize makes one key component safe for use in file names and Redis
// keys. Underscores are reserved as the component separator.
func sanitize(s string) string {
	return safeName(s, false)
}

func safeName(s string, keepUnderscore bool) string {
	if s == "" {
		return "none"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == '_' && keepUnderscore:
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides the time source used for stored_at and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used to report swallowed read errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.WithOperation(o.logger, "cache")
	return o
}

func encodeEntry(key string, value any, ttl time.Duration, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache payload for %s: %w", key, err)
	}

	entry := Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: now.UTC(),
	}
	if ttl > 0 {
		secs := int64(ttl / time.Second)
		if secs == 0 {
			secs = 1
		}
		entry.TTLSeconds = &secs
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry for %s: %w", key, err)
	}
	return data, nil
}

func decodeEntry(data []byte, now time.Time, dst any) error {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(entry.Payload) == 0 || entry.StoredAt.IsZero() {
		return ErrCorrupt
	}
	if entry.Expired(now) {
		return ErrExpired
	}
	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// miss logs why a read produced a miss and returns false.
func (o *options) miss(key string, err error) bool {
	if err != nil {
		o.logger.Debug("cache miss", logging.CacheKey(key), logging.Err(err))
	}
	return false
}
