package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teemow/zoombulk/internal/cache"
	"github.com/teemow/zoombulk/internal/instrumentation"
	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/oauth"
	"github.com/teemow/zoombulk/internal/zoom"
)

const (
	// DefaultTTL is how long a built index is reused.
	DefaultTTL = 24 * time.Hour

	// DefaultStatus limits the index to active users.
	DefaultStatus = "active"

	// CachePurpose tags index entries in the cache store.
	CachePurpose = "users"
)

// snapshot is the cached form of a built index. BuiltAt lets a process that
// loads it expire its in-memory copy on the entry's own schedule.
type snapshot struct {
	BuiltAt time.Time         `json:"built_at"`
	Users   map[string]string `json:"users"`
}

// UserLister returns one page of the account's users.
type UserLister interface {
	ListUsers(ctx context.Context, opts zoom.ListUsersOptions) (*zoom.UserPage, error)
}

// Index maps normalized emails to user IDs.
type Index struct {
	lister UserLister
	store  cache.Store
	key    string

	ttl     time.Duration
	status  string
	now     func() time.Time
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	current   map[string]string
	expiresAt time.Time
}

// Option configures an Index.
type Option func(*Index)

// WithTTL sets how long a built index is cached. Zero or less caches it
// without expiry.
func WithTTL(ttl time.Duration) Option {
	return func(ix *Index) {
		ix.ttl = ttl
	}
}

// WithStatus sets the user status filter. Empty lists every user.
func WithStatus(status string) Option {
	return func(ix *Index) {
		ix.status = status
	}
}

// WithClock overrides the time source of the in-process copy.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) {
		ix.now = now
	}
}

// WithMetrics records cache and rebuild metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(ix *Index) {
		ix.metrics = m
	}
}

// WithLogger sets the index's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		ix.logger = logger
	}
}

// NewIndex creates an index for one credential set.
func NewIndex(lister UserLister, store cache.Store, accountID, clientID string, opts ...Option) *Index {
	ix := &Index{
		lister: lister,
		store:  store,
		key:    cache.Key(CachePurpose, accountID, clientID),
		ttl:    DefaultTTL,
		status: DefaultStatus,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.logger = logging.WithAccount(logging.WithOperation(ix.logger, "directory"), accountID)
	return ix
}

// NormalizeEmail is the form emails take as index keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailToID returns the email to user ID mapping. With useCache set and
// forceRefresh unset a valid cached mapping is returned; otherwise the
// mapping is rebuilt from the API and cached. The returned map is a copy.
func (ix *Index) EmailToID(ctx context.Context, useCache, forceRefresh bool) (map[string]string, error) {
	m, err := ix.load(ctx, useCache, forceRefresh)
	if err != nil {
		return nil, err
	}
	return maps.Clone(m), nil
}

// Resolve returns the user ID for email. A miss triggers exactly one forced
// rebuild and one more lookup before a *ResolutionError is returned.
func (ix *Index) Resolve(ctx context.Context, email string) (string, error) {
	key := NormalizeEmail(email)
	if key == "" {
		return "", &ResolutionError{Email: email}
	}

	m, err := ix.load(ctx, true, false)
	if err != nil {
		return "", ix.resolutionError(email, err)
	}
	if id, ok := m[key]; ok {
		return id, nil
	}

	ix.logger.Debug("email not in index, rebuilding", logging.UserHash(key))

	m, err = ix.load(ctx, false, true)
	if err != nil {
		return "", ix.resolutionError(email, err)
	}
	if id, ok := m[key]; ok {
		return id, nil
	}
	return "", &ResolutionError{Email: email}
}

// resolutionError wraps a failed directory read. Auth failures pass through
// unchanged so callers can abort.
func (ix *Index) resolutionError(email string, err error) error {
	if errors.Is(err, oauth.ErrAuth) {
		return err
	}
	return &ResolutionError{Email: email, Err: err}
}

func (ix *Index) load(ctx context.Context, useCache, forceRefresh bool) (map[string]string, error) {
	if useCache && !forceRefresh {
		if m := ix.cached(ctx); m != nil {
			return m, nil
		}
	}

	reason := instrumentation.RebuildMissing
	if forceRefresh {
		reason = instrumentation.RebuildForced
	}

	// forced callers never join a flight that may answer from memory
	flight := ix.key
	if forceRefresh {
		flight += ":force"
	}

	ch := ix.group.DoChan(flight, func() (any, error) {
		if useCache && !forceRefresh {
			if m := ix.memo(); m != nil {
				return m, nil
			}
		}
		return ix.rebuild(context.WithoutCancel(ctx), reason)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]string), nil
	}
}

func (ix *Index) memo() map[string]string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return nil
	}
	if !ix.expiresAt.IsZero() && !ix.now().Before(ix.expiresAt) {
		return nil
	}
	return ix.current
}

// remember keeps m in memory until builtAt + ttl.
func (ix *Index) remember(m map[string]string, builtAt time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.current = m
	ix.expiresAt = time.Time{}
	if ix.ttl > 0 {
		ix.expiresAt = builtAt.Add(ix.ttl)
	}
}

func (ix *Index) cached(ctx context.Context) map[string]string {
	if m := ix.memo(); m != nil {
		return m
	}

	var snap snapshot
	if ix.store.Get(ctx, ix.key, &snap) && snap.Users != nil && !snap.BuiltAt.IsZero() {
		ix.remember(snap.Users, snap.BuiltAt)
		if m := ix.memo(); m != nil {
			ix.metrics.RecordCacheLookup(ctx, instrumentation.CacheUsers, instrumentation.CacheHit)
			return m
		}
	}

	ix.metrics.RecordCacheLookup(ctx, instrumentation.CacheUsers, instrumentation.CacheMiss)
	return nil
}

// rebuild pages through every user and caches the resulting mapping.
func (ix *Index) rebuild(ctx context.Context, reason string) (map[string]string, error) {
	ctx, span := instrumentation.StartSpan(ctx, "directory.rebuild")
	defer span.End()

	ix.metrics.RecordIndexRebuild(ctx, reason)

	builtAt := ix.now()
	m := make(map[string]string)
	opts := zoom.ListUsersOptions{Status: ix.status, PageSize: zoom.DefaultPageSize, PageNumber: 1}
	for {
		page, err := ix.lister.ListUsers(ctx, opts)
		if err != nil {
			instrumentation.SetSpanError(span, err)
			return nil, fmt.Errorf("failed to list users (page %d): %w", opts.PageNumber, err)
		}
		for _, u := range page.Users {
			if email := NormalizeEmail(u.Email); email != "" && u.ID != "" {
				m[email] = u.ID
			}
		}
		if page.PageCount <= opts.PageNumber {
			break
		}
		opts.PageNumber++
	}

	if err := ix.store.Set(ctx, ix.key, snapshot{BuiltAt: builtAt.UTC(), Users: m}, ix.ttl); err != nil {
		ix.logger.Warn("failed to cache user index", logging.CacheKey(ix.key), logging.Err(err))
	}
	ix.remember(m, builtAt)

	ix.logger.Debug("user index rebuilt", "users", len(m), "pages", opts.PageNumber, "reason", reason)
	instrumentation.SetSpanSuccess(span)
	return m, nil
}
