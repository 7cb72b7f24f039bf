package oauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/zoombulk/internal/cache"
	"github.com/teemow/zoombulk/internal/instrumentation"
	"github.com/teemow/zoombulk/internal/logging"
)

const (
	// DefaultSafetyMargin is subtracted from a token's lifetime before it
	// is cached.
	DefaultSafetyMargin = 5 * time.Minute

	// DefaultLifetime is assumed when the provider reports no expiry.
	DefaultLifetime = time.Hour

	// CachePurpose tags token entries in the cache store.
	CachePurpose = "token"
)

// cachedToken is the cache payload for one access token.
type cachedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresAt   int64  `json:"expires_at"`
}

// TokenManager hands out access tokens for one credential set, refreshing
// them through an IdentityProvider when the cached one is missing or stale.
type TokenManager struct {
	creds    Credentials
	provider IdentityProvider
	store    cache.Store
	key      string

	margin  time.Duration
	now     func() time.Time
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	current *oauth2.Token
}

// ManagerOption configures a TokenManager.
type ManagerOption func(*TokenManager)

// WithSafetyMargin sets how long before true expiry a token is replaced.
func WithSafetyMargin(d time.Duration) ManagerOption {
	return func(m *TokenManager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// WithMetrics records refresh and cache metrics.
func WithMetrics(metrics *instrumentation.Metrics) ManagerOption {
	return func(m *TokenManager) {
		m.metrics = metrics
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *TokenManager) {
		m.logger = logger
	}
}

// NewTokenManager creates a manager for creds backed by store.
func NewTokenManager(creds Credentials, provider IdentityProvider, store cache.Store, opts ...ManagerOption) *TokenManager {
	m := &TokenManager{
		creds:    creds,
		provider: provider,
		store:    store,
		key:      cache.Key(CachePurpose, creds.AccountID, creds.ClientID),
		margin:   DefaultSafetyMargin,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithAccount(logging.WithOperation(m.logger, "token"), creds.AccountID)
	return m
}

// Key returns the cache key the manager stores tokens under.
func (m *TokenManager) Key() string {
	return m.key
}

// AccessToken returns a valid access token. Unless forceRefresh is set, a
// cached token that has not reached its expiry is returned without any
// exchange. Concurrent refreshes share one exchange and receive the same
// token.
func (m *TokenManager) AccessToken(ctx context.Context, forceRefresh bool) (*oauth2.Token, error) {
	if !forceRefresh {
		if tok := m.cached(ctx); tok != nil {
			return tok, nil
		}
	}

	// forced callers get their own flight so they never receive the
	// in-memory token a plain refresh may answer with
	flight := m.key
	if forceRefresh {
		flight += ":force"
	}

	ch := m.group.DoChan(flight, func() (any, error) {
		// a refresh that completed while this flight was being set up
		// already produced a token
		if !forceRefresh {
			if tok := m.memo(); tok != nil {
				return tok, nil
			}
		}
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

// TokenSource adapts the manager to oauth2.TokenSource.
func (m *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *TokenManager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return s.m.AccessToken(s.ctx, false)
}

// memo returns the in-process token if it is still valid.
func (m *TokenManager) memo() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current != nil && m.now().Before(m.current.Expiry) {
		return m.current
	}
	return nil
}

func (m *TokenManager) remember(tok *oauth2.Token) {
	m.mu.Lock()
	m.current = tok
	m.mu.Unlock()
}

// cached looks in memory, then in the store.
func (m *TokenManager) cached(ctx context.Context) *oauth2.Token {
	if tok := m.memo(); tok != nil {
		return tok
	}

	var entry cachedToken
	if m.store.Get(ctx, m.key, &entry) && entry.AccessToken != "" {
		expiry := time.Unix(entry.ExpiresAt, 0)
		if m.now().Before(expiry) {
			m.metrics.RecordCacheLookup(ctx, instrumentation.CacheToken, instrumentation.CacheHit)
			tok := &oauth2.Token{
				AccessToken: entry.AccessToken,
				TokenType:   entry.TokenType,
				Expiry:      expiry,
			}
			m.remember(tok)
			return tok
		}
	}

	m.metrics.RecordCacheLookup(ctx, instrumentation.CacheToken, instrumentation.CacheMiss)
	return nil
}

func (m *TokenManager) refresh(ctx context.Context) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartSpan(ctx, "oauth.refresh")
	defer span.End()

	now := m.now()
	m.logger.Debug("exchanging credentials for access token")

	tok, err := m.provider.Exchange(ctx, m.creds)
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("identity provider returned an empty access token")
	}
	if err != nil {
		m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		instrumentation.SetSpanError(span, err)
		m.logger.Warn("access token exchange failed", logging.Err(err))

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &AuthError{AccountID: m.creds.AccountID, Err: err}
	}

	m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)

	ttl := lifetime(tok, now) - m.margin
	// whole seconds, matching the cache entry's resolution
	ttl = ttl.Truncate(time.Second)
	if ttl < 0 {
		ttl = 0
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	result := &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tokenType,
		Expiry:      now.Add(ttl),
	}

	if ttl == 0 {
		// usable for this call only; the next caller refreshes again
		m.logger.Warn("access token lifetime is shorter than the safety margin",
			"safety_margin", m.margin)
		return result, nil
	}

	entry := cachedToken{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresAt:   result.Expiry.Unix(),
	}
	if err := m.store.Set(ctx, m.key, entry, ttl); err != nil {
		// Log but don't fail - the token is still usable
		m.logger.Warn("failed to cache access token", logging.CacheKey(m.key), logging.Err(err))
	}
	m.remember(result)

	m.logger.Debug("access token refreshed",
		"token", logging.SanitizeToken(result.AccessToken),
		"expires_at", result.Expiry)
	instrumentation.SetSpanSuccess(span)
	return result, nil
}

// lifetime is how long a freshly issued token stays valid.
func lifetime(tok *oauth2.Token, now time.Time) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.Sub(now)
	}
	return DefaultLifetime
}
