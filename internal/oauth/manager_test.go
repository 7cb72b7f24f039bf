package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/zoombulk/internal/cache"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeProvider issues numbered tokens and counts exchanges.
type fakeProvider struct {
	calls     atomic.Int32
	expiresIn int64
	delay     time.Duration
	err       error
}

func (p *fakeProvider) Exchange(ctx context.Context, _ Credentials) (*oauth2.Token, error) {
	n := p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &oauth2.Token{
		AccessToken: "token-" + string(rune('0'+n)),
		TokenType:   "bearer",
		ExpiresIn:   p.expiresIn,
	}, nil
}

var testCreds = Credentials{AccountID: "acct", ClientID: "client", ClientSecret: "secret"}

func newTestManager(provider IdentityProvider, store cache.Store, clock *testClock) *TokenManager {
	return NewTokenManager(testCreds, provider, store, WithClock(clock.Now))
}

func TestTokenManager_CachedTokenIsReused(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	provider := &fakeProvider{expiresIn: 3600}
	m := newTestManager(provider, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	first, err := m.AccessToken(ctx, false)
	require.NoError(t, err)
	second, err := m.AccessToken(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestTokenManager_ExpiryAppliesSafetyMargin(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	provider := &fakeProvider{expiresIn: 3600}
	m := newTestManager(provider, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	tok, err := m.AccessToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(55*time.Minute), tok.Expiry)
	assert.Equal(t, "bearer", tok.TokenType)

	clock.Advance(55*time.Minute - time.Second)
	_, err = m.AccessToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.calls.Load(), "token is valid until expiry")

	clock.Advance(time.Second)
	refreshed, err := m.AccessToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load(), "stale token must be refreshed")
	assert.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
}

func TestTokenManager_DefaultLifetimeWithoutExpiry(t *testing.T) {
	clock := newTestClock()
	m := newTestManager(&fakeProvider{}, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	tok, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultLifetime-DefaultSafetyMargin), tok.Expiry)
}

func TestTokenManager_ForceRefresh(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	provider := &fakeProvider{expiresIn: 3600}
	m := newTestManager(provider, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	first, err := m.AccessToken(ctx, false)
	require.NoError(t, err)
	forced, err := m.AccessToken(ctx, true)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, forced.AccessToken)
	assert.Equal(t, int32(2), provider.calls.Load())

	again, err := m.AccessToken(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, forced.AccessToken, again.AccessToken)
}

func TestTokenManager_SharesCacheAcrossInstances(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store, err := cache.NewFileStore(t.TempDir(), cache.WithClock(clock.Now))
	require.NoError(t, err)

	provider := &fakeProvider{expiresIn: 3600}
	first, err := newTestManager(provider, store, clock).AccessToken(ctx, false)
	require.NoError(t, err)

	// a new process with the same cache directory
	second, err := newTestManager(provider, store, clock).AccessToken(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, int32(1), provider.calls.Load())
	assert.FileExists(t, store.Path("token_acct_client"))
}

func TestTokenManager_ConcurrentCallersShareOneExchange(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	provider := &fakeProvider{expiresIn: 3600, delay: 50 * time.Millisecond}
	m := newTestManager(provider, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	const callers = 25
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.AccessToken(ctx, false)
			if assert.NoError(t, err) {
				tokens[i] = tok.AccessToken
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestTokenManager_ProviderFailureIsAuthErrorAndNotCached(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := cache.NewMemoryStore(cache.WithClock(clock.Now))
	provider := &fakeProvider{err: errors.New("invalid_client")}
	m := newTestManager(provider, store, clock)

	_, err := m.AccessToken(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.True(t, IsAuthError(err))

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "acct", authErr.AccountID)
	var cached cachedToken
	assert.False(t, store.Get(ctx, m.Key(), &cached), "failed exchanges leave the cache empty")

	_, err = m.AccessToken(ctx, false)
	require.Error(t, err)
	assert.Equal(t, int32(2), provider.calls.Load(), "failures are not cached")
}

func TestTokenManager_CanceledCaller(t *testing.T) {
	clock := newTestClock()
	provider := &fakeProvider{expiresIn: 3600, delay: 200 * time.Millisecond}
	m := newTestManager(provider, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.AccessToken(ctx, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenManager_TokenSourceAuthorizesRequests(t *testing.T) {
	clock := newTestClock()
	m := newTestManager(&fakeProvider{expiresIn: 3600}, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())
	client := oauth2.NewClient(ctx, m.TokenSource(ctx))

	res, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = res.Body.Close()

	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestTokenManager_ForceRefreshDoesNotJoinPlainRefresh(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	provider := &fakeProvider{expiresIn: 3600, delay: 100 * time.Millisecond}
	m := newTestManager(provider, cache.NewMemoryStore(cache.WithClock(clock.Now)), clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := m.AccessToken(ctx, false)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return provider.calls.Load() == 1 }, time.Second, time.Millisecond)

	tok, err := m.AccessToken(ctx, true)
	require.NoError(t, err)
	<-done

	assert.Equal(t, "token-2", tok.AccessToken)
	assert.Equal(t, int32(2), provider.calls.Load())
}
