// Package oauth obtains and caches Zoom Server-to-Server OAuth access tokens.
//
// A TokenManager wraps an IdentityProvider (normally the account
// credentials grant against zoom.us) with a cache.Store. Tokens are cached
// per account and client ID with a TTL shortened by a safety margin, so a
// token is replaced a few minutes before Zoom would reject it. Concurrent
// callers that find the cache empty or stale share a single exchange.
//
// TokenSource adapts the manager to oauth2.TokenSource so an authorized
// *http.Client can be built with oauth2.NewClient.
package oauth
