// Package config reads zoombulk settings from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file with LoadDotEnv. Variables already set in the environment are
// never overwritten by the file.
//
// Environment variables:
//
//	ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID, ZOOM_CLIENT_SECRET  server-to-server OAuth credentials
//	CACHE_DIR (or ZOOM_CACHE_DIR)                        file cache directory (default ~/.zoom/cache)
//	ZOOM_CACHE_BACKEND                                   file, redis or memory (default file)
//	ZOOM_REDIS_URL                                       redis:// URL for the redis backend
//	ZOOM_API_BASE_URL                                    API base URL (default https://api.zoom.us/v2)
//	ZOOM_OAUTH_TOKEN_URL                                 token endpoint (default https://zoom.us/oauth/token)
//	ZOOM_MAX_CONCURRENCY                                 bulk calls in flight (default 10)
//	ZOOM_REQUESTS_PER_SECOND                             bulk call rate ceiling, 0 disables (default 0)
//	ZOOM_USERS_CACHE_TTL                                 user index lifetime (default 24h)
//	ZOOM_TOKEN_SAFETY_MARGIN                             token refresh margin (default 5m)
//	ZOOM_DEFAULT_TIMEZONE                                timezone for rows without one (default UTC)
//	LOG_LEVEL                                            debug, info, warn or error (default info)
//	LOG_FORMAT                                           text or json (default text)
package config
