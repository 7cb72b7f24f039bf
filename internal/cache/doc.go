// Package cache persists small JSON documents with a time-to-live.
//
// Each cache key maps to one Entry holding the payload, the time it was
// stored and its TTL. A read past StoredAt+TTL is a miss. Reads never fail:
// missing, corrupt or expired entries are all reported as a miss so callers
// simply regenerate the value.
//
// Three Store implementations are provided:
//   - FileStore: one <key>.json file per key, written via temp file + rename
//   - MemoryStore: process-local, used by tests and dependency injection
//   - RedisStore: entries shared through Redis, for fleets of workers
package cache
