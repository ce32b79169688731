// Package cache holds short-lived snapshots of operator API responses.
//
// Statistics and incident listings are recomputed from the ledger, which
// for the Redis backend is a full LRANGE. The API renders each response
// once per TTL through Middleware, backed by a MemoryCache or, when
// several API replicas share a ledger, a RedisCache.
package cache
