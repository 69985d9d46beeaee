// Package redis provides the Redis-backed infrastructure: a connection
// wrapper with retrying connect, a typed JSON cache, the dataset snapshot
// repository and a sliding-window rate limiter for upstream fetches.
//
// Keys are namespaced by prefix:
//
//	armorlens:dataset:current     dataset snapshot (JSON, TTL = INGEST_SNAPSHOT_TTL)
//	armorlens:fetch:<source-hash> sorted set of recent fetch timestamps
package redis
