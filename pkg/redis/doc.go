// Package redis provides a connection helper for the Redis-backed
// authorization state store.
//
// The wrapper adds retrying connect on top of the go-redis client; everything
// else is used through *redis.Client directly.
package redis
