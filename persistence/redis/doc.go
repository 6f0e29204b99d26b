// Package redis provides Redis-based implementations of arisankit persistence
// interfaces.
//
// It offers two stores:
//   - SubmissionStore: implements arisankit.SubmissionStore, journaling every
//     terminal pipeline outcome per wallet
//   - IdempotencyStore: implements arisankit.IdempotencyStore, guarding
//     against duplicate in-flight submissions across broker instances
//
// # Basic Usage
//
//	import (
//	    "github.com/redis/go-redis/v9"
//	    "github.com/arisan-labs/arisankit"
//	    redisstore "github.com/arisan-labs/arisankit/persistence/redis"
//	)
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: "localhost:6379",
//	})
//
//	broker, err := arisankit.NewClient(wallet, contract,
//	    arisankit.WithSubmissionStore(redisstore.NewSubmissionStore(client)),
//	    arisankit.WithIdempotencyStore(redisstore.NewIdempotencyStore(client)),
//	)
//
// # Multi-Tenant Usage
//
// Use key prefixes to isolate data for different environments sharing one
// Redis instance:
//
//	prodStore := redisstore.NewSubmissionStore(client, redisstore.WithSubmissionStoreKeyPrefix("prod"))
//	testStore := redisstore.NewSubmissionStore(client, redisstore.WithSubmissionStoreKeyPrefix("test"))
//
// # Redis Key Structure
//
// SubmissionStore uses the following key patterns:
//
//   - arisankit:submission:{id} - Submission record (JSON)
//   - arisankit:submission:wallet:{wallet} - Sorted set of record ids per wallet, scored by creation time
//   - arisankit:submission:created_at - Sorted set of all record ids by creation time
//
// IdempotencyStore uses the following key pattern:
//
//   - arisankit:idempotency:{key} - Guard marker (with TTL for automatic expiration)
//
// # Thread Safety
//
// Both stores are safe for use from multiple goroutines; Redis handles the
// underlying concurrency control.
//
// # Cleanup
//
// Submission records do not expire automatically. Use DeleteOlderThan for
// periodic cleanup:
//
//	deleted, err := store.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
//
// # Supported Redis Configurations
//
// Both stores work with standalone Redis, Redis Sentinel and Redis Cluster.
// Pass the appropriate redis.UniversalClient implementation.
package redis
