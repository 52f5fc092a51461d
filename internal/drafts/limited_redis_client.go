package drafts

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LimitedRedisClient is the limited set of functionality expected from the redis client in this adapter.
// This allows for easy mocking and swapping of the client. The universal redis client interface is way too big.
type LimitedRedisClient interface {
	// General commands

	// DEL key [key ...]
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	// Hash commands

	// HGETALL key
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	// HSET key field value [field value ...]
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd

	// Set commands

	// SADD key member [member ...]
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	// SMEMBERS key
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	// SREM key member [member ...]
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}
