package utils

import (
	"regionmap/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv builds a client from REDIS_HOST, REDIS_PORT, REDIS_PASS and
// REDIS_DB. A bad REDIS_DB falls back to 0. The client is lazy; nothing is
// dialed until the first command.
func OpenRedisFromEnv() *redis.Client {
	addr := envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	db := envInt("REDIS_DB", 0)
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: envOr("REDIS_PASS", ""), DB: db})
}
