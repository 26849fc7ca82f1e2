package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SubmitGuard serialises submissions of the same project.
type SubmitGuard interface {
	// Acquire returns ok=false when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSubmitGuard holds a SET NX lock per key.
type RedisSubmitGuard struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisSubmitGuard(rdb *redis.Client) *RedisSubmitGuard {
	return &RedisSubmitGuard{rdb: rdb, prefix: "waigo:submit:"}
}

func (g *RedisSubmitGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	fullKey := g.prefix + key
	ok, err := g.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// 使用独立 context，避免请求取消后锁无法释放
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, g.rdb, []string{fullKey}, token)
	}
	return release, true, nil
}
