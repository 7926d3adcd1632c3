package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"chatbot-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// KEYS: uma chave (sorted set) por janela, na ordem da política.
// ARGV[1] = now (ms), ARGV[2] = member, e para a janela i:
// ARGV[1+2i] = tamanho (ms), ARGV[2+2i] = limite.
//
// Retorna 0 quando admitido ou o índice (1-based) da janela que bloqueou.
var redisSlidingScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local member = ARGV[2]
local n = #KEYS

for i = 1, n do
  local size = tonumber(ARGV[1 + i * 2])
  redis.call('ZREMRANGEBYSCORE', KEYS[i], '-inf', now - size)
end

for i = 1, n do
  local limit = tonumber(ARGV[2 + i * 2])
  if redis.call('ZCARD', KEYS[i]) >= limit then
    return i
  end
end

for i = 1, n do
  local size = tonumber(ARGV[1 + i * 2])
  redis.call('ZADD', KEYS[i], now, member)
  redis.call('PEXPIRE', KEYS[i], size)
end

return 0
`)

// RedisSlidingStore implementa domain.WindowStore sobre Redis.
//
// Todas as janelas de uma identidade são avaliadas num único script Lua,
// o que mantém a decisão atômica mesmo com várias instâncias do gateway.
// As chaves expiram sozinhas (PEXPIRE), então não há janitor.
type RedisSlidingStore struct {
	rdb    redis.UniversalClient
	prefix string

	memberSeq atomic.Uint64
}

func NewRedisSlidingStore(rdb redis.UniversalClient, prefix string) *RedisSlidingStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "chatproxy:rl"
	}
	return &RedisSlidingStore{rdb: rdb, prefix: prefix}
}

// Hit implementa domain.WindowStore.
func (s *RedisSlidingStore) Hit(ctx context.Context, key domain.Key, policy domain.Policy, now time.Time) (domain.Decision, error) {
	if len(policy) == 0 {
		return domain.Decision{Allowed: true}, nil
	}

	nowMs := now.UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(s.memberSeq.Add(1), 10)

	keys := make([]string, 0, len(policy))
	args := make([]any, 0, 2+2*len(policy))
	args = append(args, nowMs, member)
	for _, w := range policy {
		keys = append(keys, s.windowKey(key, w))
		args = append(args, w.Size.Milliseconds(), w.Limit)
	}

	idx, err := redisSlidingScript.Run(ctx, s.rdb, keys, args...).Int64()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if idx == 0 {
		return domain.Decision{Allowed: true}, nil
	}
	if idx < 0 || int(idx) > len(policy) {
		return domain.Decision{}, fmt.Errorf("redis sliding window: unexpected result %d", idx)
	}
	return domain.Denied(policy[idx-1]), nil
}

// windowKey usa hash tag na identidade para que todas as janelas caiam no
// mesmo slot em Redis Cluster.
func (s *RedisSlidingStore) windowKey(key domain.Key, w domain.Window) string {
	return fmt.Sprintf("%s:{%s}:%s", s.prefix, key, w.Name)
}
