package purchases

import (
	"context"
	"sync"
	"time"

	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	guardKeyPrefix  = "purchase-guard:"
	defaultGuardTTL = 2 * time.Minute
	releaseTimeout  = 3 * time.Second
)

// Deletes the guard only if this holder still owns it, so a holder whose
// TTL lapsed cannot free a guard someone else now holds.
var releaseGuardScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisGuard shares guards between exchange instances. TTL only matters
// when a process dies while holding a guard; normal exits always release.
type RedisGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func GuardKey(listingID uuid.UUID) string {
	return guardKeyPrefix + listingID.String()
}

func (g *RedisGuard) TryAcquire(ctx context.Context, listingID uuid.UUID) (func(), error) {
	ttl := g.TTL
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	key := GuardKey(listingID)
	token := uuid.NewString()

	ok, err := g.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be gone; release regardless.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseGuardScript.Run(rctx, g.Client, []string{key}, token).Err(); err != nil {
				log.Error().Err(err).Str("listing_id", listingID.String()).Msg("purchase guard release failed; TTL will expire it")
			}
		})
	}, nil
}
