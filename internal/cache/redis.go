package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"event-impact-lab/internal/domain"
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	TTL    time.Duration
	Prefix string // namespace for every key, e.g. "eil:"
	Logger zerolog.Logger
}

// Redis stores profiles as JSON. Calls go through a circuit breaker so a
// dead Redis costs one failed call per breaker timeout instead of one per
// request.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewRedis wraps client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	r := &Redis{
		client: client,
		ttl:    opts.TTL,
		prefix: opts.Prefix,
		log:    opts.Logger,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "redis-profile-cache",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state change")
		},
	})
	return r
}

// Get returns a cached profile. Misses, decode failures and Redis errors all
// report false.
func (r *Redis) Get(ctx context.Context, symbol, eventType string) (*domain.ImpactProfile, bool) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		b, err := r.client.Get(ctx, r.prefix+key(symbol, eventType)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		r.logErr(err, "get")
		return nil, false
	}
	b, _ := out.([]byte)
	if b == nil {
		return nil, false
	}

	var p domain.ImpactProfile
	if err := json.Unmarshal(b, &p); err != nil {
		r.log.Warn().Err(err).Str("symbol", symbol).Msg("discarding undecodable cached profile")
		return nil, false
	}
	return &p, true
}

// Set stores p with the configured TTL.
func (r *Redis) Set(ctx context.Context, p *domain.ImpactProfile) {
	if p == nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		r.log.Warn().Err(err).Msg("encode profile")
		return
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, r.prefix+key(p.Symbol, p.EventType), b, r.ttl).Err()
	})
	if err != nil {
		r.logErr(err, "set")
	}
}

// InvalidateSymbol deletes every profile key of symbol using SCAN.
func (r *Redis) InvalidateSymbol(ctx context.Context, symbol string) {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		iter := r.client.Scan(ctx, 0, r.prefix+symbolPrefix(symbol)+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, r.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		r.logErr(err, "invalidate")
	}
}

func (r *Redis) logErr(err error, op string) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return
	}
	r.log.Warn().Err(err).Str("op", op).Msg("redis cache error")
}

var _ ProfileCache = (*Redis)(nil)
