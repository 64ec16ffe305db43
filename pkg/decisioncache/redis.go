package decisioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
)

// Redis is a shared cache backend for multi-process deployments. Values are
// stored as JSON under a key prefix with the configured TTL; invalidation
// from any process is visible to all of them. Miss coalescing via
// single-flight is per process, so an invalidation racing a load in another
// process is bounded by the TTL.
type Redis[V any] struct {
	client *redis.Client
	group  singleflight.Group
	prefix string
	ttl    time.Duration

	// mu guards gens and purges, the invalidation generations for loads in
	// flight in this process.
	mu     sync.Mutex
	gens   map[string]uint64
	purges uint64

	// owned reports whether Close should close the client.
	owned bool
}

// NewRedis creates a Redis-backed cache. It verifies connectivity before
// returning so a misconfigured address fails at startup, not on the first
// request.
func NewRedis[V any](ctx context.Context, addr, password, prefix string, ttl time.Duration) (*Redis[V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("decisioncache: connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis[V]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		gens:   make(map[string]uint64),
		owned:  true,
	}, nil
}

// NewRedisFromClient creates a Redis-backed cache over an existing client.
// Closing the cache does not close a shared client; the owner does.
func NewRedisFromClient[V any](client *redis.Client, prefix string, ttl time.Duration) *Redis[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis[V]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		gens:   make(map[string]uint64),
	}
}

// Close releases the Redis connection when this cache owns it.
func (r *Redis[V]) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis[V]) redisKey(key string) string {
	return r.prefix + ":" + key
}

// GetOrLoad returns the cached value for key, loading and storing it on a
// miss. Redis errors other than a missing key surface as ErrUnavailable;
// the cache never guesses a value when the backend is down.
func (r *Redis[V]) GetOrLoad(ctx context.Context, key string, load LoadFunc[V]) (V, bool, error) {
	var zero V

	data, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if err == nil {
		var v V
		if uerr := json.Unmarshal([]byte(data), &v); uerr == nil {
			return v, true, nil
		}
		// Undecodable entry: drop it and fall through to a reload.
		r.client.Del(ctx, r.redisKey(key))
	} else if err != redis.Nil {
		return zero, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r.mu.Lock()
	keyGen, purgeGen := r.gens[key], r.purges
	r.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			return v, nil
		}
		// Store only if the key was not invalidated while the load ran.
		r.mu.Lock()
		current := r.gens[key] == keyGen && r.purges == purgeGen
		r.mu.Unlock()
		if !current {
			return v, nil
		}
		r.client.Set(loadCtx, r.redisKey(key), data, r.ttl)
		// An invalidation that interleaved with the Set wins: re-check
		// and delete the entry this load just wrote.
		r.mu.Lock()
		current = r.gens[key] == keyGen && r.purges == purgeGen
		r.mu.Unlock()
		if !current {
			r.client.Del(loadCtx, r.redisKey(key))
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	}
}

// Remove drops the given keys from Redis and detaches any local loads in
// flight for them. Best effort: an unreachable backend leaves TTL as the
// staleness bound.
func (r *Redis[V]) Remove(keys ...string) {
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		r.group.Forget(k)
	}
	r.mu.Lock()
	for _, k := range keys {
		r.gens[k]++
	}
	r.mu.Unlock()
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.redisKey(k)
	}
	r.client.Del(context.Background(), prefixed...)
}

// Purge drops every entry under this cache's prefix. Local loads in flight
// keep their waiters but do not store results.
func (r *Redis[V]) Purge() {
	r.mu.Lock()
	r.purges++
	r.mu.Unlock()
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}
