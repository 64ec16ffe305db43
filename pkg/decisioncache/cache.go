package decisioncache

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the staleness backstop applied when no TTL is configured.
const DefaultTTL = 60 * time.Second

// DefaultMaxEntries bounds the memory backend when no size is configured.
const DefaultMaxEntries = 16384

// ErrUnavailable wraps backend failures (store lookup errors, Redis
// connectivity). Callers treat it as a transient condition and never as an
// implicit allow.
var ErrUnavailable = errors.New("decisioncache: backend unavailable")

// LoadFunc populates a missing cache entry. It is invoked at most once per
// key across concurrent callers.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// Cache is the read-through contract shared by both backends. GetOrLoad
// returns the value plus whether it was served from cache; a load error is
// returned unwrapped so callers can classify it.
type Cache[V any] interface {
	GetOrLoad(ctx context.Context, key string, load LoadFunc[V]) (V, bool, error)
	Remove(keys ...string)
	Purge()
}
