package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/config"
	"github.com/iliyamo/taskflow/internal/metrics"
)

// Layer wraps a Store with serialization, prefixing, per-call deadlines
// and fail-open error handling.  Store failures are logged and counted,
// never returned: a broken cache degrades to direct loads.
type Layer struct {
	store   Store
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Registry
}

// New builds a Layer over store.  A nil store disables caching.
func New(store Store, cfg config.CacheConfig, log *zap.Logger, m *metrics.Registry) *Layer {
	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Layer{
		store:   store,
		prefix:  cfg.Prefix,
		ttl:     ttl,
		timeout: cfg.Timeout,
		log:     log.Named("cache"),
		metrics: m,
	}
}

// Enabled reports whether reads are served from a store.
func (l *Layer) Enabled() bool { return l != nil && l.store != nil }

// GetOrLoad returns the cached value for key, or calls load, caches its
// result and returns it.  Loader errors are returned as-is and nothing is
// cached for them.
func GetOrLoad[T any](ctx context.Context, l *Layer, key Key, load func(context.Context) (T, error)) (T, error) {
	if !l.Enabled() {
		return load(ctx)
	}
	if raw, ok := l.get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			l.metrics.CacheLookup(key.Kind, "hit")
			return v, nil
		}
		l.log.Warn("discarding undecodable entry", zap.String("key", key.Name))
	}
	l.metrics.CacheLookup(key.Kind, "miss")
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	l.put(ctx, key, v)
	return v, nil
}

// Invalidate deletes every key and every key recorded under each scope.
// It runs after the write commits and before the caller responds.
func (l *Layer) Invalidate(ctx context.Context, inv Invalidation) {
	if !l.Enabled() || inv.Empty() {
		return
	}
	ctx, cancel := l.opContext(ctx)
	defer cancel()

	names := make([]string, 0, len(inv.keys)+len(inv.scopes))
	for _, k := range inv.keys {
		names = append(names, l.name(k.Name))
	}
	for _, s := range inv.scopes {
		idx := l.index(s)
		members, err := l.store.Members(ctx, idx)
		if err != nil {
			l.log.Error("scope lookup failed", zap.String("scope", string(s)), zap.Error(err))
		}
		names = append(names, members...)
		names = append(names, idx)
	}
	n, err := l.store.Delete(ctx, names...)
	if err != nil {
		l.log.Error("invalidation failed", zap.Strings("keys", names), zap.Error(err))
		return
	}
	l.metrics.CacheInvalidated(n)
	l.log.Debug("invalidated", zap.Int("requested", len(names)), zap.Int("deleted", n))
}

func (l *Layer) get(ctx context.Context, key Key) ([]byte, bool) {
	ctx, cancel := l.opContext(ctx)
	defer cancel()
	raw, ok, err := l.store.Get(ctx, l.name(key.Name))
	if err != nil {
		l.metrics.CacheLookup(key.Kind, "error")
		l.log.Warn("cache get failed", zap.String("key", key.Name), zap.Error(err))
		return nil, false
	}
	return raw, ok
}

func (l *Layer) put(ctx context.Context, key Key, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		l.log.Warn("cache encode failed", zap.String("key", key.Name), zap.Error(err))
		return
	}
	ctx, cancel := l.opContext(ctx)
	defer cancel()
	name := l.name(key.Name)
	if err := l.store.Set(ctx, name, raw, l.ttl); err != nil {
		l.log.Warn("cache set failed", zap.String("key", key.Name), zap.Error(err))
		return
	}
	// Tracked after the write: a concurrent invalidation that misses this
	// entry leaves it listed in a fresh index for the next one.
	for _, s := range key.Scopes {
		if err := l.store.Track(ctx, l.index(s), name, l.ttl); err != nil {
			l.log.Warn("cache index failed", zap.String("scope", string(s)), zap.Error(err))
		}
	}
}

func (l *Layer) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	// Detached from the request so a client disconnect cannot skip an
	// invalidation that follows a committed write.
	ctx = context.WithoutCancel(ctx)
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Layer) name(n string) string {
	if l.prefix == "" {
		return n
	}
	return l.prefix + ":" + n
}

func (l *Layer) index(s Scope) string { return l.name("idx:" + string(s)) }
