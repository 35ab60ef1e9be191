package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the read-through cache layer.  When
// Enabled is false, or the redis backend is selected but unreachable, the
// layer degrades to direct store reads.  TTL bounds the life of every entry
// and backs up explicit invalidation; it never replaces it.
type CacheConfig struct {
	Enabled bool
	Backend string // "redis" or "memory"
	TTL     time.Duration
	Prefix  string
	Timeout time.Duration // per-operation deadline for the cache store
}

// LoadCacheConfig reads CACHE_* variables.  Defaults are used when
// variables are not set.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		Backend: strings.ToLower(envStr("CACHE_BACKEND", "redis")),
		TTL:     envDur("CACHE_TTL", 30*time.Minute),
		Prefix:  envStr("CACHE_PREFIX", "taskflow"),
		Timeout: envDur("CACHE_TIMEOUT", 200*time.Millisecond),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.Backend != "memory" {
		cfg.Backend = "redis"
	}
	return cfg
}
