package config

import (
	"strings"
	"time"
)

// CacheConfig drives the Redis response cache in front of public space
// reads. Nothing invalidates entries; host edits and new reviews show up
// once the TTL lapses, so review lists get a shorter one.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	ReviewTTL    time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET,HEAD")),
		TTL:          envDur("CACHE_TTL", 60*time.Second),
		ReviewTTL:    envDur("CACHE_REVIEW_TTL", 15*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache:spaces"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 256<<10),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	if cfg.ReviewTTL <= 0 || cfg.ReviewTTL > cfg.TTL {
		cfg.ReviewTTL = cfg.TTL
	}
	if cfg.MaxBodyBytes < 1 {
		cfg.MaxBodyBytes = 1
	}
	return cfg
}

// Reviews returns the variant used for review lists: its own key prefix and
// the shorter TTL.
func (c CacheConfig) Reviews() CacheConfig {
	c.TTL = c.ReviewTTL
	c.Prefix += ":reviews"
	return c
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			m[p] = true
		}
	}
	return m
}
