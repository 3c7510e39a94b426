package config

import "time"

// RateLimitConfig configures the Redis token bucket applied to the API.
// The AI ingestion endpoints use a separate, larger bucket because the
// inference workers submit results in bursts.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
	return normalizeRateLimit(RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

// LoadIngestRateLimitConfig derives the ingestion bucket from the API
// bucket, overriding capacity with INGEST_RATE_LIMIT_CAPACITY.
func LoadIngestRateLimitConfig() RateLimitConfig {
	cfg := LoadRateLimitConfig()
	cfg.Capacity = envInt("INGEST_RATE_LIMIT_CAPACITY", 600)
	cfg.KeyStrategy = "ip_route"
	cfg.Prefix = cfg.Prefix + ":ingest"
	return normalizeRateLimit(cfg)
}

func normalizeRateLimit(cfg RateLimitConfig) RateLimitConfig {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
