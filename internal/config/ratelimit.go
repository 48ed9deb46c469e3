package config

import "time"

// RateLimitConfig sizes the token bucket shared by reservation writes and
// verification-code requests.  One bucket exists per key, where the key
// strategy picks what a client is (ip, route, user or a mix).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // bucket size; RATE_LIMIT_BURST overrides it
	RefillTokens   int           // tokens restored per RefillInterval
	RefillInterval time.Duration
	TTL            time.Duration // idle buckets expire after this
	KeyStrategy    string
	Prefix         string // redis key namespace
	Debug          bool   // add X-RateLimit-* headers to responses
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  A reservation burst of
// thirty writes refilling one per second is generous for a single lot.
func LoadRateLimitConfig() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
		rl.Capacity = burst
	}
	return rl.normalized()
}

// normalized clamps values the bucket script cannot work with.  Buckets
// must outlive a few refills or they reset to full between requests.
func (rl RateLimitConfig) normalized() RateLimitConfig {
	rl.Capacity = max(rl.Capacity, 1)
	rl.RefillTokens = max(rl.RefillTokens, 1)
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	rl.TTL = max(rl.TTL, 5*rl.RefillInterval)
	return rl
}
