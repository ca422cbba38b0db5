package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Load builds a Config from environment variables, starting from
// DefaultConfig and applying overrides. Validation is deferred to the
// caller so main() can decide whether a missing value is fatal.
func Load() *Config {
	cfg := DefaultConfig()
	applyEnvironmentOverrides(cfg)
	return cfg
}

func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("OIDC_ISSUER"); v != "" {
		cfg.OIDCIssuer = v
	}
	if v := os.Getenv("OIDC_AUD"); v != "" {
		cfg.OIDCAudience = v
	}
	if v := os.Getenv("AUTH0_DOMAIN"); v != "" {
		cfg.AuthDomain = v
	}
	if v := os.Getenv("AUTH0_CLIENT"); v != "" {
		cfg.AuthClientID = v
	}
	if v := envDuration("JWKS_TTL_SECONDS"); v > 0 {
		cfg.JWKSTTL = v
	}
	if v := envDuration("CLOCK_SKEW_SECONDS"); v > 0 {
		cfg.ClockSkew = v
	}
	if v := envBool("DEV_MODE"); v {
		cfg.DevMode = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Token exchange (C2).
	cfg.Exchange.Enabled = envBool("TOKEN_EXCHANGE_ENABLED")
	if v := os.Getenv("TOKEN_EXCHANGE_ENDPOINT"); v != "" {
		cfg.Exchange.Endpoint = v
	}
	if v := os.Getenv("TOKEN_EXCHANGE_CLIENT_ID"); v != "" {
		cfg.Exchange.ClientID = v
	}
	if v := os.Getenv("TOKEN_EXCHANGE_CLIENT_SECRET"); v != "" {
		cfg.Exchange.ClientSecret = v
	}
	if v := os.Getenv("TOKEN_EXCHANGE_ISSUER"); v != "" {
		cfg.Exchange.Issuer = v
	}
	if v := os.Getenv("TOKEN_EXCHANGE_AUDIENCE"); v != "" {
		cfg.Exchange.Audience = v
	}

	// Session (C4).
	if v := envDuration("SESSION_TTL_SECONDS"); v > 0 {
		cfg.SessionTTL = v
	}

	// Metering (C5/C6).
	if v := os.Getenv("QUOTA_BACKEND"); v != "" {
		cfg.QuotaBackend = Backend(v)
	}
	if v := envDuration("QUOTA_WINDOW_SECONDS"); v > 0 {
		cfg.QuotaWindow = v
	}
	if v := envInt64("MAX_TOKENS_PER_MIN"); v > 0 {
		cfg.QuotaLimitTokens = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}

	// Usage sink (C7), including the legacy env var's deprecation path.
	if v := os.Getenv("USAGE_BACKEND"); v != "" {
		log.Warn().Msg("USAGE_BACKEND is deprecated, use USAGE_METERING instead")
		cfg.UsageBackend = UsageBackend(v)
	}
	if v := os.Getenv("USAGE_METERING"); v != "" {
		cfg.UsageBackend = UsageBackend(v)
	}
	if v := os.Getenv("USAGE_EXTERNAL_URL"); v != "" {
		cfg.UsageExternalURL = v
	}

	// Cache (C8).
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = Backend(v)
	}
	if v := envDuration("CACHE_TTL_SECONDS"); v > 0 {
		cfg.CacheTTL = v
	}

	// Queue (C9).
	if v := os.Getenv("QUEUE_BACKEND"); v != "" {
		cfg.QueueBackend = Backend(v)
	}
	if v := envInt("QUEUE_CAPACITY"); v > 0 {
		cfg.QueueCapacity = v
	}

	// Proxy/worker (C10/C11).
	if v := os.Getenv("ENGINE_URL"); v != "" {
		cfg.EngineURL = v
	}
	if v := envDuration("ENGINE_TIMEOUT_SECONDS"); v > 0 {
		cfg.EngineTimeout = v
	}
	if v := envInt("WORKER_COUNT"); v > 0 {
		cfg.WorkerCount = v
	}

	// Async tasks (C12).
	if v := envDuration("TASK_TTL_SECONDS"); v > 0 {
		cfg.TaskTTL = v
	}
	if v := envDuration("TASK_SWEEP_PERIOD_SECONDS"); v > 0 {
		cfg.TaskSweepPeriod = v
	}
	if v := envDuration("FORWARD_TIMEOUT_SECONDS"); v > 0 {
		cfg.ForwardTimeout = v
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring malformed duration override")
		return 0
	}
	return time.Duration(secs) * time.Second
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring malformed integer override")
		return 0
	}
	return n
}

func envInt64(key string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring malformed integer override")
		return 0
	}
	return n
}
