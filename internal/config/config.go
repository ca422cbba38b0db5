package config

import "time"

// Backend selects which concrete implementation backs a pluggable
// component (the meter store, cache, or job queue).
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// UsageBackend selects which usage sink receives metered completions.
type UsageBackend string

const (
	UsageBackendNull     UsageBackend = "null"
	UsageBackendMetric   UsageBackend = "metric"
	UsageBackendExternal UsageBackend = "external"
)

// Config holds all runtime configuration for the gateway.
type Config struct {
	// HTTP surface
	ListenAddr     string
	AllowedOrigins []string

	// C1/C2: identity
	OIDCIssuer   string
	OIDCAudience string
	AuthDomain   string
	AuthClientID string
	JWKSTTL      time.Duration
	ClockSkew    time.Duration

	Exchange ExchangeConfig

	// C4: session
	SessionTTL time.Duration

	// C5/C6: metering
	QuotaBackend     Backend
	QuotaWindow      time.Duration
	QuotaLimitTokens int64
	RedisURL         string

	// C7: usage
	UsageBackend     UsageBackend
	UsageExternalURL string

	// C8: cache
	CacheBackend Backend
	CacheTTL     time.Duration

	// C9: queue
	QueueBackend  Backend
	QueueCapacity int

	// C10/C11: proxy/worker
	EngineURL      string
	EngineTimeout  time.Duration
	WorkerCount    int

	// C12: async tasks
	TaskTTL          time.Duration
	TaskSweepPeriod  time.Duration
	ForwardTimeout   time.Duration

	LogLevel string
	DevMode  bool
}

// ExchangeConfig is the subset of token-exchange settings sourced from
// the environment; mirrors auth.ExchangeConfig so cmd/gateway can build
// one from the other without internal/config importing internal/auth.
type ExchangeConfig struct {
	Enabled      bool
	Endpoint     string
	ClientID     string
	ClientSecret string
	Issuer       string
	Audience     string
}

// DefaultConfig returns a configuration with sensible defaults, matching
// what the gateway needs to boot in a local/dev environment.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		AllowedOrigins:   []string{},
		JWKSTTL:          10 * time.Minute,
		ClockSkew:        time.Minute,
		SessionTTL:       23 * time.Hour,
		QuotaBackend:     BackendMemory,
		QuotaWindow:      time.Minute,
		QuotaLimitTokens: 60000,
		UsageBackend:     UsageBackendNull,
		CacheBackend:     BackendMemory,
		CacheTTL:         10 * time.Minute,
		QueueBackend:     BackendMemory,
		QueueCapacity:    256,
		EngineTimeout:    60 * time.Second,
		WorkerCount:      4,
		TaskTTL:          1 * time.Hour,
		TaskSweepPeriod:  1 * time.Minute,
		ForwardTimeout:   60 * time.Second,
		LogLevel:         "info",
	}
}

// Validate checks that the configuration is sufficient to boot the
// gateway.
func (c *Config) Validate() error {
	if c.OIDCIssuer == "" {
		return ErrMissingIssuer
	}
	if c.OIDCAudience == "" {
		return ErrMissingAudience
	}
	if c.EngineURL == "" {
		return ErrMissingEngineURL
	}
	if c.Exchange.Enabled {
		if c.Exchange.Endpoint == "" || c.Exchange.ClientID == "" || c.Exchange.ClientSecret == "" {
			return ErrExchangeIncomplete
		}
	}
	if c.QuotaBackend != BackendMemory && c.QuotaBackend != BackendRedis {
		return ErrInvalidBackend
	}
	if c.CacheBackend != BackendMemory && c.CacheBackend != BackendRedis {
		return ErrInvalidBackend
	}
	if c.QueueBackend != BackendMemory && c.QueueBackend != BackendRedis {
		return ErrInvalidBackend
	}
	if (c.QuotaBackend == BackendRedis || c.CacheBackend == BackendRedis || c.QueueBackend == BackendRedis) && c.RedisURL == "" {
		return ErrInvalidBackend
	}
	return nil
}
