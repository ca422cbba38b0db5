package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/attach-gateway/internal/auth"
	"github.com/erauner12/attach-gateway/internal/cache"
	"github.com/erauner12/attach-gateway/internal/config"
	"github.com/erauner12/attach-gateway/internal/httpapi"
	"github.com/erauner12/attach-gateway/internal/proxy"
	"github.com/erauner12/attach-gateway/internal/quota"
	"github.com/erauner12/attach-gateway/internal/queue"
	"github.com/erauner12/attach-gateway/internal/tasks"
	"github.com/erauner12/attach-gateway/internal/usage"
	"github.com/erauner12/attach-gateway/internal/worker"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "attach-gateway").Logger()

	cfg := config.Load()
	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	var redisClient *redis.Client
	if cfg.QuotaBackend == config.BackendRedis || cfg.CacheBackend == config.BackendRedis || cfg.QueueBackend == config.BackendRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
	}

	// C1/C2/C3: identity.
	jwks := auth.NewJWKSCache()
	verifier := auth.NewVerifier(auth.Config{Issuer: cfg.OIDCIssuer, Audience: cfg.OIDCAudience, Leeway: cfg.ClockSkew}, jwks)

	authCfg := auth.MiddlewareConfig{Verifier: verifier}
	if cfg.Exchange.Enabled {
		exchangeCfg := auth.ExchangeConfig{
			Enabled:      cfg.Exchange.Enabled,
			Endpoint:     cfg.Exchange.Endpoint,
			ClientID:     cfg.Exchange.ClientID,
			ClientSecret: cfg.Exchange.ClientSecret,
			Issuer:       cfg.Exchange.Issuer,
			Audience:     cfg.Exchange.Audience,
		}
		authCfg.Exchange = auth.NewExchangeClient(exchangeCfg)
		authCfg.ExchangeVerifier = auth.NewVerifier(auth.Config{
			Issuer:   cfg.Exchange.Issuer,
			Audience: cfg.Exchange.Audience,
			Leeway:   cfg.ClockSkew,
		}, jwks)
	}

	// C5: sliding-window meter store.
	var quotaStore quota.Store
	if cfg.QuotaBackend == config.BackendRedis {
		quotaStore = quota.NewRedisStore(redisClient, cfg.QuotaWindow)
	} else {
		quotaStore = quota.NewMemoryStore(cfg.QuotaWindow)
	}
	quotaEncoding := os.Getenv("QUOTA_ENCODING")
	if quotaEncoding == "" {
		quotaEncoding = "cl100k_base"
	}
	encoder := quota.NewEncoder(quotaEncoding)

	// C7: usage sink.
	metricsReg := prometheus.NewRegistry()
	usageSink := usage.New(cfg.UsageBackend, cfg.UsageExternalURL, metricsReg)

	// C8: cache.
	var chatCache cache.Cache
	if cfg.CacheBackend == config.BackendRedis {
		chatCache = cache.NewRedisStore(redisClient, cfg.CacheTTL)
	} else {
		chatCache = cache.NewMemoryStore()
	}

	// C9: job queue.
	var jobQueue queue.Queue
	if cfg.QueueBackend == config.BackendRedis {
		jobQueue = queue.NewRedisQueue(redisClient, "")
	} else {
		jobQueue = queue.NewMemoryQueue(cfg.QueueCapacity)
	}

	// C10: proxy/dispatcher.
	dispatcher := proxy.NewDispatcher(cfg.EngineURL, &http.Client{Timeout: cfg.EngineTimeout}, chatCache, jobQueue, cfg.QueueBackend)

	// C11: background workers, only needed when jobs are actually deferred.
	ctx, cancelWorkers := context.WithCancel(context.Background())
	if cfg.QueueBackend != config.BackendMemory {
		for i := 0; i < cfg.WorkerCount; i++ {
			w := worker.New(cfg.EngineURL, &http.Client{Timeout: cfg.EngineTimeout}, chatCache, jobQueue)
			go w.Run(ctx)
		}
		log.Info().Int("workers", cfg.WorkerCount).Msg("started background workers")
	}

	// C12: async task registry.
	registry := tasks.NewRegistry(cfg.TaskTTL)
	forwarder := tasks.NewForwarder(registry, cfg.ForwardTimeout)
	sweepStop := make(chan struct{})
	go registry.RunSweeper(cfg.TaskSweepPeriod, sweepStop)

	srv := &httpapi.Server{
		AuthConfig: authCfg,
		Quota: httpapi.QuotaConfig{
			Store:       quotaStore,
			Encoder:     encoder,
			LimitTokens: cfg.QuotaLimitTokens,
			Window:      cfg.QuotaWindow,
			Sink:        usageSink,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		Dispatcher:     dispatcher,
		Tasks:          httpapi.TaskHandlers{Registry: registry, Forwarder: forwarder},
		MetricsReg:     metricsReg,
		AuthDomain:     cfg.AuthDomain,
		AuthClientID:   cfg.AuthClientID,
		OIDCAudience:   cfg.OIDCAudience,
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses must not be cut off
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	close(sweepStop)
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
