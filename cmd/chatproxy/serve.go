package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"chatbot-gateway/config"
	"chatbot-gateway/gate"
	"chatbot-gateway/logger"
	"chatbot-gateway/middleware/ratelimit/application"
	"chatbot-gateway/middleware/ratelimit/domain"
	"chatbot-gateway/middleware/ratelimit/infra"
	"chatbot-gateway/server"
)

const redisPingTimeout = 2 * time.Second

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: os.Stderr})
			if err != nil {
				return err
			}
			slog.SetDefault(log)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var rdb redis.UniversalClient
	if cfg.UsesRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = client.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		rdb = client
	}

	policy := domain.MessagePolicy(cfg.RateLimitPerMinute, cfg.RateLimitPerHour)

	var windows domain.WindowStore
	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		windows = infra.NewRedisSlidingStore(rdb, cfg.RateLimitPrefix)
	default:
		mem := infra.NewMemorySlidingStore(
			infra.WithSlidingIdleTTL(policy.Largest()),
			infra.WithSlidingCleanupEvery(cfg.JanitorInterval),
		)
		mem.StartJanitor(ctx)
		windows = mem
	}

	var (
		stats    domain.StatsStore
		snapshot server.StatsSource
	)
	switch cfg.StatsBackend {
	case config.BackendMemory:
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.StatsTrackKeys))
		stats, snapshot = mem, mem
	case config.BackendRedis:
		stats = infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys),
		)
	}

	var flood domain.LimiterStore
	if cfg.FloodRPS > 0 {
		bucket := infra.NewBucketStore(cfg.FloodRPS, cfg.FloodBurst, infra.WithCleanupEvery(cfg.JanitorInterval))
		bucket.StartJanitor(ctx)
		flood = bucket
	}

	var pool domain.SlotPool
	if cfg.ConcurrencyMax > 0 {
		pool = infra.NewChanPool(cfg.ConcurrencyMax)
	}

	g := gate.New(gate.Options{
		Bots: cfg.Registry,
		Limiter: application.Service{
			Store:  windows,
			Policy: policy,
			Clock:  infra.RealClock{},
		},
		Forwarder:        gate.NewHTTPForwarder(cfg.UpstreamTimeout),
		CORS:             gate.CORS{AllowedOrigins: cfg.AllowedOrigins},
		MaxMessageLength: cfg.MaxMessageLength,
		TrustProxy:       cfg.TrustProxyHeaders,
		Stats:            stats,
		Logger:           log,
	})

	srv := server.New(server.Options{
		Addr:           cfg.ListenAddr,
		ChatEndpoint:   cfg.ChatEndpoint,
		Gate:           g,
		Flood:          flood,
		TrustProxy:     cfg.TrustProxyHeaders,
		Pool:           pool,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		Stats:          stats,
		Snapshot:       snapshot,
		Logger:         log,
	})

	log.Info("gateway configured",
		"endpoint", cfg.ChatEndpoint,
		"bots", cfg.Registry.Len(),
		"per_minute", cfg.RateLimitPerMinute,
		"per_hour", cfg.RateLimitPerHour,
		"rate_limit_backend", cfg.RateLimitBackend,
		"stats_backend", cfg.StatsBackend,
		"flood_rps", cfg.FloodRPS,
		"concurrency_max", cfg.ConcurrencyMax,
		"trust_proxy_headers", cfg.TrustProxyHeaders,
	)
	for _, id := range cfg.Registry.IDs() {
		if url, _ := cfg.Registry.Lookup(id); url == "" {
			log.Warn("bot has no webhook configured", "bot_id", id, "env", config.WebhookEnvKey(id))
		}
	}

	return srv.Run(ctx)
}
