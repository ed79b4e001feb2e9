// Command server wires the talentstream service: JWKS-backed auth, Redis
// admission control and counters, the audit fan-out pipeline, and the
// streaming HTTP surface. Every backend is optional; missing ones degrade to
// in-process implementations so a bare `go run` still serves streams.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"talentstream/internal/audit"
	"talentstream/internal/audit/broadcast"
	"talentstream/internal/audit/kafka"
	auditpg "talentstream/internal/audit/store/postgres"
	"talentstream/internal/audit/webhook"
	"talentstream/internal/auth"
	"talentstream/internal/auth/jwks"
	"talentstream/internal/counters"
	"talentstream/internal/limits/ratelimit"
	"talentstream/internal/limits/slots"
	"talentstream/internal/platform/config"
	"talentstream/internal/platform/httpserver"
	"talentstream/internal/platform/logger"
	"talentstream/internal/platform/metrics"
	platformredis "talentstream/internal/platform/redis"
	"talentstream/internal/stream"
	httptransport "talentstream/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, using in-process fallbacks", "error", err)
		redisClient = nil
	}

	var db *sql.DB
	var store audit.Store
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			err = db.PingContext(context.Background())
		}
		if err != nil {
			log.Warn("database unavailable, audit persistence disabled", "error", err)
			db = nil
		} else {
			pgStore := auditpg.New(db)
			if err := pgStore.EnsureSchema(context.Background()); err != nil {
				log.Warn("audit schema setup failed, persistence disabled", "error", err)
			} else {
				store = pgStore
			}
		}
	}

	hub := broadcast.New()

	auditOpts := []audit.Option{audit.WithLogger(log)}
	if store != nil {
		auditOpts = append(auditOpts, audit.WithStore(store))
	}
	if cfg.AuditWebhook != "" {
		auditOpts = append(auditOpts, audit.WithNotifier(webhook.New(cfg.AuditWebhook, webhook.WithLogger(log))))
	}
	var producer *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, kafka.WithLogger(log))
		if err != nil {
			log.Warn("kafka unavailable, broker sink disabled", "error", err)
		} else {
			defer producer.Close()
			auditOpts = append(auditOpts, audit.WithProducer(producer))
		}
	}
	auditLogger, err := audit.NewLogger(hub, auditOpts...)
	if err != nil {
		log.Error("audit logger init failed", "error", err)
		os.Exit(1)
	}

	aggOpts := []counters.Option{counters.WithLogger(log)}
	var slotStore slots.Store = slots.NewMemoryStore()
	if redisClient != nil {
		aggOpts = append(aggOpts, counters.WithRedis(redisClient.Client))
		slotStore = slots.NewRedisStore(redisClient.Client, slots.WithLogger(log))
	}
	agg := counters.New(aggOpts...)

	var verifier *auth.Verifier
	var keyCache *jwks.Cache
	if cfg.Auth.JWKSURL != "" {
		keyCache, err = jwks.NewCache(jwks.NewHTTPFetcher(cfg.Auth.JWKSURL),
			jwks.WithTTL(cfg.Auth.CacheTTL), jwks.WithLogger(log))
		if err == nil {
			verifier, err = auth.NewVerifier(keyCache, cfg.Auth.Audience, cfg.Auth.Issuer)
		}
		if err != nil {
			log.Error("auth setup failed", "error", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	promMetrics := metrics.New(registry)

	streamOpts := []stream.Option{
		stream.WithMetrics(promMetrics),
		stream.WithLogger(log),
	}
	if verifier != nil {
		streamOpts = append(streamOpts, stream.WithVerifier(verifier))
	}
	streams, err := stream.New(hub, slotStore, agg, stream.Config{
		InactivityTTL:     cfg.Stream.InactivityTTL,
		MaxStreamsPerUser: cfg.Stream.MaxStreamsPerUser,
		SlotTTL:           cfg.Stream.SlotTTL,
	}, streamOpts...)
	if err != nil {
		log.Error("stream service init failed", "error", err)
		os.Exit(1)
	}

	var primary ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	var fallback ratelimit.Limiter
	if redisClient != nil {
		fallback = primary
		primary = ratelimit.NewRedisLimiter(redisClient.Client, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}
	limiter := ratelimit.New(primary, fallback, cfg.RateLimit.Limit, cfg.RateLimit.Window,
		ratelimit.WithLogger(log))

	handlerOpts := []httptransport.HandlerOption{httptransport.WithMetrics(promMetrics)}
	if store != nil {
		handlerOpts = append(handlerOpts, httptransport.WithStore(store))
	}
	if keyCache != nil {
		handlerOpts = append(handlerOpts, httptransport.WithKeyCache(keyCache))
	}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, httptransport.WithRedis(redisClient))
	}
	if db != nil {
		handlerOpts = append(handlerOpts, httptransport.WithDB(db))
	}
	handler := httptransport.NewHandler(streams, auditLogger, agg, log, handlerOpts...)
	router := httptransport.NewRouter(handler, verifier, limiter, registry)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting talentstream", "addr", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
