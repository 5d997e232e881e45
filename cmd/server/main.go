// main wires the decision pipeline and its HTTP surface. Store backends
// are chosen from configuration: Redis and Postgres when configured,
// in-memory fallbacks for local development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"conductor/internal/audit"
	auditkafka "conductor/internal/audit/kafka"
	"conductor/internal/auth"
	"conductor/internal/auth/jwt"
	"conductor/internal/auth/revocation"
	"conductor/internal/clients"
	"conductor/internal/pipeline"
	pipelinehandler "conductor/internal/pipeline/handler"
	"conductor/internal/platform/config"
	"conductor/internal/platform/httpserver"
	"conductor/internal/platform/logger"
	platformredis "conductor/internal/platform/redis"
	"conductor/internal/policy"
	ratelimitmetrics "conductor/internal/ratelimit/metrics"
	ratelimitmw "conductor/internal/ratelimit/middleware"
	ratelimitsvc "conductor/internal/ratelimit/service"
	"conductor/internal/ratelimit/store/bucket"
	"conductor/internal/rbac"
	"conductor/internal/skills"
	skillshandler "conductor/internal/skills/handler"
	httptransport "conductor/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	// Revocation and rate limiting share the Redis instance so every
	// replica sees the same state.
	var revocationStore auth.RevocationStore
	var bucketStore ratelimitsvc.BucketStore
	if redisClient != nil {
		revocationStore = revocation.NewRedisStore(redisClient.Client)
		bucketStore = bucket.NewRedisBucketStore(redisClient.Client)
	} else {
		log.Warn("redis not configured, using in-memory stores; state is per-replica")
		revocationStore = revocation.NewInMemoryStore()
		bucketStore = bucket.NewInMemoryBucketStore()
	}

	verifier := jwt.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	authService := auth.NewService(verifier, revocationStore)

	limiter, err := ratelimitsvc.New(bucketStore, ratelimitsvc.Limits{
		GlobalPerIP: cfg.GlobalRateLimit,
		PerUser:     cfg.UserRateLimit,
		Window:      cfg.RateWindow,
	}, ratelimitsvc.WithLogger(log), ratelimitsvc.WithMetrics(ratelimitmetrics.New()))
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}

	downstream := clients.NewSet(cfg)

	gateOpts := []policy.GateOption{policy.WithLogger(log)}
	if cfg.PolicyCacheDenies {
		gateOpts = append(gateOpts, policy.WithDenyCaching())
	}
	gate := policy.NewGate(
		policy.NewClient(downstream.Policy, cfg.PolicyCacheTTL),
		cfg.PolicyTimeout,
		gateOpts...,
	)

	registry := skills.NewRegistry(cfg.DispatchTimeout, skills.RetryPolicy{
		MaxAttempts: cfg.DispatchAttempts,
		Backoff:     cfg.DispatchBackoff,
	})
	catalog := skills.NewCatalog(downstream)
	if err := catalog.RegisterBuiltins(registry); err != nil {
		log.Error("builtin skill registration failed", "error", err)
		os.Exit(1)
	}
	dispatcher := skills.NewDispatcher(registry, skills.WithDispatchLogger(log))

	auditStore, cleanup, err := buildAuditStore(cfg, log)
	if err != nil {
		log.Error("audit store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	recorderOpts := []audit.RecorderOption{audit.WithRecorderLogger(log)}
	if cfg.AuditKafkaBroker != "" {
		publisher, err := auditkafka.NewPublisher(cfg.AuditKafkaBroker, cfg.AuditKafkaTopic)
		if err != nil {
			log.Error("kafka publisher init failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		// Kafka delivery runs off the request path; the store write
		// stays the durable copy.
		worker := audit.NewWorker(256, log, publisher)
		workerCtx, stopWorker := context.WithCancel(context.Background())
		defer stopWorker()
		go func() {
			if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
		recorderOpts = append(recorderOpts, audit.WithWorker(worker))
	}
	recorder := audit.NewRecorder(auditStore, cfg.AuditTimeout, recorderOpts...)

	pipe := pipeline.New(
		authService,
		limiter,
		rbac.New(registry),
		gate,
		dispatcher,
		recorder,
		cfg.MaxPayloadBytes,
		pipeline.WithLogger(log),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:           log,
		Authenticator:    authService,
		RateLimit:        ratelimitmw.New(limiter, log),
		Events:           pipelinehandler.New(pipe, int64(cfg.MaxPayloadBytes)*2, log),
		Skills:           skillshandler.New(registry, catalog, log),
		Downstream:       downstream,
		Registry:         registry,
		Audit:            recorder,
		BootstrapKeyHash: cfg.BootstrapAdminKeyHash,
		AllowedHosts:     cfg.AllowedHosts,
		CORSOrigins:      cfg.CORSOrigins,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting conductor", "addr", cfg.Addr, "skills", registry.Len())
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func buildAuditStore(cfg config.Config, log *slog.Logger) (audit.Store, func(), error) {
	if cfg.AuditPostgresDSN == "" {
		log.Warn("audit postgres not configured, records stay in memory")
		return audit.NewInMemoryStore(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.AuditPostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	store := audit.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
