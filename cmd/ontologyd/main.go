// Command ontologyd is the thin composition root for the ontology
// management platform: it wires the resilience, dlq, lock, hook, and
// validation packages into an HTTP ingress adapter that receives
// commit metadata and a structured diff, and drives the commit hook
// pipeline.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/toolops-ontology/auth"
	"github.com/jonwraymond/toolops-ontology/cache"
	"github.com/jonwraymond/toolops-ontology/dlq"
	"github.com/jonwraymond/toolops-ontology/health"
	"github.com/jonwraymond/toolops-ontology/hook"
	"github.com/jonwraymond/toolops-ontology/lock"
	"github.com/jonwraymond/toolops-ontology/observe"
	"github.com/jonwraymond/toolops-ontology/secret"
	"github.com/jonwraymond/toolops-ontology/validation"
)

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolvedCfg, err := resolveSecrets(ctx, cfg)
	if err != nil {
		log.Fatalf("ontologyd: secret resolution failed: %v", err)
	}
	cfg = resolvedCfg

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "ontologyd",
		Version:     "dev",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "stdout"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	})
	if err != nil {
		log.Fatalf("ontologyd: observer init failed: %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()
	logger := obs.Logger()

	app, err := wire(ctx, cfg, logger, obs)
	if err != nil {
		log.Fatalf("ontologyd: wiring failed: %v", err)
	}

	if err := app.pipeline.Initialize(ctx); err != nil {
		logger.Warn(ctx, "pipeline initialize reported errors", observe.Field{Key: "error", Value: err.Error()})
	}
	app.dlqHandler.Run(ctx)
	app.cleanup.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info(ctx, "ontologyd listening", observe.Field{Key: "addr", Value: cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http server error", observe.Field{Key: "error", Value: err.Error()})
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "ontologyd shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = app.pipeline.Shutdown(shutdownCtx)
	_ = app.dlqHandler.Shutdown(shutdownCtx)
	_ = app.cleanup.Shutdown(shutdownCtx)
}

// application holds every wired component the HTTP layer dispatches
// to. It is built once at startup and passed explicitly to handlers,
// per Design Note "Class-level singleton pipeline": a single
// long-lived value owned by the service root, never a package-level
// global.
type application struct {
	cfg        config
	logger     observe.Logger
	obs        observe.Observer
	authorizer auth.Authorizer
	authn      auth.Authenticator
	pipeline   *hook.Pipeline
	instrument *observe.Middleware
	lockFacade *lock.Facade
	dlqHandler *dlq.Handler
	cleanup    *lock.CleanupService
	healthAgg  *health.Aggregator
}

func wire(ctx context.Context, cfg config, logger observe.Logger, obs observe.Observer) (*application, error) {
	validationCache := cache.NewMemoryCache(cache.Policy{DefaultTTL: 5 * time.Minute, MaxTTL: time.Hour})

	ruleRegistry := validation.NewRuleRegistry()
	validation.RegisterDefaultRules(ruleRegistry)
	var validationSvc validation.Service = validation.NewRegistryService(ruleRegistry)
	validationSvc = validation.NewCachingService(validationSvc, validationCache, 5*time.Minute)

	// Optional backing collaborators. The facade, the DLQ store, and
	// the event bus all remain correct with these left nil: the
	// distributed cache and durable store are best-effort replicas,
	// never the source of truth while the process is alive.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	var pgPool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		pgPool = pool
	}
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn(ctx, "nats connect failed, continuing without a bus", observe.Field{Key: "error", Value: err.Error()})
		} else {
			natsConn = conn
		}
	}

	lockMgr := wireLockManager(cfg, logger, redisClient, pgPool)
	dlqHandler := wireDLQ(cfg, logger, obs, redisClient, natsConn)
	pipeline := wirePipeline(cfg, logger, obs, validationSvc, natsConn, dlqHandler)

	healthAgg := health.NewAggregator()
	healthAgg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	if redisClient != nil {
		healthAgg.Register("redis", health.NewPingChecker("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	if pgPool != nil {
		healthAgg.Register("postgres", health.NewPingChecker("postgres", pgPool.Ping))
	}
	if natsConn != nil {
		healthAgg.Register("nats", health.NewPingChecker("nats", func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats connection lost")
			}
			return nil
		}))
	}

	instrument, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, err
	}

	authorizer := buildAuthorizer()
	authn := buildAuthenticator(cfg)

	return &application{
		cfg:        cfg,
		logger:     logger,
		obs:        obs,
		authorizer: authorizer,
		authn:      authn,
		pipeline:   pipeline,
		instrument: instrument,
		lockFacade: lockMgr.facade,
		dlqHandler: dlqHandler,
		cleanup:    lockMgr.cleanup,
		healthAgg:  healthAgg,
	}, nil
}

func buildAuthorizer() auth.Authorizer {
	// Reads are open. Writes (commit, lock acquire/release, DLQ admin
	// ops) go through the role authorizer; keys registered without
	// roles fall back to the writer role, so the gate is effectively
	// "any authenticated principal" until an operator tightens the
	// role set.
	rbac := auth.NewRBACAuthorizer(auth.RBACConfig{
		Roles: map[string][]string{
			"admin":  {"*:*"},
			"writer": {"commit:write", "lock:write", "dlq:write"},
		},
		DefaultRole: "writer",
	})
	return auth.AuthorizerFunc(func(ctx context.Context, req *auth.AuthzRequest) error {
		if req.Action == "read" {
			return nil
		}
		return rbac.Authorize(ctx, req)
	})
}

func buildAuthenticator(cfg config) auth.Authenticator {
	store := auth.NewMemoryAPIKeyStore()
	return auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{HeaderName: cfg.APIKeyHeader}, store)
}

// resolveSecrets expands ${VAR} references and secretref: URIs in the
// backing-store connection settings before they are used to dial
// Postgres/Redis/NATS, so operators can point these at a vault-backed
// provider without the config loader needing to know about it.
func resolveSecrets(ctx context.Context, cfg config) (config, error) {
	resolver := secret.NewResolver(false)
	if cfg.SecretsDir != "" {
		resolver.Register(secret.NewFileProvider(cfg.SecretsDir))
	}
	for _, field := range []*string{&cfg.PostgresDSN, &cfg.RedisAddr, &cfg.NATSURL, &cfg.AuditBaseURL} {
		if *field == "" {
			continue
		}
		resolved, err := resolver.ResolveValue(ctx, *field)
		if err != nil {
			return cfg, err
		}
		*field = resolved
	}
	return cfg, nil
}
