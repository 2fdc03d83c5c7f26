package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/toolops-ontology/cache"
	"github.com/jonwraymond/toolops-ontology/dlq"
	"github.com/jonwraymond/toolops-ontology/hook"
	"github.com/jonwraymond/toolops-ontology/lock"
	"github.com/jonwraymond/toolops-ontology/observe"
	"github.com/jonwraymond/toolops-ontology/validation"
)

// lockManager bundles the Facade with the CleanupService whose
// Run/Shutdown lifecycle the composition root owns directly.
type lockManager struct {
	facade  *lock.Facade
	cleanup *lock.CleanupService
}

// wireLockManager composes the registry, state manager, heartbeat
// service, and cleanup sweeper into one Facade, using the optional
// Redis replica / Postgres durable store when configured and
// remaining correct on the in-memory registry and state map otherwise.
func wireLockManager(cfg config, logger observe.Logger, redisClient *redis.Client, pgPool *pgxpool.Pool) *lockManager {
	var replica lock.Replica
	if redisClient != nil {
		replica = lock.NewRedisReplica(redisClient, "")
	}
	registry := lock.NewRegistry(replica, logger)

	var durable lock.DurableStore
	if pgPool != nil {
		durable = lock.NewPostgresStore(pgPool)
	}
	stateCache := cache.NewMemoryCache(cache.Policy{DefaultTTL: 3600 * time.Second, MaxTTL: 3600 * time.Second})
	states := lock.NewStateManager(stateCache, durable, logger)

	heartbeats := lock.NewHeartbeatService(lock.HeartbeatServiceConfig{
		Registry:        registry,
		Logger:          logger,
		GraceMultiplier: cfg.HeartbeatGrace,
	})

	facade := lock.NewFacade(lock.FacadeConfig{
		Registry:   registry,
		States:     states,
		Heartbeats: heartbeats,
		Logger:     logger,
	})

	cleanup := lock.NewCleanupService(lock.CleanupServiceConfig{
		Registry:        registry,
		Heartbeats:      heartbeats,
		Releaser:        facade,
		Logger:          logger,
		CleanupInterval: cfg.cleanupInterval(),
		BatchSize:       cfg.CleanupBatchSize,
	})

	return &lockManager{facade: facade, cleanup: cleanup}
}

// wireDLQ builds a Store (Redis-backed when configured, in-memory
// otherwise) plus a Handler with the cfg.DLQName queue registered. No
// hook sink enqueues to it: wirePipeline takes the handler but does not
// pass it on.
func wireDLQ(cfg config, logger observe.Logger, obs observe.Observer, redisClient *redis.Client, natsConn *nats.Conn) *dlq.Handler {
	var store dlq.Store
	if redisClient != nil {
		store = dlq.NewRedisStore(dlq.RedisStoreConfig{Client: redisClient})
	} else {
		store = dlq.NewMemoryStore()
	}

	var bus dlq.EventBus
	if natsConn != nil {
		bus = dlq.NewNATSEventBus(natsConn)
	}

	handler := dlq.NewHandler(dlq.HandlerConfig{
		Store:             store,
		Bus:               bus,
		Logger:            logger,
		Observer:          obs,
		DefaultMaxRetries: cfg.DLQMaxRetries,
	})

	handler.RegisterQueue(cfg.DLQName, dlq.QueueConfig{
		MaxRetries:   cfg.DLQMaxRetries,
		BatchSize:    cfg.DLQBatchSize,
		PollInterval: 5 * time.Second,
		Handler: func(_ context.Context, _ map[string]any) error {
			// No redelivery target is registered for this queue: the
			// handler accepts every payload, so a message sent here
			// succeeds on its first retry and leaves the live index.
			return nil
		},
	})

	return handler
}

// wirePipeline builds the commit hook pipeline with its default
// validator and sink set, initialized lazily and idempotently on
// first use.
func wirePipeline(cfg config, logger observe.Logger, obs observe.Observer, validationSvc validation.Service, natsConn *nats.Conn, dlqHandler *dlq.Handler) *hook.Pipeline {
	var auditSubmitter hook.AuditSubmitter
	if cfg.AuditBaseURL != "" {
		auditSubmitter = hook.NewHTTPAuditSubmitter(cfg.AuditBaseURL, 5*time.Second)
	}
	auditSink := hook.NewAuditSink(auditSubmitter, logger)

	metricsSink, err := hook.NewMetricsSink(obs)
	if err != nil {
		logger.Warn(context.Background(), "metrics sink init failed", observe.Field{Key: "error", Value: err.Error()})
	}

	natsSink := hook.NewNATSSink(natsConn, "terminus.commit")

	webhookSink := hook.NewWebhookSink(hook.WebhookSinkConfig{Logger: logger})

	sinks := []hook.Sink{natsSink, auditSink, webhookSink}
	if metricsSink != nil {
		sinks = append(sinks, metricsSink)
	}

	validators := []hook.Validator{
		hook.NewTamperValidator(cfg.StrictSecurity, logger, auditSink),
		hook.NewSchemaValidator(defaultSchemas(), validationSvc, logger),
		hook.NewPIIValidator(),
		hook.NewRuleValidator(validationSvc, cfg.StrictValidation, logger, auditSink),
	}

	mode := hook.ValidationSync
	if cfg.ValidationAsync {
		mode = hook.ValidationAsync
	}

	return hook.NewPipeline(hook.PipelineConfig{
		Validators:  validators,
		Sinks:       sinks,
		Logger:      logger,
		Observer:    obs,
		Mode:        mode,
		MaxDiffSize: cfg.maxDiffSizeBytes(),
	})
}

// defaultSchemas returns the built-in per-@type schema definitions
// checked by SchemaValidator.
func defaultSchemas() map[string]hook.SchemaDefinition {
	return map[string]hook.SchemaDefinition{
		"ObjectType": {
			Required: []string{"name"},
			Properties: map[string]hook.FieldSchema{
				"name": {Type: "string", MinLength: 1, MaxLength: 128},
			},
		},
		"Branch": {
			Required: []string{"name"},
			Properties: map[string]hook.FieldSchema{
				"name": {Type: "string", MinLength: 1, MaxLength: 128},
			},
		},
	}
}
