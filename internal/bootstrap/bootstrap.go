// Package bootstrap assembles the engine from environment configuration. It
// is shared by the server and the command line tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/Harshitk-cp/factgraph/internal/crawler"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/llm"
	"github.com/Harshitk-cp/factgraph/internal/metrics"
	"github.com/Harshitk-cp/factgraph/internal/producer"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"github.com/Harshitk-cp/factgraph/internal/store"
	"github.com/Harshitk-cp/factgraph/internal/store/memstore"
	"github.com/Harshitk-cp/factgraph/internal/store/neo4jstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Engine is the wired set of stores and services.
type Engine struct {
	Config    *config.Corroboration
	Store     domain.GraphStore
	Clients   domain.ClientStore
	Ingest    *service.IngestService
	Inference *service.InferenceService
	Runner    *service.Runner
	Query     *service.QueryService
	ClientSvc *service.ClientService
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry

	closers []func()
}

// Open reads the corroboration file, connects the configured backend and
// builds every service on top of it.
func Open(ctx context.Context, logger *zap.Logger) (*Engine, error) {
	cfg, err := config.LoadCorroboration(config.CorroborationConfigPath())
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	e := &Engine{Config: cfg, Metrics: m, Registry: reg}
	if err := e.openStore(ctx, logger); err != nil {
		e.Close()
		return nil, err
	}

	registry, err := newProducers(cfg, m, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Ingest = service.NewIngestService(e.Store, cfg, m, logger)
	e.Ingest.SetMaxRetries(config.IngestMaxRetries())
	e.Inference = service.NewInferenceService(e.Store, cfg.InferenceRules, m, logger)
	e.Runner = service.NewRunner(cfg, registry, e.Ingest, e.Inference, logger)
	e.Runner.SetWorkers(config.ProduceWorkers(), config.IngestWorkers())
	e.Query = service.NewQueryService(e.Store)
	e.ClientSvc = service.NewClientService(e.Clients, cfg)
	return e, nil
}

func (e *Engine) openStore(ctx context.Context, logger *zap.Logger) error {
	switch backend := config.StoreBackend(); backend {
	case config.BackendPostgres:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		e.closers = append(e.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := store.Migrate(ctx, pool, config.MigrationsPath(), logger); err != nil {
			return err
		}
		e.Store = store.NewGraphStore(pool)
		e.Clients = store.NewClientStore(pool)
		logger.Info("connected to postgres")

	case config.BackendNeo4j:
		ns, err := neo4jstore.Open(ctx, neo4jstore.Config{
			URI:      config.Neo4jURI(),
			User:     config.Neo4jUser(),
			Password: config.Neo4jPassword(),
			Database: config.Neo4jDatabase(),
		}, logger)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, func() { _ = ns.Close(context.Background()) })
		e.Store = ns
		e.Clients = ns
		logger.Info("connected to neo4j", zap.String("uri", config.Neo4jURI()))

	case config.BackendMemory:
		ms := memstore.New()
		e.Store = ms
		e.Clients = ms
		logger.Warn("using in-memory store; state is lost on exit")

	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (valid options: postgres, neo4j, memory)", backend)
	}
	return nil
}

func newProducers(cfg *config.Corroboration, m *metrics.Metrics, logger *zap.Logger) (*producer.Registry, error) {
	registry := producer.NewRegistry()
	registry.Register(config.SourceFile, producer.NewFileProducer(cfg, logger))

	provider := config.LLMProvider()
	client, err := llm.NewClient(provider, config.LLMAPIKey(), llm.Options{
		BaseURL:      config.OpenAIBaseURL(),
		ExtractModel: config.LLMExtractModel(),
		GroundModel:  config.LLMGroundModel(),
	})
	if err != nil {
		if hasWebSources(cfg) {
			return nil, fmt.Errorf("web sources need an LLM client: %w", err)
		}
		logger.Warn("LLM client initialization failed", zap.String("provider", provider), zap.Error(err))
		return registry, nil
	}
	logger.Info("LLM client initialized", zap.String("provider", provider))

	fetcher := crawler.NewFetcher(crawler.Options{
		Timeout:   config.FetchTimeout(),
		UserAgent: config.FetchUserAgent(),
		MaxBytes:  config.FetchMaxBytes(),
		RPS:       config.FetchRPS(),
	}, m, logger)
	registry.Register(config.SourceWeb, producer.NewWebProducer(fetcher, client, client, cfg, logger))
	return registry, nil
}

func hasWebSources(cfg *config.Corroboration) bool {
	for _, s := range cfg.Sources {
		if s.Kind == config.SourceWeb {
			return true
		}
	}
	return false
}

// Close releases the backend connections.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
