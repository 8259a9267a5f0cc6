package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/repository"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/cache"
	"github.com/noah-isme/sma-grading-api/pkg/config"
	"github.com/noah-isme/sma-grading-api/pkg/database"
)

// App holds the connections and services shared by the API server and gradingctl.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client
	Cache *repository.CacheRepository

	Metrics    *service.MetricsService
	Grading    *service.GradingService
	Exports    *service.ExportService
	Precompute *service.PrecomputeService
}

// New connects to Postgres (and Redis when enabled) and wires the services.
// The precompute workers are not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	engine, err := service.NewEngine(cfg.Grading)
	if err != nil {
		return nil, fmt.Errorf("grading config: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// rankings still work uncached
		logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		client = nil
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(client, logger)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Grading.CacheTTL, logger, cfg.Grading.CacheEnabled && client != nil)

	grading := service.NewGradingService(service.GradingRepositories{
		Rules:    repository.NewGradingRuleRepository(db),
		Subjects: repository.NewSubjectConfigRepository(db),
		Exams:    repository.NewExamConfigRepository(db),
		Results:  repository.NewResultRepository(db),
		Cohorts:  repository.NewCohortRepository(db),
	}, engine, cfg.Grading.RankBy, cacheSvc, metrics, nil, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Redis:   client,
		Cache:   cacheRepo,
		Metrics: metrics,
		Grading: grading,
		Exports: service.NewExportService(grading, nil, nil, logger),
		Precompute: service.NewPrecomputeService(grading, service.PrecomputeConfig{
			Workers: cfg.Grading.PrecomputeWorkers,
			Retries: cfg.Grading.PrecomputeRetries,
		}, metrics, logger),
	}, nil
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	if err := a.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close postgres: %w", err))
	}
	return errors.Join(errs...)
}
