package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/handler"
	"github.com/noah-isme/survey-review-api/internal/repository"
	"github.com/noah-isme/survey-review-api/internal/router"
	"github.com/noah-isme/survey-review-api/internal/service"
	"github.com/noah-isme/survey-review-api/pkg/cache"
	"github.com/noah-isme/survey-review-api/pkg/config"
	"github.com/noah-isme/survey-review-api/pkg/database"
	"github.com/noah-isme/survey-review-api/pkg/jobs"
	"github.com/noah-isme/survey-review-api/pkg/render"
	"github.com/noah-isme/survey-review-api/pkg/storage"
)

const notificationQueue = "notifications"

// Container holds the wired dependencies shared by the API server and the
// admin CLI.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client

	Metrics       *service.MetricsService
	Tokens        *service.TokenService
	Surveys       *service.SurveyService
	Submissions   *service.SubmissionService
	Evidence      *service.EvidenceService
	Feedback      *service.FeedbackService
	Reports       *service.ReportService
	Exports       *service.ExportService
	Notifications *service.NotificationService

	users *repository.UserRepository

	asynqClient *asynq.Client
	asynqServer *asynq.Server
	queue       *jobs.Queue
	closers     []func() error
}

// Build connects to postgres (and redis when enabled) and wires every
// service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.DB = db
	c.closers = append(c.closers, db.Close)

	surveys := repository.NewSurveyRepository(db)
	responses := repository.NewResponseRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	feedback := repository.NewFeedbackRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	c.users = repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	var dispatcher service.Dispatcher
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Redis = client
		cacheRepo = repository.NewCacheRepository(client, logger)
		c.closers = append(c.closers, client.Close)

		c.asynqClient = asynq.NewClient(cache.AsynqOpt(cfg.Redis))
		c.closers = append(c.closers, c.asynqClient.Close)
		dispatcher = service.NewAsynqDispatcher(c.asynqClient, cfg.Notifications.MaxRetries)
	} else {
		cacheRepo = repository.NewMemoryCacheRepository()
		c.queue = jobs.NewQueue(notificationQueue, service.DueDateJobHandler(logger), jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			Logger:     logger,
		})
		dispatcher = service.NewQueueDispatcher(c.queue)
	}

	validate := validator.New()
	reportCache := service.NewReportCache(cacheRepo, c.Metrics, cfg.Reports.CacheTTL, logger, cfg.Reports.CacheEnabled)
	signer := storage.NewSignedURLSigner(cfg.Reports.ShareSecret, cfg.Reports.ShareTTL)

	c.Tokens = service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	c.Surveys = service.NewSurveyService(surveys, responses, c.users, validate, logger)
	c.Submissions = service.NewSubmissionService(surveys, c.users, submissions, c.Metrics, logger)
	c.Evidence = service.NewEvidenceService(nil, cfg.Evidence.CheckTimeout, c.Metrics, logger)
	c.Feedback = service.NewFeedbackService(feedback, surveys, validate, logger)
	c.Reports = service.NewReportService(surveys, responses, c.users, feedback, render.New(cfg.Reports), reportCache, signer, c.Metrics, logger, service.ReportServiceConfig{
		CacheTTL:      cfg.Reports.CacheTTL,
		RenderTimeout: cfg.Reports.RenderTimeout,
	})
	c.Exports = service.NewExportService(surveys, responses, c.users, logger)
	c.Notifications = service.NewNotificationService(assignments, dispatcher, cfg.Notifications.DueSoonWindow, c.Metrics, logger)

	return c, nil
}

// Router mounts the HTTP API.
func (c *Container) Router() http.Handler {
	return router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(c.users),
		Surveys:  handler.NewSurveyHandler(c.Surveys, c.Submissions),
		Evidence: handler.NewEvidenceHandler(c.Evidence),
		Feedback: handler.NewFeedbackHandler(c.Feedback),
		Reports:  handler.NewReportHandler(c.Reports),
		Exports:  handler.NewExportHandler(c.Exports),
		Metrics:  handler.NewMetricsHandler(c.Metrics),
	}, router.Options{
		APIPrefix:      c.Config.APIPrefix,
		AllowedOrigins: c.Config.CORS.AllowedOrigins,
		Tokens:         c.Tokens,
		Audit:          c.users,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
	})
}

// StartWorkers begins consuming due-date events: an asynq server when redis
// is enabled, the in-memory queue otherwise.
func (c *Container) StartWorkers(ctx context.Context) error {
	if c.queue != nil {
		c.queue.Start(ctx)
		return nil
	}
	c.asynqServer = asynq.NewServer(cache.AsynqOpt(c.Config.Redis), asynq.Config{
		Concurrency: max(c.Config.Notifications.Workers, 1),
		Queues:      map[string]int{"default": 1},
	})
	mux := asynq.NewServeMux()
	mux.Handle(service.TypeDueDateEvent, service.HandleDueDateTask(c.Logger))
	if err := c.asynqServer.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	return nil
}

// Close stops workers and releases connections in reverse order.
func (c *Container) Close() error {
	if c.asynqServer != nil {
		c.asynqServer.Shutdown()
	}
	if c.queue != nil {
		c.queue.Stop()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
