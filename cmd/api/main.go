package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-resolver/internal/agent"
	httptransport "github.com/spec-kit/support-resolver/internal/api/http"
	"github.com/spec-kit/support-resolver/internal/api/http/handlers"
	"github.com/spec-kit/support-resolver/internal/auth"
	"github.com/spec-kit/support-resolver/internal/config"
	"github.com/spec-kit/support-resolver/internal/events"
	"github.com/spec-kit/support-resolver/internal/llm"
	"github.com/spec-kit/support-resolver/internal/observability"
	"github.com/spec-kit/support-resolver/internal/persistence"
	"github.com/spec-kit/support-resolver/internal/repository"
	"github.com/spec-kit/support-resolver/internal/service"
	"github.com/spec-kit/support-resolver/internal/similarity"
	"github.com/spec-kit/support-resolver/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	chatClient := llm.NewGeminiClient(cfg.LLM, logger)
	embedder, err := llm.NewGenAIEmbedder(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to init embedding client", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	resolutionService := service.NewResolutionService(cfg.Resolution, service.ResolutionDependencies{
		TicketRepo:   ticketRepo,
		Classifier:   agent.NewClassifier(chatClient, logger),
		Resolver:     agent.NewResolver(chatClient, logger),
		IndexBuilder: similarity.NewBuilder(embedder, logger),
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	ticketService := service.NewTicketService(ticketRepo)
	authService := service.NewAuthService(*cfg, userRepo)
	notificationService := service.NewNotificationService(dispatcher, redis, logger, cfg.Redis)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Support:        handlers.NewSupportHandler(resolutionService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
