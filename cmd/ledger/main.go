package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/kestrelbank/ledger-service/internal/command"
	"github.com/kestrelbank/ledger-service/internal/config"
	"github.com/kestrelbank/ledger-service/internal/domain"
	"github.com/kestrelbank/ledger-service/internal/events"
	"github.com/kestrelbank/ledger-service/internal/eventstore"
	"github.com/kestrelbank/ledger-service/internal/handler"
	"github.com/kestrelbank/ledger-service/internal/metrics"
	"github.com/kestrelbank/ledger-service/internal/middleware"
	redisplatform "github.com/kestrelbank/ledger-service/internal/platform/redis"
	"github.com/kestrelbank/ledger-service/internal/query"
	"github.com/kestrelbank/ledger-service/internal/repository/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Write store
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Event transport, event store, view cache
	redisClient, err := redisplatform.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	m := metrics.New()
	repo := postgres.NewAccountRepository(db)
	store := eventstore.NewStore(redisClient.Client, logger)
	views := redisplatform.NewViewCache[query.AccountView](redisClient.Client, cfg.ViewCacheTTL, logger)

	publisher := events.NewPublisher(redisClient.Client, events.PublisherConfig{
		Stream:           cfg.EventStream,
		MaxAttempts:      cfg.PublishAttempts,
		BaseDelay:        cfg.PublishBaseDelay,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	}, logger)

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Register(store.HandleEvent)
	dispatcher.Register(func(ctx context.Context, event domain.Event) error {
		if err := publisher.HandleEvent(ctx, event); err != nil {
			m.EventFailed(event.Subject)
			return err
		}
		m.EventPublished(event.Subject)
		return nil
	})

	commandSvc := command.NewAccountCommandService(repo, domain.NewRemittanceService(), dispatcher, m, logger)
	querySvc := query.NewAccountQueryService(repo, views, store)
	accountHandler := handler.NewAccountHandler(commandSvc, querySvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := router.Group("/v1", middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		v1.POST("/accounts", accountHandler.OpenAccount)
		v1.GET("/accounts", accountHandler.ListAccounts)
		v1.GET("/accounts/:accountId", accountHandler.GetAccount)
		v1.GET("/accounts/:accountId/events", accountHandler.ListAccountEvents)
		v1.POST("/accounts/:accountId/deposits", accountHandler.Deposit)
		v1.POST("/accounts/:accountId/withdrawals", accountHandler.Withdraw)
		v1.PUT("/accounts/:accountId/password", accountHandler.UpdatePassword)
		v1.DELETE("/accounts/:accountId", accountHandler.CloseAccount)
		v1.POST("/remittances", accountHandler.Remit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		projector := query.NewProjector(redisClient.Client, store, views, repo, query.ProjectorConfig{
			Group:    cfg.ConsumerGroup,
			Consumer: cfg.ConsumerName,
			Stream:   cfg.EventStream,
		}, logger)
		if err := projector.Start(ctx); err != nil {
			logger.Info("projector stopped", "error", err)
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("ledger service starting", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
