package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis"
	_ "github.com/lib/pq"

	"copytrader/internal/api"
	"copytrader/internal/circuitbreaker"
	"copytrader/internal/config"
	"copytrader/internal/eventbus"
	"copytrader/internal/executor"
	"copytrader/internal/jobs"
	"copytrader/internal/proxypool"
	"copytrader/internal/queue"
	"copytrader/internal/ratelimit"
	"copytrader/internal/repository"
	"copytrader/internal/scheduler"
	"copytrader/internal/websocket"
	"copytrader/pkg/retry"
	"copytrader/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Development: cfg.Logging.Development,
	})

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping().Err(); err != nil {
		logger.Fatal("failed to connect to redis", utils.Err(err))
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	// Репозитории
	whaleRepo := repository.NewWhaleRepository(db)
	followRepo := repository.NewWhaleFollowRepository(db)
	signalRepo := repository.NewSignalRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	accountRepo := repository.NewUserExchangeAccountRepository(db, cfg.Security.EncryptionKey)
	proxyRepo := repository.NewProxyRepository(db)
	tradeRecovery := repository.NewTradeRecoveryAdapter(tradeRepo)
	proxySupplier := repository.NewProxySupplier(proxyRepo)

	// ProxyPool (C1)
	proxies := proxypool.New(cfg.Security.EncryptionKey)
	if active, err := proxyRepo.ListActive(); err != nil {
		logger.Error("failed to load initial proxy set", utils.Err(err))
	} else {
		for _, p := range active {
			if err := proxies.Admit(p, p.Username, p.Password); err != nil {
				logger.Warn("failed to admit proxy", utils.Int("proxy_id", p.ID), utils.Err(err))
			}
		}
	}

	// RateLimitGovernor (C2)
	limits := make(map[string]ratelimit.ExchangeLimit, len(cfg.RateLimit.Exchanges))
	for name, l := range cfg.RateLimit.Exchanges {
		limits[name] = ratelimit.ExchangeLimit{RequestsPerMinute: l.RequestsPerMinute, Burst: l.Burst}
	}
	governor := ratelimit.New(limits)

	// CircuitBreaker (C4)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold:         cfg.Circuit.FailureThreshold,
		OpenTimeout:              cfg.Circuit.TimeoutSeconds,
		HalfOpenSuccessThreshold: cfg.Circuit.SuccessThreshold,
	})

	// EventBus + WebSocket bridge (presentation layer, outside the trading core)
	bus := eventbus.New(256)
	go bus.Run()
	publisher := eventbus.NewTradePublisher(bus)
	hub := websocket.NewHub()
	go hub.Run()
	eventbus.NewWSBridge(bus, hub)

	// PollingScheduler (C6): Fetcher composes ProxyPool+Governor+Breakers+ExchangePort (C1-C4)
	fetcher := scheduler.NewFetcher(breakers, proxies, governor)
	signalQueue := queue.New(redisClient)
	dispatcher := queue.NewDispatcher(signalRepo, followRepo, whaleRepo, signalQueue, cfg.Sizing.MinTradingBalanceUSDT)
	sched := scheduler.New(
		scheduler.Config{TickInterval: cfg.Scheduler.WhaleMonitorInterval, MaxConcurrency: cfg.Scheduler.MaxInflightPerExchange},
		fetcher, whaleRepo, dispatcher,
	)

	// CopyTradeExecutor (C9) + orchestrator draining the SignalQueue (C8)
	exec := executor.New(tradeRepo, publisher, retry.Config{
		MaxRetries:   cfg.Sizing.ExchangeMaxRetries,
		InitialDelay: cfg.Sizing.ExchangeRetryBase,
		MaxDelay:     cfg.Sizing.ExchangeRetryMax,
	})
	ports := executor.NewPortFactory(breakers)
	orchestrator := executor.NewOrchestrator(
		signalQueue, followRepo, whaleRepo, signalRepo, accountRepo, positionRepo,
		ports, exec, publisher,
		executor.SizingConfig{
			MinTradeSizeUSDT:   cfg.Sizing.MinTradeSizeUSDT,
			TradeSizeBufferPct: cfg.Sizing.TradeSizeBufferPct,
			MaxOpenPositions:   cfg.Sizing.MaxOpenPositions,
			DailyLossLimitUSDT: cfg.Sizing.DailyLossLimitUSDT,
			MinNotional:        cfg.Sizing.MinNotional,
		},
		cfg.Queue.MaxSignalsPerBatch,
	)

	// Background jobs: recovery for stuck signals, ambiguous trades, proxy health
	janitor := jobs.NewJanitor(signalRepo, cfg.Scheduler.JanitorInterval, cfg.Scheduler.SignalExpiry)
	reconciler := jobs.NewReconciler(tradeRecovery, ports, cfg.Scheduler.JanitorInterval)
	proxyRefresher := jobs.NewProxyRefresher(proxies, proxySupplier, cfg.ProxyPool.RefreshInterval)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)
	go janitor.Run(ctx)
	go reconciler.Run(ctx)
	go proxyRefresher.Run(ctx)
	go drainLoop(ctx, orchestrator, followRepo, logger)

	deps := &api.Dependencies{
		Whales:    whaleRepo,
		Follows:   followRepo,
		Positions: positionRepo,
		Hub:       hub,
		APIToken:  cfg.Security.APIToken,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", utils.Component(server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	hub.Stop()
	bus.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", utils.Err(err))
	}

	logger.Info("server exited")
}

// drainLoop periodically sweeps every follower's user ID through the
// orchestrator, per the fairness/risk model per-user fairness model: each tick
// gives every user with at least one active follow a chance to drain
// their queued signals, bounded by Orchestrator's own MaxSignalsPerBatch.
func drainLoop(ctx context.Context, orch *executor.Orchestrator, follows *repository.WhaleFollowRepository, logger *utils.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			userIDs, err := follows.ActiveUserIDs()
			if err != nil {
				logger.Error("drain loop: list active users", utils.Err(err))
				continue
			}
			for _, userID := range userIDs {
				if _, err := orch.DrainUser(ctx, userID); err != nil {
					logger.Error("drain loop: drain user", utils.Int("user_id", userID), utils.Err(err))
				}
			}
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
