// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crypto-swap/internal/config"
	"crypto-swap/internal/feed"
	"crypto-swap/internal/handler"
	"crypto-swap/internal/metrics"
	"crypto-swap/internal/middleware"
	"crypto-swap/internal/repository"
	"crypto-swap/internal/service"
	"crypto-swap/pkg/database"
	"crypto-swap/pkg/logger"
	"crypto-swap/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New("crypto-swap", cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize price source
	var source feed.Source
	switch cfg.FeedSource {
	case config.FeedSourcePostgres:
		db, err := database.NewPostgresDB(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		source = repository.NewPriceRepository(db.DB)
	default:
		source = feed.NewHTTPSource(cfg.FeedURL, feed.HTTPOptions{
			Timeout:        cfg.FeedTimeout,
			Retries:        cfg.FeedRetries,
			RequestsPerSec: cfg.FeedRateLimit,
		}, log)
	}

	// Initialize Redis; the service runs without it
	var kv service.KV
	if cfg.RedisURL != "" {
		redisClient := redis.NewRedisClient(cfg.RedisURL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx); err != nil {
			log.Warn("redis unavailable, caching in memory only", zap.String("addr", cfg.RedisURL), zap.Error(err))
			redisClient.Close()
		} else {
			defer redisClient.Close()
			kv = redisClient
		}
		cancel()
	}

	// Initialize services
	cache := service.NewPriceCache(kv, cfg.FeedCacheTTL, log)
	exchangeService := service.NewExchangeService(source, cache, kv, m, service.Options{
		SourceName:     cfg.FeedSource,
		SubmitDelay:    cfg.SubmitDelay,
		IconBaseURL:    cfg.IconBaseURL,
		IdempotencyTTL: cfg.IdempotencyTTL,
		RefreshTimeout: cfg.RefreshTimeout,
	}, log)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := exchangeService.Refresh(ctx, false); err != nil {
			log.Error("initial price load failed", zap.Error(err))
		}
	}()

	// Initialize handlers
	swapHandler := handler.NewSwapHandler(exchangeService, log)
	walletHandler := handler.NewWalletHandler(exchangeService, log)

	router := setupRouter(cfg, swapHandler, walletHandler, m, reg, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting crypto swap service",
			zap.String("port", cfg.Port),
			zap.String("feed_source", cfg.FeedSource))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func setupRouter(cfg *config.Config, swaps *handler.SwapHandler, wallets *handler.WalletHandler, m *metrics.Metrics, reg *prometheus.Registry, log *zap.Logger) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(m))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", swaps.Ready)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimiter(cfg.APIRateLimit, cfg.APIBurst))
	{
		v1.GET("/currencies", swaps.ListCurrencies)
		v1.GET("/rates/:from/:to", swaps.GetRate)
		v1.POST("/quote", swaps.Quote)
		v1.POST("/swaps", swaps.SubmitSwap)

		prices := v1.Group("/prices")
		{
			prices.POST("/refresh", swaps.RefreshPrices)
			prices.GET("/:symbol/history", swaps.GetPriceHistory)
		}

		v1.POST("/wallet/rows", wallets.RankBalances)
	}

	return router
}
