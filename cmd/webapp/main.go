// cmd/webapp serves the RSI backtester: an HTML form, a JSON API and a chart
// endpoint, all backed by daily bars from Yahoo Finance. A Redis bar cache
// and a SQLite bar archive are enabled when REDIS_ADDR / SQLITE_PATH are set.
//
// Usage:
//
//	LISTEN_ADDR=:8080 REDIS_ADDR=localhost:6379 go run ./cmd/webapp
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"rsi-backtest/config"
	"rsi-backtest/internal/api"
	"rsi-backtest/internal/backtest"
	"rsi-backtest/internal/logger"
	"rsi-backtest/internal/marketdata"
	"rsi-backtest/internal/marketdata/yahoo"
	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/model"
	redisstore "rsi-backtest/internal/store/redis"
	sqlitestore "rsi-backtest/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[webapp] .env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[webapp] config: %v", err)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	slogger := logger.Init("webapp", level)
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics ----
	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	// ---- Market data chain: yahoo → sqlite archive → redis cache ----
	var source model.BarSource = marketdata.Instrument(yahoo.New(yahoo.Config{
		BaseURL:       cfg.YahooBaseURL,
		Timeout:       cfg.FetchTimeout,
		AdjustedClose: true,
		Debug:         level == slog.LevelDebug,
	}), "yahoo", m)

	var sqlDB *sql.DB
	if cfg.ArchiveEnabled() {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("[webapp] sqlite dir: %v", err)
			}
		}
		writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[webapp] sqlite init failed: %v", err)
		}
		defer writer.Close()
		sqlDB = writer.DB()
		source = sqlitestore.NewRecorder(source, writer, m)
	}

	var rdb *goredis.Client
	if cfg.CacheEnabled() {
		rdb, err = redisstore.NewClient(ctx, redisstore.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			// The cache is optional; run without it rather than refuse to start.
			log.Printf("[webapp] WARNING: redis unavailable, bar cache disabled: %v", err)
			rdb = nil
		} else {
			defer rdb.Close()
			source = redisstore.NewBarCache(rdb, source, redisstore.CacheConfig{TTL: cfg.CacheTTL}, m)
		}
	}

	// ---- Health ----
	health := metrics.NewHealthStatus(rdb != nil, sqlDB != nil)
	health.StartLivenessChecker(ctx, rdb, sqlDB, 15*time.Second)

	// ---- HTTP ----
	runner := backtest.NewRunner(source, backtest.Options{
		Window:       cfg.RSIWindow,
		MaxYears:     cfg.MaxYears,
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      m,
		Logger:       slogger,
	})

	router, err := api.NewRouter(api.Deps{
		Runner:   runner,
		Metrics:  m,
		Health:   health,
		Logger:   slogger,
		Gatherer: gatherer,
	})
	if err != nil {
		log.Fatalf("[webapp] router: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.FetchTimeout + 30*time.Second,
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slogger.Info("[webapp] serving", "addr", cfg.ListenAddr,
			"rsi_window", cfg.RSIWindow, "cache", rdb != nil, "archive", sqlDB != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[webapp] server error: %v", err)
		}
	}()

	<-sigCh
	slogger.Info("[webapp] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slogger.Error("[webapp] shutdown", "error", err)
	}
}
