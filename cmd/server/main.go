package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evanmtz/streampost/internal/accounts"
	"github.com/evanmtz/streampost/internal/api"
	"github.com/evanmtz/streampost/internal/automation"
	"github.com/evanmtz/streampost/internal/config"
	"github.com/evanmtz/streampost/internal/login"
	"github.com/evanmtz/streampost/internal/pool"
	"github.com/evanmtz/streampost/internal/storage"
)

// Function to initialize the logger
func setupLogger() *slog.Logger {
	var handler slog.Handler

	if os.Getenv("ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: false,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// Format timestamp to be more readable
				if a.Key == slog.TimeKey {
					t := a.Value.Time()
					return slog.String("time", t.Format(time.DateTime))
				}
				return a
			},
		})
	}

	return slog.New(handler)
}

func main() {
	logger := setupLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("streampost server starting",
		"server_port", cfg.ServerPort,
		"max_browsers", cfg.MaxBrowsers,
		"chromium", cfg.ChromiumPath)

	// Redis is optional: without it the service runs, but terminal
	// login sessions stop being pollable after garbage collection
	var loginRepo *storage.LoginRepository
	redisClient, err := storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("redis unavailable, login snapshots disabled", "error", err)
	} else {
		defer redisClient.Close()
		loginRepo = storage.NewLoginRepository(redisClient, cfg.SnapshotTTL)
		slog.Info("redis connected", "addr", cfg.RedisAddr)
	}

	db, err := storage.NewDatabase(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	processPool, err := pool.NewProcessPool(cfg.ChromiumPath, cfg.MaxBrowsers)
	if err != nil {
		slog.Error("failed to start browser pool", "error", err)
		os.Exit(1)
	}
	defer processPool.Shutdown()

	loadBalancer := pool.NewLoadBalancer(processPool)
	worker := automation.NewCDPWorker(loadBalancer, cfg.CookiePollInterval)

	store := login.NewStore(loginRepo, cfg.LoginWindow, cfg.GCGrace)
	defer store.Close()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	store.StartSweeper(sweepCtx, cfg.SweepInterval)

	broker := login.NewBroker(store, worker)
	ledger := accounts.NewLedger(db.AccountRepo)

	server := api.NewServer(cfg.ServerPort, broker, store, ledger, db.AccountRepo, loadBalancer)

	// Run the server off the main goroutine so signals interrupt it
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("service ready", "status", "awaiting shutdown signal")

	select {
	case sig := <-quit:
		slog.Info("shutdown initiated", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
