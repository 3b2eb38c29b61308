package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventpass/config"
	"eventpass/native/pass"
	"eventpass/observability/logging"
	"eventpass/rpc"
)

func main() {
	configPath := flag.String("config", "./passd.toml", "path to the deployment configuration")
	inMemory := flag.Bool("inmem", false, "use an in-memory state backend (ephemeral)")
	flag.Parse()

	logger := logging.Setup("passd", os.Getenv("EVENTPASS_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := openDatabase(cfg, *inMemory)
	if err != nil {
		logger.Error("open state database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, pass.NewManager(db), logger)
	if err != nil {
		logger.Error("construct engine", "error", err)
		os.Exit(1)
	}

	limit := rpc.RateLimit{}
	if cfg.RateLimit != nil {
		limit = rpc.RateLimit{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute, Burst: cfg.RateLimit.Burst}
	}
	server := rpc.NewServer(engine, logger, limit)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("rpc listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
