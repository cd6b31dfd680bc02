package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/seantiz/prospect/internal/api"
	"github.com/seantiz/prospect/internal/config"
	"github.com/seantiz/prospect/internal/engine"
	"github.com/seantiz/prospect/internal/handler"
	"github.com/seantiz/prospect/internal/store"
)

const engineShutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("prospect: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"max_workers", cfg.MaxWorkers,
		"max_concurrent", cfg.MaxConcurrent,
	)

	archive, err := store.NewSQLiteArchive(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open archive database: %v", err)
	}
	defer archive.Close()

	reg := handler.NewRegistry()
	handler.RegisterBuiltins(reg)

	s := store.NewMemoryStore()

	eng := engine.New(s, reg, archive, logger, engine.Config{
		MaxWorkers:       cfg.MaxWorkers,
		MaxConcurrent:    cfg.MaxConcurrent,
		DispatchInterval: cfg.DispatchInterval,
		DefaultTimeout:   cfg.DefaultTimeout,
	})
	eng.Start()

	srv := api.NewServer(cfg.ListenAddr, s, reg, eng, archive, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), engineShutdownTimeout)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		logger.Error("engine shutdown", "error", err)
	}
}
