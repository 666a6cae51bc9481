package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"MultiDB/internal/config"
	"MultiDB/internal/db"
	"MultiDB/internal/logger"
	"MultiDB/internal/model"
	"MultiDB/internal/router"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := logger.Init("."); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebug(*debugFlag)

	// Named databases
	if err := db.InitDatabases(context.Background(), cfg.Databases); err != nil {
		logger.Error("databases_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer db.CloseDatabases()
	logger.Info("databases_connected", map[string]any{"aliases": db.Aliases()})

	// Redis is optional; query-set stashing degrades without it
	db.InitRedis(cfg.RedisAddr)
	if err := db.PingRedis(); err != nil {
		logger.Warn("redis_unavailable", map[string]any{"error": err.Error()})
	}

	// Model registry
	if err := model.InitRegistry(cfg.ModelsDir); err != nil {
		logger.Error("registry_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("models_initialized", map[string]any{"models": len(model.Registry)})

	// Routes and HTTP server
	router.InitRoutes(cfg.CORS)
	logger.Info("server_start", map[string]any{"port": cfg.Port})
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		logger.Error("server_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
