package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/cmsconsultores/cmsweb/internal/authz"
	"github.com/cmsconsultores/cmsweb/internal/config"
	"github.com/cmsconsultores/cmsweb/internal/contacts"
	"github.com/cmsconsultores/cmsweb/internal/server"
	"github.com/cmsconsultores/cmsweb/internal/storage"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Log)
	log := logger.Get()
	log.Info("Starting cmsweb contact service...", "storage", cfg.Storage.Driver, "ledger", cfg.Ledger.Key)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Open blob store
	blobs, err := storage.Open(ctx, cfg.Storage, cfg.DB)
	if err != nil {
		log.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer blobs.Close()

	store, err := contacts.NewStore(blobs, cfg.Ledger, log)
	if err != nil {
		log.Error("Failed to initialize contact store", "error", err)
		os.Exit(1)
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		log.Error("Failed to initialize authorization", "error", err)
		os.Exit(1)
	}

	// 4. Serve
	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Blobs:    blobs,
		Contacts: store,
		Enforcer: enforcer,
		Log:      log,
	})
	if err := server.Run(ctx, cfg.Server.Port, router, log); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
