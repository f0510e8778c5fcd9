package main

import (
	"log"
	"os"

	"storefront/internal/accounts"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/console"
	"storefront/internal/database"
	"storefront/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("STOREFRONT_CONFIG"))
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger.Initialize(logger.ParseLevel(cfg.App.LogLevel), cfg.IsDevelopment(), cfg.App.LogFile)

	var backend accounts.Backend
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := database.Initialize(cfg.Store.DatabasePath)
		if err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		backend = database.NewBackend(db)
	default:
		backend = accounts.NewFileBackend(cfg.Store.DataPath)
	}

	store := accounts.NewStore(backend,
		accounts.WithBcryptCost(cfg.Auth.BcryptCost),
		accounts.WithDefaultAdmin(accounts.AdminSeed{
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
			Email:    cfg.Admin.Email,
		}),
	)
	if err := store.Load(); err != nil {
		log.Fatal("Failed to load accounts:", err)
	}
	if store.Degraded() {
		logger.Warn("Could not read user data, running with a fresh default admin account")
	}

	engine := cart.NewEngine(catalog.Default(), store, cart.WithLoginLimit(cfg.Auth.LoginAttemptsPerMinute))

	logger.Info("Storefront starting", "backend", cfg.Store.Backend)
	if err := console.New(engine, os.Stdout).Run(os.Stdin); err != nil {
		logger.Error("Console stopped", "error", err)
		os.Exit(1)
	}
}
