package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/seed"
	"github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName+"-seed")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pkgdb.Close(db)

	if err := repo.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	res, err := seed.Run(ctx, db)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	logger.Info("seed_completed", "categories", res.Categories, "products", res.Products)
}
