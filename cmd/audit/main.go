// cmd/audit/main.go
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"librarium/internal/audit"
	"librarium/internal/config"
	"librarium/internal/logging"
	"librarium/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := logging.NewWithOutput(os.Stderr, cfg.AppName+"-audit", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, postgres.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	report, err := audit.New(postgres.NewStore(db), nil).Check(ctx)
	if err != nil {
		logger.Fatalf("audit failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatalf("failed to write report: %v", err)
	}

	if !report.Healthy {
		logger.WithField("violations", len(report.Violations)).Error("inventory invariant violated")
		db.Close()
		os.Exit(1)
	}
	logger.WithField("books_checked", report.BooksChecked).Info("inventory consistent")
}
