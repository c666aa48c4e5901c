package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"motorpool/paddock/internal/api"
	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/db"
	"motorpool/paddock/internal/logging"
	"motorpool/paddock/internal/metrics"
	"motorpool/paddock/internal/routes"
	"motorpool/paddock/internal/scheduler"
	"motorpool/paddock/internal/telemetry"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}
	if err := logging.Init(appEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Paddock starting up",
		"environment", appEnv,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	// Load layered configuration; the data dir can move via env before the
	// config file is even found.
	dataDir := os.Getenv("PADDOCK_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := config.NewStore(config.FindConfigFile(dataDir))
	if err != nil {
		logging.Error("Failed to load configuration", "error", err.Error())
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := store.Snapshot()

	// Connect to the database with GORM (write path, runs the migration)
	if _, err := db.InitORM(cfg); err != nil {
		logging.Error("Failed to connect database (GORM)", "error", err.Error())
		log.Fatalf("Failed to connect database (GORM): %v", err)
	}

	// Connect with sqlx (read path)
	if _, err := db.InitSqlx(cfg); err != nil {
		logging.Error("Failed to connect database (sqlx)", "error", err.Error())
		log.Fatalf("Failed to connect database (sqlx): %v", err)
	}

	metricsReg := metrics.NewMetricsRegistry()

	factory := telemetry.NewBridgeFactory(cfg.Upstream.BaseURL)
	deps, err := api.InitDependencies(store, factory, metricsReg)
	if err != nil {
		logging.Error("Failed to initialize dependencies", "error", err.Error())
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Services.Cache.Close()
	defer deps.Services.Publisher.Close()

	upSince := time.Now()
	router := routes.RegisterRoutes(deps, upSince)

	// Background fetch scheduling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.New(deps.Services.Fetcher, store).Start(ctx)

	// Metrics endpoint lives outside the chi router
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logging.Info("Server starting", "addr", addr, "environment", appEnv)
	log.Fatal(http.ListenAndServe(addr, mux))
}
