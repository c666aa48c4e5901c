package api

import (
	"fmt"

	"motorpool/paddock/internal/common"
	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/credentials"
	"motorpool/paddock/internal/db"
	"motorpool/paddock/internal/db/repositories"
	"motorpool/paddock/internal/fetcher"
	"motorpool/paddock/internal/geocode"
	"motorpool/paddock/internal/metrics"
	"motorpool/paddock/internal/mqtt"
	"motorpool/paddock/internal/stats"
	"motorpool/paddock/internal/telemetry"
)

// Repositories groups the data-access layer.
type Repositories struct {
	Readings *repositories.ReadingRepository
	Trips    *repositories.TripRepository
}

// Services groups everything the handlers and the scheduler depend on.
type Services struct {
	Cache     common.CacheInterface
	Stats     *stats.Service
	Geocoder  *geocode.Worker
	Creds     *credentials.Manager
	Publisher *mqtt.Publisher
	Fetcher   *fetcher.Fetcher
}

// Dependencies is the dependency container assembled once at startup.
type Dependencies struct {
	Store    *config.Store
	Metrics  *metrics.MetricsRegistry
	Repo     *Repositories
	Services *Services
}

// InitDependencies wires repositories and services against the already
// initialized database connections.
func InitDependencies(store *config.Store, factory telemetry.Factory, metricsReg *metrics.MetricsRegistry) (*Dependencies, error) {
	cfg := store.Snapshot()

	repos := &Repositories{
		Readings: repositories.NewReadingRepository(db.ORM),
		Trips:    repositories.NewTripRepository(db.ORM),
	}

	var cacheSvc common.CacheInterface
	if cfg.Geocoding.CacheBackend == "redis" {
		redisCache, err := common.NewRedisCacheService()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		cacheSvc = redisCache
	} else {
		cacheSvc = common.NewCacheService(cfg.Geocoding.CacheTTLSeconds, 600)
	}

	statsSvc := stats.NewService(db.DB)
	credsMgr := credentials.NewManager(store)
	geocoder := geocode.NewWorker(
		repos.Trips,
		geocode.NewNominatimClient(cfg.Geocoding),
		cacheSvc,
		store,
		metricsReg,
	)

	// The publisher checks the enabled flag on every publish, so toggling
	// MQTT in the config never requires rewiring.
	publisher := mqtt.NewPublisher(store, metricsReg)

	fetchSvc := fetcher.New(
		factory,
		store,
		credsMgr,
		repos.Readings,
		repos.Trips,
		statsSvc,
		geocoder,
		fetcher.NewCacheFile(cfg.CacheFilePath()),
		publisher,
		metricsReg,
	)

	return &Dependencies{
		Store:   store,
		Metrics: metricsReg,
		Repo:    repos,
		Services: &Services{
			Cache:     cacheSvc,
			Stats:     statsSvc,
			Geocoder:  geocoder,
			Creds:     credsMgr,
			Publisher: publisher,
			Fetcher:   fetchSvc,
		},
	}, nil
}
