package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"motorpool/paddock/internal/common"
	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/constants"
	"motorpool/paddock/internal/db/repositories"
	"motorpool/paddock/internal/logging"
	"motorpool/paddock/internal/metrics"
)

// Worker resolves trip endpoint addresses in the background. Jobs run one at
// a time behind a weighted semaphore, and actual provider calls are spaced
// out by the rate limiter, so concurrent fetch cycles can enqueue freely
// without hammering the upstream geocoder.
type Worker struct {
	trips    *repositories.TripRepository
	geocoder Geocoder
	cache    common.CacheInterface
	store    *config.Store
	metrics  *metrics.MetricsRegistry

	sem     *semaphore.Weighted
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewWorker wires a geocoding worker. The limiter delay comes from the
// config snapshot taken at construction; changing it requires a restart,
// unlike the enabled flag which is re-read per job.
func NewWorker(trips *repositories.TripRepository, geocoder Geocoder, cache common.CacheInterface, store *config.Store, registry *metrics.MetricsRegistry) *Worker {
	delay := time.Duration(store.Snapshot().Geocoding.MinDelayMillis) * time.Millisecond
	return &Worker{
		trips:    trips,
		geocoder: geocoder,
		cache:    cache,
		store:    store,
		metrics:  registry,
		sem:      semaphore.NewWeighted(1),
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Enqueue schedules a trip for address resolution and returns immediately
func (w *Worker) Enqueue(tripID uint) {
	w.metrics.GeocodeQueueDepth.Inc()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.metrics.GeocodeQueueDepth.Dec()
		w.process(context.Background(), tripID)
	}()
}

// Wait blocks until every enqueued job has finished
func (w *Worker) Wait() {
	w.wg.Wait()
}

// QueuePending sweeps the database for trips still carrying the pending
// sentinel and enqueues them all. Returns the number of jobs queued.
func (w *Worker) QueuePending(ctx context.Context) (int, error) {
	ids, err := w.trips.PendingGeocode(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to queue pending geocodes: %w", err)
	}
	for _, id := range ids {
		w.Enqueue(id)
	}
	return len(ids), nil
}

func (w *Worker) process(ctx context.Context, id uint) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer w.sem.Release(1)

	trip, err := w.trips.GetByID(ctx, id)
	if err != nil {
		logging.Error("Failed to load trip for geocoding", "trip_id", id, "error", err.Error())
		w.metrics.GeocodeOpsTotal.WithLabelValues("failed").Inc()
		return
	}
	// Another job already resolved this trip while we waited on the permit.
	if trip == nil || trip.StartAddress != constants.GeocodePending {
		w.metrics.GeocodeOpsTotal.WithLabelValues("skipped").Inc()
		return
	}

	cfg := w.store.Snapshot()

	var start, end string
	outcome := "resolved"
	if !cfg.Geocoding.Enabled {
		// Geocoding switched off after the trip was stored: settle the
		// sentinel with the raw coordinates so it never lingers.
		start = coordLabel(trip.StartLat, trip.StartLon)
		end = coordLabel(trip.EndLat, trip.EndLon)
	} else {
		var startOut, endOut string
		start, startOut = w.resolve(ctx, cfg, trip.StartLat, trip.StartLon)
		end, endOut = w.resolve(ctx, cfg, trip.EndLat, trip.EndLon)
		switch {
		case startOut == "failed" || endOut == "failed":
			outcome = "failed"
		case startOut == "cached" && endOut == "cached":
			outcome = "cached"
		}
	}

	wrote, err := w.trips.SetAddressesIfPending(ctx, id, start, end)
	if err != nil {
		logging.Error("Failed to store trip addresses", "trip_id", id, "error", err.Error())
		w.metrics.GeocodeOpsTotal.WithLabelValues("failed").Inc()
		return
	}
	if !wrote {
		w.metrics.GeocodeOpsTotal.WithLabelValues("skipped").Inc()
		return
	}

	w.metrics.GeocodeOpsTotal.WithLabelValues(outcome).Inc()
	logging.Debug("Geocoded trip", "trip_id", id, "start", start, "end", end)
}

// resolve looks up one endpoint, consulting the shared result cache first.
// Lookups never fail the job: any error degrades to the unknown marker.
func (w *Worker) resolve(ctx context.Context, cfg *config.Config, lat, lon *float64) (string, string) {
	if lat == nil || lon == nil {
		return constants.GeocodeUnknown, "failed"
	}

	key := fmt.Sprintf("geocode:%.5f,%.5f", *lat, *lon)
	if v, ok := w.cache.Get(key); ok {
		if addr, ok := v.(string); ok && addr != "" {
			return addr, "cached"
		}
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return constants.GeocodeUnknown, "failed"
	}

	addr, err := w.geocoder.Reverse(ctx, *lat, *lon)
	if err != nil {
		logging.Warn("Reverse geocode lookup failed", "lat", *lat, "lon", *lon, "error", err.Error())
		return constants.GeocodeUnknown, "failed"
	}
	if addr == "" {
		return constants.GeocodeUnknown, "resolved"
	}

	w.cache.Set(key, addr, time.Duration(cfg.Geocoding.CacheTTLSeconds)*time.Second)
	return addr, "resolved"
}

func coordLabel(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return constants.GeocodeUnknown
	}
	return fmt.Sprintf("%g, %g", *lat, *lon)
}
