// Package fetcher drives the poll cycle: one authenticated session against
// the manufacturer API per cycle, a concurrent per-vehicle fan-out with
// isolated failures, and a single atomically replaced cache artifact at the
// end.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/constants"
	"motorpool/paddock/internal/credentials"
	"motorpool/paddock/internal/db/repositories"
	"motorpool/paddock/internal/geocode"
	"motorpool/paddock/internal/logging"
	"motorpool/paddock/internal/metrics"
	"motorpool/paddock/internal/models/dtos"
	gormModels "motorpool/paddock/internal/models/gorm"
	"motorpool/paddock/internal/stats"
	"motorpool/paddock/internal/telemetry"
)

// firstRunWindowDays is how far back the first trip fetch for a vehicle
// reaches when the database has no trips yet.
const firstRunWindowDays = 7

// Publisher receives each vehicle record after a successful cycle.
type Publisher interface {
	PublishVehicle(info dtos.VehicleInfo)
}

// Fetcher owns the fetch cycle and the manual trigger operations.
type Fetcher struct {
	factory   telemetry.Factory
	store     *config.Store
	creds     *credentials.Manager
	readings  *repositories.ReadingRepository
	trips     *repositories.TripRepository
	stats     *stats.Service
	geocoder  *geocode.Worker
	cache     *CacheFile
	publisher Publisher
	metrics   *metrics.MetricsRegistry

	// runMu serializes cycles so a manual trigger never overlaps the
	// scheduler.
	runMu sync.Mutex
}

// New wires a fetcher. The publisher may be nil when MQTT is not in use.
func New(
	factory telemetry.Factory,
	store *config.Store,
	creds *credentials.Manager,
	readings *repositories.ReadingRepository,
	trips *repositories.TripRepository,
	statsService *stats.Service,
	geocoder *geocode.Worker,
	cache *CacheFile,
	publisher Publisher,
	registry *metrics.MetricsRegistry,
) *Fetcher {
	return &Fetcher{
		factory:   factory,
		store:     store,
		creds:     creds,
		readings:  readings,
		trips:     trips,
		stats:     statsService,
		geocoder:  geocoder,
		cache:     cache,
		publisher: publisher,
		metrics:   registry,
	}
}

// Cache exposes the artifact handle for the read endpoints and the
// scheduler's staleness check.
func (f *Fetcher) Cache() *CacheFile {
	return f.cache
}

// RunCycle executes one full fetch cycle. A failed vehicle never takes the
// cycle down; a failed login or vehicle listing does.
func (f *Fetcher) RunCycle(ctx context.Context) error {
	f.runMu.Lock()
	defer f.runMu.Unlock()

	started := time.Now()
	defer func() {
		f.metrics.PollCycleDuration.Observe(time.Since(started).Seconds())
	}()

	cfg := f.store.Snapshot()

	username, password, err := f.creds.Load()
	if err != nil {
		f.metrics.PollCyclesTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	client := f.factory(username, password)
	defer func() {
		if err := client.Close(ctx); err != nil {
			logging.Warn("Failed to close telemetry session", "error", err.Error())
		}
	}()

	if err := client.Login(ctx); err != nil {
		f.metrics.PollCyclesTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("failed to log in: %w", err)
	}

	vehicles, err := client.Vehicles(ctx)
	if err != nil {
		f.metrics.PollCyclesTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("failed to list vehicles: %w", err)
	}

	previous := f.previousVehicles()

	type outcome struct {
		vin  string
		info dtos.VehicleInfo
		err  error
	}
	results := make(chan outcome, len(vehicles))
	for _, v := range vehicles {
		go func(v telemetry.Vehicle) {
			info, err := f.processVehicle(ctx, cfg, v)
			results <- outcome{vin: v.VIN(), info: info, err: err}
		}(v)
	}

	artifact := &dtos.CacheArtifact{
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
	for range vehicles {
		r := <-results
		if r.err != nil {
			logging.Error("Vehicle cycle failed", "vin", r.vin, "error", r.err.Error())
			f.metrics.VehiclesFailed.Inc()
			// Keep the stale record so the vehicle does not vanish from the
			// dashboard over one bad cycle.
			if prev, ok := previous[r.vin]; ok {
				artifact.Vehicles = append(artifact.Vehicles, prev)
			}
			continue
		}
		f.metrics.VehiclesProcessed.Inc()
		if r.info.ServiceHistory == nil {
			if prev, ok := previous[r.vin]; ok {
				r.info.ServiceHistory = prev.ServiceHistory
			}
		}
		artifact.Vehicles = append(artifact.Vehicles, r.info)
	}
	sort.Slice(artifact.Vehicles, func(i, j int) bool {
		return artifact.Vehicles[i].VIN < artifact.Vehicles[j].VIN
	})

	// An empty cycle must not replace the last good snapshot.
	if len(artifact.Vehicles) == 0 {
		logging.Warn("No vehicle data produced, keeping previous cache artifact")
		f.metrics.PollCyclesTotal.WithLabelValues("degraded").Inc()
		return nil
	}

	cycleOutcome := "ok"
	if err := f.cache.Write(artifact); err != nil {
		logging.Error("Failed to write cache artifact", "error", err.Error())
		cycleOutcome = "degraded"
	}

	if f.publisher != nil {
		for _, info := range artifact.Vehicles {
			f.publisher.PublishVehicle(info)
		}
	}

	f.metrics.PollCyclesTotal.WithLabelValues(cycleOutcome).Inc()
	logging.Info("Fetch cycle finished",
		"vehicles", len(artifact.Vehicles),
		"duration", time.Since(started).String())
	return nil
}

// BackfillTrips re-fetches and reconciles trips over a named period for one
// vehicle, outside the regular activity gate.
func (f *Fetcher) BackfillTrips(ctx context.Context, vin, period string) (dtos.ReconcileResult, error) {
	days, ok := constants.BackfillPeriodDays[period]
	if !ok {
		return dtos.ReconcileResult{}, fmt.Errorf("unknown backfill period %q", period)
	}

	cfg := f.store.Snapshot()
	var res dtos.ReconcileResult
	err := f.withSession(ctx, func(client telemetry.Client) error {
		vehicle, err := f.findVehicle(ctx, client, vin)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var raws []telemetry.RawTrip
		err = f.withRetry(ctx, cfg, func() error {
			var tripErr error
			raws, tripErr = vehicle.Trips(ctx, now.AddDate(0, 0, -days), now, cfg.Upstream.FetchFullRoute)
			return tripErr
		})
		if err != nil {
			return fmt.Errorf("failed to fetch trips: %w", err)
		}

		res = f.Reconcile(ctx, vin, raws)
		return nil
	})
	if err != nil {
		return dtos.ReconcileResult{}, err
	}
	return res, nil
}

// FetchServiceHistory pulls the service records for one vehicle and folds
// them into the cache artifact so later cycles carry them forward.
func (f *Fetcher) FetchServiceHistory(ctx context.Context, vin string) (any, error) {
	var history any
	err := f.withSession(ctx, func(client telemetry.Client) error {
		vehicle, err := f.findVehicle(ctx, client, vin)
		if err != nil {
			return err
		}
		history, err = vehicle.ServiceHistory(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch service history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	artifact, err := f.cache.Read()
	if err == nil && artifact != nil {
		for i := range artifact.Vehicles {
			if artifact.Vehicles[i].VIN == vin {
				artifact.Vehicles[i].ServiceHistory = history
				if err := f.cache.Write(artifact); err != nil {
					logging.Warn("Failed to store service history", "vin", vin, "error", err.Error())
				}
				break
			}
		}
	}

	return history, nil
}

// processVehicle runs the whole per-vehicle pipeline: live update with
// retries, normalization, the odometer activity gate, and the statistics
// merge.
func (f *Fetcher) processVehicle(ctx context.Context, cfg *config.Config, v telemetry.Vehicle) (dtos.VehicleInfo, error) {
	log := logging.WithVehicle(v.VIN())

	if err := f.withRetry(ctx, cfg, func() error { return v.Update(ctx) }); err != nil {
		return dtos.VehicleInfo{}, fmt.Errorf("failed to update vehicle: %w", err)
	}

	raw := v.Raw()
	isHybrid := telemetry.IsHybrid(raw.Type)
	info := dtos.VehicleInfo{
		VIN:           raw.VIN,
		Alias:         raw.Alias,
		ModelName:     raw.ModelName,
		IsHybrid:      isHybrid,
		Dashboard:     telemetry.NormalizeDashboard(raw),
		Status:        telemetry.NormalizeStatus(raw),
		Notifications: raw.Notifications,
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
	}

	day, err := v.CurrentDaySummary(ctx)
	if err != nil {
		log.Warnw("Failed to fetch day summary", "error", err.Error())
	} else {
		info.Statistics.Daily = telemetry.NormalizeDaily(day, isHybrid)
	}

	if info.Dashboard.Odometer != nil {
		if err := f.recordActivity(ctx, cfg, v, info, day); err != nil {
			log.Warnw("Failed to record vehicle activity", "error", err.Error())
		}
	}

	overall, err := f.stats.Overall(ctx, raw.VIN)
	if err != nil {
		log.Warnw("Failed to compute overall stats", "error", err.Error())
	} else {
		info.Statistics.Overall = overall
	}

	return info, nil
}

// recordActivity applies the odometer gate: a reading is stored and trips
// are fetched only when the vehicle actually moved since the last cycle.
func (f *Fetcher) recordActivity(ctx context.Context, cfg *config.Config, v telemetry.Vehicle, info dtos.VehicleInfo, day *telemetry.RawDaySummary) error {
	vin := info.VIN
	odometer := *info.Dashboard.Odometer

	last, err := f.readings.Latest(ctx, vin)
	if err != nil {
		return err
	}
	if last != nil && odometer <= last.Odometer {
		return nil
	}

	reading := &gormModels.Reading{
		VIN:        vin,
		Odometer:   odometer,
		FuelLevel:  info.Dashboard.FuelLevel,
		TotalRange: info.Dashboard.TotalRange,
	}
	if day != nil {
		reading.DailyDistance = day.Distance
		reading.DailyFuelConsumed = day.FuelConsumed
	}
	if err := f.readings.Add(ctx, reading); err != nil {
		return err
	}

	from, err := f.tripWindowStart(ctx, vin)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	var raws []telemetry.RawTrip
	err = f.withRetry(ctx, cfg, func() error {
		var tripErr error
		raws, tripErr = v.Trips(ctx, from, now, cfg.Upstream.FetchFullRoute)
		return tripErr
	})
	if err != nil {
		return fmt.Errorf("failed to fetch trips: %w", err)
	}

	res := f.Reconcile(ctx, vin, raws)
	logging.Info("Reconciled trips",
		"vin", vin,
		"new", res.New,
		"updated", res.Updated)
	return nil
}

// tripWindowStart is the most recent stored trip start, or a short window
// into the past for a vehicle with no history.
func (f *Fetcher) tripWindowStart(ctx context.Context, vin string) (time.Time, error) {
	latest, err := f.trips.LatestStartTimestamp(ctx, vin)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Now().UTC().AddDate(0, 0, -firstRunWindowDays), nil
	}
	return *latest, nil
}

// withRetry runs op up to 1+retries times, sleeping between attempts. Only
// transient upstream errors are retried; anything else is final.
func (f *Fetcher) withRetry(ctx context.Context, cfg *config.Config, op func() error) error {
	delay := time.Duration(cfg.Upstream.RetryDelaySeconds) * time.Second
	var err error
	for attempt := 0; attempt <= cfg.Upstream.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = op(); err == nil {
			return nil
		}
		var apiErr *telemetry.APIError
		if !errors.As(err, &apiErr) {
			return err
		}
	}
	return err
}

// withSession opens a fresh authenticated session for a one-off operation.
func (f *Fetcher) withSession(ctx context.Context, fn func(client telemetry.Client) error) error {
	username, password, err := f.creds.Load()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	client := f.factory(username, password)
	defer func() {
		if err := client.Close(ctx); err != nil {
			logging.Warn("Failed to close telemetry session", "error", err.Error())
		}
	}()

	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	return fn(client)
}

func (f *Fetcher) findVehicle(ctx context.Context, client telemetry.Client, vin string) (telemetry.Vehicle, error) {
	vehicles, err := client.Vehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	for _, v := range vehicles {
		if v.VIN() == vin {
			return v, nil
		}
	}
	return nil, fmt.Errorf("vehicle %s not found in account", vin)
}

// previousVehicles indexes the last artifact by VIN, empty when no artifact
// exists or it cannot be read.
func (f *Fetcher) previousVehicles() map[string]dtos.VehicleInfo {
	out := make(map[string]dtos.VehicleInfo)
	artifact, err := f.cache.Read()
	if err != nil {
		logging.Warn("Failed to read previous cache artifact", "error", err.Error())
		return out
	}
	if artifact == nil {
		return out
	}
	for _, v := range artifact.Vehicles {
		out[v.VIN] = v
	}
	return out
}
