package fetcher

import (
	"context"

	"motorpool/paddock/internal/constants"
	"motorpool/paddock/internal/db/repositories"
	"motorpool/paddock/internal/logging"
	"motorpool/paddock/internal/models/dtos"
	gormModels "motorpool/paddock/internal/models/gorm"
	"motorpool/paddock/internal/telemetry"
)

// Reconcile merges freshly fetched trips into the trips table. The natural
// key is (vin, start timestamp in UTC): a miss inserts the trip with pending
// addresses and hands it to the geocoding worker, a hit overwrites every
// column except the addresses. Each trip runs in its own transaction so one
// bad record never poisons the batch.
func (f *Fetcher) Reconcile(ctx context.Context, vin string, raws []telemetry.RawTrip) dtos.ReconcileResult {
	var res dtos.ReconcileResult

	for _, raw := range raws {
		fresh, err := telemetry.NormalizeTrip(raw)
		if err != nil {
			// Trips without coordinates cannot be stored or geocoded.
			logging.Warn("Skipping unusable trip", "vin", vin, "error", err.Error())
			f.metrics.TripsReconciled.WithLabelValues("skipped").Inc()
			continue
		}
		fresh.VIN = vin
		fresh.StartAddress = constants.GeocodePending
		fresh.EndAddress = constants.GeocodePending

		var created bool
		var geocodeID uint
		err = f.trips.Transaction(ctx, func(tx *repositories.TripRepository) error {
			existing, err := tx.FindByNaturalKey(ctx, vin, fresh.StartTimestamp)
			if err != nil {
				return err
			}
			if existing == nil {
				if err := tx.Create(ctx, &fresh); err != nil {
					return err
				}
				created = true
				geocodeID = fresh.ID
				return nil
			}
			if err := tx.UpdateUnprotected(ctx, existing.ID, &fresh); err != nil {
				return err
			}
			// An earlier insert whose geocode job never completed keeps the
			// sentinel; give it another chance.
			if existing.StartAddress == constants.GeocodePending {
				geocodeID = existing.ID
			}
			return nil
		})
		if err != nil {
			logging.Warn("Failed to reconcile trip",
				"vin", vin,
				"start", fresh.StartTimestamp,
				"error", err.Error())
			continue
		}

		if created {
			res.New++
			f.metrics.TripsReconciled.WithLabelValues("new").Inc()
		} else {
			res.Updated++
			f.metrics.TripsReconciled.WithLabelValues("updated").Inc()
		}
		if geocodeID != 0 && f.geocoder != nil {
			f.geocoder.Enqueue(geocodeID)
		}
	}

	return res
}

// ReconcileImported inserts trips parsed from a CSV export. Imported rows
// have no reliable start timestamp resolution, so identity is content-based:
// same vin, addresses and distance within the dedup tolerance. Matches are
// skipped, never updated. The whole batch runs in one transaction.
func (f *Fetcher) ReconcileImported(ctx context.Context, vin string, trips []gormModels.Trip) (dtos.ImportResult, error) {
	var res dtos.ImportResult

	err := f.trips.Transaction(ctx, func(tx *repositories.TripRepository) error {
		for i := range trips {
			trip := &trips[i]
			trip.VIN = vin

			existing, err := tx.FindByContent(ctx, vin, trip.StartAddress, trip.EndAddress, trip.DistanceKm)
			if err != nil {
				return err
			}
			if existing != nil {
				res.Skipped++
				continue
			}
			if err := tx.Create(ctx, trip); err != nil {
				return err
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return dtos.ImportResult{}, err
	}
	return res, nil
}

// BackfillUnits recomputes the imperial mirror columns for rows that
// predate them. Returns how many trips were rewritten.
func (f *Fetcher) BackfillUnits(ctx context.Context) (int, error) {
	trips, err := f.trips.MissingImperial(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range trips {
		trip := &trips[i]
		trip.DistanceMi = trip.DistanceKm * constants.KmToMi
		trip.Mpg = telemetry.MpgUS(trip.FuelConsumptionL100Km)
		mpgUK := telemetry.MpgUK(trip.FuelConsumptionL100Km)
		trip.MpgUK = &mpgUK
		trip.AverageSpeedMph = trip.AverageSpeedKmh * constants.KmToMi
		trip.EVDistanceMi = trip.EVDistanceKm * constants.KmToMi

		if err := f.trips.Save(ctx, trip); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
