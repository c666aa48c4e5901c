package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"motorpool/paddock/internal/constants"
	gormModels "motorpool/paddock/internal/models/gorm"
)

// unprotectedColumns are the trip columns a reconciliation update may
// overwrite. The address columns are deliberately absent: they belong to the
// geocoding worker.
var unprotectedColumns = []string{
	"end_timestamp",
	"start_lat", "start_lon", "end_lat", "end_lon",
	"distance_km", "fuel_consumption_l_100km",
	"duration_seconds", "average_speed_kmh", "max_speed_kmh",
	"ev_distance_km", "ev_duration_seconds",
	"score_acceleration", "score_braking", "score_advice",
	"score_constant_speed", "score_global",
	"length_overspeed_km", "duration_overspeed_seconds",
	"length_highway_km", "duration_highway_seconds",
	"night_trip", "countries", "route",
	"distance_mi", "mpg", "mpg_uk", "average_speed_mph", "ev_distance_mi",
}

// TripRepository handles the trips table
type TripRepository struct {
	db *gorm.DB
}

// NewTripRepository creates a new GORM-based trip repository
func NewTripRepository(db *gorm.DB) *TripRepository {
	return &TripRepository{db: db}
}

// GetByID retrieves a trip by primary key, nil when not found
func (r *TripRepository) GetByID(ctx context.Context, id uint) (*gormModels.Trip, error) {
	var trip gormModels.Trip

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&trip).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}

	return &trip, nil
}

// FindByNaturalKey retrieves the trip for (vin, start timestamp), nil when
// not found. The timestamp is compared in UTC.
func (r *TripRepository) FindByNaturalKey(ctx context.Context, vin string, start time.Time) (*gormModels.Trip, error) {
	var trip gormModels.Trip

	err := r.db.WithContext(ctx).
		Where("vin = ? AND start_timestamp = ?", vin, start.UTC()).
		First(&trip).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch trip by natural key: %w", err)
	}

	return &trip, nil
}

// FindByContent retrieves a trip matching (vin, addresses, distance within
// the dedup tolerance). Used for imported records that lack exact
// timestamps.
func (r *TripRepository) FindByContent(ctx context.Context, vin, startAddress, endAddress string, distanceKm float64) (*gormModels.Trip, error) {
	var trip gormModels.Trip

	err := r.db.WithContext(ctx).
		Where("vin = ? AND start_address = ? AND end_address = ? AND distance_km BETWEEN ? AND ?",
			vin, startAddress, endAddress,
			distanceKm-constants.ContentDedupToleranceKm,
			distanceKm+constants.ContentDedupToleranceKm).
		First(&trip).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch trip by content: %w", err)
	}

	return &trip, nil
}

// Create inserts a new trip
func (r *TripRepository) Create(ctx context.Context, trip *gormModels.Trip) error {
	if err := r.db.WithContext(ctx).Create(trip).Error; err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}
	return nil
}

// UpdateUnprotected overwrites every non-protected column of the trip with
// the given id from the freshly normalized record. Zero values are written
// too; only the address columns survive.
func (r *TripRepository) UpdateUnprotected(ctx context.Context, id uint, fresh *gormModels.Trip) error {
	err := r.db.WithContext(ctx).
		Model(&gormModels.Trip{}).
		Where("id = ?", id).
		Select(unprotectedColumns).
		Updates(fresh).Error

	if err != nil {
		return fmt.Errorf("failed to update trip %d: %w", id, err)
	}
	return nil
}

// SetAddressesIfPending writes the geocoded addresses only when the trip is
// still in the pending-geocode state. Returns whether the write landed, so
// a second concurrent geocode job observes false and no-ops.
func (r *TripRepository) SetAddressesIfPending(ctx context.Context, id uint, startAddress, endAddress string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&gormModels.Trip{}).
		Where("id = ? AND start_address = ?", id, constants.GeocodePending).
		Updates(map[string]interface{}{
			"start_address": startAddress,
			"end_address":   endAddress,
		})

	if result.Error != nil {
		return false, fmt.Errorf("failed to set trip addresses: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// PendingGeocode lists the ids of all trips still awaiting geocoding
func (r *TripRepository) PendingGeocode(ctx context.Context) ([]uint, error) {
	var ids []uint

	err := r.db.WithContext(ctx).
		Model(&gormModels.Trip{}).
		Where("start_address = ?", constants.GeocodePending).
		Order("id ASC").
		Pluck("id", &ids).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list pending trips: %w", err)
	}

	return ids, nil
}

// LatestStartTimestamp returns the most recent trip start for a VIN, nil
// when the vehicle has no trips yet
func (r *TripRepository) LatestStartTimestamp(ctx context.Context, vin string) (*time.Time, error) {
	var trip gormModels.Trip

	err := r.db.WithContext(ctx).
		Where("vin = ?", vin).
		Order("start_timestamp DESC").
		First(&trip).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest trip: %w", err)
	}

	ts := trip.StartTimestamp
	return &ts, nil
}

// List retrieves all trips for a VIN with the given ORDER BY expression.
// Callers must pass a whitelisted expression, never user input.
func (r *TripRepository) List(ctx context.Context, vin, orderExpr string) ([]gormModels.Trip, error) {
	var trips []gormModels.Trip

	err := r.db.WithContext(ctx).
		Where("vin = ?", vin).
		Order(orderExpr).
		Find(&trips).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	return trips, nil
}

// MissingImperial lists trips whose imperial mirror columns were never
// computed (pre-migration rows)
func (r *TripRepository) MissingImperial(ctx context.Context) ([]gormModels.Trip, error) {
	var trips []gormModels.Trip

	err := r.db.WithContext(ctx).
		Where("mpg_uk IS NULL").
		Find(&trips).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list trips missing imperial units: %w", err)
	}

	return trips, nil
}

// Save persists all columns of an existing trip
func (r *TripRepository) Save(ctx context.Context, trip *gormModels.Trip) error {
	if err := r.db.WithContext(ctx).Save(trip).Error; err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	return nil
}

// Transaction runs fn inside a transaction; the per-trip fault isolation in
// reconciliation relies on this rolling back a single trip's writes.
func (r *TripRepository) Transaction(ctx context.Context, fn func(txRepo *TripRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TripRepository{db: tx})
	})
}
