package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"motorpool/paddock/internal/constants"
	gormModels "motorpool/paddock/internal/models/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := gdb.AutoMigrate(&gormModels.Reading{}, &gormModels.Trip{}); err != nil {
		t.Fatalf("Failed to migrate schema: %v", err)
	}
	return gdb
}

func newTrip(vin string, start time.Time) *gormModels.Trip {
	return &gormModels.Trip{
		VIN:            vin,
		StartTimestamp: start,
		EndTimestamp:   start.Add(30 * time.Minute),
		StartAddress:   constants.GeocodePending,
		EndAddress:     constants.GeocodePending,
		DistanceKm:     24.6,
	}
}

func TestFindByNaturalKey_ComparesInUTC(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	if err := repo.Create(ctx, newTrip("VIN1", start)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The same instant in another zone must hit the same row.
	local := start.In(time.FixedZone("CET", 3600))
	found, err := repo.FindByNaturalKey(ctx, "VIN1", local)
	if err != nil {
		t.Fatalf("FindByNaturalKey failed: %v", err)
	}
	if found == nil {
		t.Fatal("Expected trip found via non-UTC timestamp")
	}

	missing, err := repo.FindByNaturalKey(ctx, "VIN1", start.Add(time.Second))
	if err != nil {
		t.Fatalf("FindByNaturalKey failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected no match for a different start")
	}
}

func TestNaturalKeyUnique(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	if err := repo.Create(ctx, newTrip("VIN1", start)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, newTrip("VIN1", start)); err == nil {
		t.Error("Expected duplicate natural key to be rejected")
	}
	// A different vehicle may share the timestamp.
	if err := repo.Create(ctx, newTrip("VIN2", start)); err != nil {
		t.Errorf("Expected other VIN to insert cleanly, got %v", err)
	}
}

func TestUpdateUnprotected_LeavesAddresses(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	trip := newTrip("VIN1", start)
	if err := repo.Create(ctx, trip); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.SetAddressesIfPending(ctx, trip.ID, "Munich", "Garching"); err != nil {
		t.Fatalf("SetAddressesIfPending failed: %v", err)
	}

	fresh := newTrip("VIN1", start)
	fresh.DistanceKm = 99.9
	fresh.StartAddress = "should not land"
	if err := repo.UpdateUnprotected(ctx, trip.ID, fresh); err != nil {
		t.Fatalf("UpdateUnprotected failed: %v", err)
	}

	stored, err := repo.GetByID(ctx, trip.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.DistanceKm != 99.9 {
		t.Errorf("Expected distance overwritten, got %f", stored.DistanceKm)
	}
	if stored.StartAddress != "Munich" || stored.EndAddress != "Garching" {
		t.Errorf("Expected addresses untouched, got %q / %q", stored.StartAddress, stored.EndAddress)
	}
}

func TestUpdateUnprotected_WritesZeroValues(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	trip := newTrip("VIN1", start)
	trip.EVDistanceKm = 5.0
	if err := repo.Create(ctx, trip); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fresh := newTrip("VIN1", start) // EVDistanceKm zero
	if err := repo.UpdateUnprotected(ctx, trip.ID, fresh); err != nil {
		t.Fatalf("UpdateUnprotected failed: %v", err)
	}

	stored, _ := repo.GetByID(ctx, trip.ID)
	if stored.EVDistanceKm != 0 {
		t.Errorf("Expected zero EV distance written through, got %f", stored.EVDistanceKm)
	}
}

func TestSetAddressesIfPending_SecondWriteNoOps(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	trip := newTrip("VIN1", time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC))
	if err := repo.Create(ctx, trip); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wrote, err := repo.SetAddressesIfPending(ctx, trip.ID, "Munich", "Garching")
	if err != nil || !wrote {
		t.Fatalf("Expected first write to land, got wrote=%v err=%v", wrote, err)
	}

	wrote, err = repo.SetAddressesIfPending(ctx, trip.ID, "Elsewhere", "Elsewhere")
	if err != nil {
		t.Fatalf("SetAddressesIfPending failed: %v", err)
	}
	if wrote {
		t.Error("Expected second write to no-op")
	}

	stored, _ := repo.GetByID(ctx, trip.ID)
	if stored.StartAddress != "Munich" {
		t.Errorf("Expected first addresses kept, got %q", stored.StartAddress)
	}
}

func TestFindByContent_DistanceTolerance(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	trip := newTrip("VIN1", time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC))
	trip.StartAddress = "Munich"
	trip.EndAddress = "Garching"
	trip.DistanceKm = 12.0
	if err := repo.Create(ctx, trip); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	within, err := repo.FindByContent(ctx, "VIN1", "Munich", "Garching", 12.05)
	if err != nil {
		t.Fatalf("FindByContent failed: %v", err)
	}
	if within == nil {
		t.Error("Expected match within distance tolerance")
	}

	outside, err := repo.FindByContent(ctx, "VIN1", "Munich", "Garching", 12.0+2*constants.ContentDedupToleranceKm)
	if err != nil {
		t.Fatalf("FindByContent failed: %v", err)
	}
	if outside != nil {
		t.Error("Expected no match outside distance tolerance")
	}

	otherRoute, err := repo.FindByContent(ctx, "VIN1", "Munich", "Freising", 12.0)
	if err != nil {
		t.Fatalf("FindByContent failed: %v", err)
	}
	if otherRoute != nil {
		t.Error("Expected no match for a different end address")
	}
}

func TestPendingGeocode_ReturnsOnlyUnresolved(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	first := newTrip("VIN1", start)
	second := newTrip("VIN1", start.Add(time.Hour))
	resolved := newTrip("VIN1", start.Add(2*time.Hour))
	resolved.StartAddress = "Munich"
	resolved.EndAddress = "Garching"
	for _, trip := range []*gormModels.Trip{first, second, resolved} {
		if err := repo.Create(ctx, trip); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	ids, err := repo.PendingGeocode(ctx)
	if err != nil {
		t.Fatalf("PendingGeocode failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected 2 pending trips, got %d", len(ids))
	}
	if ids[0] != first.ID || ids[1] != second.ID {
		t.Errorf("Expected ids in insertion order, got %v", ids)
	}
}

func TestMissingImperial(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	stale := newTrip("VIN1", start)
	filled := newTrip("VIN1", start.Add(time.Hour))
	mpgUK := 42.0
	filled.MpgUK = &mpgUK
	for _, trip := range []*gormModels.Trip{stale, filled} {
		if err := repo.Create(ctx, trip); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	missing, err := repo.MissingImperial(ctx)
	if err != nil {
		t.Fatalf("MissingImperial failed: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != stale.ID {
		t.Errorf("Expected only the trip without imperial mirrors, got %d rows", len(missing))
	}
}

func TestLatestStartTimestamp(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	latest, err := repo.LatestStartTimestamp(ctx, "VIN1")
	if err != nil {
		t.Fatalf("LatestStartTimestamp failed: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil for vehicle without trips, got %v", latest)
	}

	older := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, newTrip("VIN1", newer)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, newTrip("VIN1", older)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	latest, err = repo.LatestStartTimestamp(ctx, "VIN1")
	if err != nil {
		t.Fatalf("LatestStartTimestamp failed: %v", err)
	}
	if latest == nil || !latest.Equal(newer) {
		t.Errorf("Expected %v, got %v", newer, latest)
	}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	repo := NewTripRepository(newTestDB(t))
	ctx := context.Background()

	failed := errors.New("boom")
	err := repo.Transaction(ctx, func(tx *TripRepository) error {
		if err := tx.Create(ctx, newTrip("VIN1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))); err != nil {
			return err
		}
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("Expected transaction error surfaced, got %v", err)
	}

	trips, err := repo.List(ctx, "VIN1", "start_timestamp DESC")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(trips) != 0 {
		t.Errorf("Expected rollback to remove the insert, got %d trips", len(trips))
	}
}

func TestReadingRepository_LatestAndHistory(t *testing.T) {
	repo := NewReadingRepository(newTestDB(t))
	ctx := context.Background()

	latest, err := repo.Latest(ctx, "VIN1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil without readings, got %+v", latest)
	}

	now := time.Now().UTC()
	for i, odo := range []float64{100, 150, 200} {
		reading := &gormModels.Reading{
			VIN:       "VIN1",
			Timestamp: now.Add(time.Duration(i-3) * 10 * time.Minute),
			Odometer:  odo,
		}
		if err := repo.Add(ctx, reading); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if err := repo.Add(ctx, &gormModels.Reading{VIN: "VIN2", Timestamp: now, Odometer: 999}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	latest, err = repo.Latest(ctx, "VIN1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.Odometer != 200 {
		t.Errorf("Expected latest odometer 200, got %+v", latest)
	}

	history, err := repo.History(ctx, "VIN1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(history))
	}
	if history[0].Odometer != 100 || history[2].Odometer != 200 {
		t.Errorf("Expected ascending order, got %f..%f", history[0].Odometer, history[2].Odometer)
	}
}
