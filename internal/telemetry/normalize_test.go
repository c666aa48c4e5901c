package telemetry

import (
	"errors"
	"math"
	"testing"
	"time"
)

func coord(lat, lon float64) *RawCoordinate {
	return &RawCoordinate{Lat: &lat, Lon: &lon}
}

func sampleTrip() RawTrip {
	return RawTrip{
		StartTime: time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 10, 8, 45, 0, 0, time.UTC),
		Locations: &RawTripLocations{
			Start: coord(48.137, 11.575),
			End:   coord(48.208, 11.623),
		},
		Distance:            ptr(24.6),
		AverageFuelConsumed: ptr(5.2),
		Duration:            30 * time.Minute,
	}
}

func TestNormalizeTrip_BasicFields(t *testing.T) {
	trip, err := NormalizeTrip(sampleTrip())
	if err != nil {
		t.Fatalf("NormalizeTrip returned error: %v", err)
	}

	if trip.DistanceKm != 24.6 {
		t.Errorf("Expected distance 24.6, got %f", trip.DistanceKm)
	}
	if trip.DurationSeconds != 1800 {
		t.Errorf("Expected duration 1800s, got %d", trip.DurationSeconds)
	}
	if got := trip.AverageSpeedKmh; math.Abs(got-49.2) > 0.001 {
		t.Errorf("Expected average speed 49.2, got %f", got)
	}
	if trip.StartTimestamp.Location() != time.UTC {
		t.Errorf("Expected UTC start timestamp, got %v", trip.StartTimestamp.Location())
	}
	if trip.VIN != "" || trip.StartAddress != "" {
		t.Errorf("VIN and addresses must be left for the reconciler")
	}
}

func TestNormalizeTrip_ImperialMirrors(t *testing.T) {
	trip, err := NormalizeTrip(sampleTrip())
	if err != nil {
		t.Fatalf("NormalizeTrip returned error: %v", err)
	}

	if got := trip.DistanceMi; math.Abs(got-24.6*0.621371) > 0.0001 {
		t.Errorf("Expected distance_mi %f, got %f", 24.6*0.621371, got)
	}
	if got := trip.Mpg; math.Abs(got-235.214/5.2) > 0.0001 {
		t.Errorf("Expected mpg %f, got %f", 235.214/5.2, got)
	}
	if trip.MpgUK == nil {
		t.Fatal("Expected mpg_uk to be set")
	}
	if got := *trip.MpgUK; math.Abs(got-282.481/5.2) > 0.0001 {
		t.Errorf("Expected mpg_uk %f, got %f", 282.481/5.2, got)
	}
}

func TestNormalizeTrip_ZeroConsumptionGuards(t *testing.T) {
	raw := sampleTrip()
	raw.AverageFuelConsumed = nil

	trip, err := NormalizeTrip(raw)
	if err != nil {
		t.Fatalf("NormalizeTrip returned error: %v", err)
	}

	if trip.Mpg != 0.0 {
		t.Errorf("Expected mpg 0.0 for unknown consumption, got %f", trip.Mpg)
	}
	if trip.MpgUK == nil || *trip.MpgUK != 0.0 {
		t.Errorf("Expected mpg_uk 0.0 for unknown consumption, got %v", trip.MpgUK)
	}
}

func TestNormalizeTrip_MissingCoordinates(t *testing.T) {
	raw := sampleTrip()
	raw.Locations.End = nil

	_, err := NormalizeTrip(raw)
	if !errors.Is(err, ErrNoCoordinates) {
		t.Errorf("Expected ErrNoCoordinates, got %v", err)
	}

	raw.Locations = nil
	if _, err := NormalizeTrip(raw); !errors.Is(err, ErrNoCoordinates) {
		t.Errorf("Expected ErrNoCoordinates for nil locations, got %v", err)
	}
}

func TestNormalizeTrip_HDCPreferred(t *testing.T) {
	raw := sampleTrip()
	raw.EVDistance = ptr(3.0) // km fallback
	raw.EVDuration = 5 * time.Minute
	raw.HDC = &RawHDC{
		EVDistance: ptr(8200.0), // meters
		EVTime:     ptr(600),
	}

	trip, err := NormalizeTrip(raw)
	if err != nil {
		t.Fatalf("NormalizeTrip returned error: %v", err)
	}

	if got := trip.EVDistanceKm; math.Abs(got-8.2) > 0.0001 {
		t.Errorf("Expected HDC EV distance 8.2 km, got %f", got)
	}
	if trip.EVDurationSeconds != 600 {
		t.Errorf("Expected HDC EV duration 600s, got %d", trip.EVDurationSeconds)
	}
}

func TestNormalizeTrip_EVFallback(t *testing.T) {
	raw := sampleTrip()
	raw.EVDistance = ptr(3.0)
	raw.EVDuration = 5 * time.Minute

	trip, err := NormalizeTrip(raw)
	if err != nil {
		t.Fatalf("NormalizeTrip returned error: %v", err)
	}

	if trip.EVDistanceKm != 3.0 {
		t.Errorf("Expected fallback EV distance 3.0, got %f", trip.EVDistanceKm)
	}
	if trip.EVDurationSeconds != 300 {
		t.Errorf("Expected fallback EV duration 300s, got %d", trip.EVDurationSeconds)
	}
}

func TestNormalizeTrip_SummaryMetersConverted(t *testing.T) {
	raw := sampleTrip()
	raw.Summary = &RawTripSummary{
		LengthOverspeed: ptr(1500.0),
		LengthHighway:   ptr(12000.0),
	}

	trip, err := NormalizeTrip(raw)
	if err != nil {
		t.Fatalf("NormalizeTrip returned error: %v", err)
	}

	if trip.LengthOverspeedKm == nil || *trip.LengthOverspeedKm != 1.5 {
		t.Errorf("Expected overspeed length 1.5 km, got %v", trip.LengthOverspeedKm)
	}
	if trip.LengthHighwayKm == nil || *trip.LengthHighwayKm != 12.0 {
		t.Errorf("Expected highway length 12 km, got %v", trip.LengthHighwayKm)
	}
	if trip.MaxSpeedKmh != nil {
		t.Errorf("Expected nil max speed when unreported, got %v", trip.MaxSpeedKmh)
	}
}

func TestResolveClosure_Precedence(t *testing.T) {
	cases := []struct {
		name       string
		closure    *RawClosure
		wantClosed bool
		wantLocked bool
	}{
		{"absent sub-object", nil, true, false},
		{"explicit closed", &RawClosure{Closed: ptr(false), Locked: ptr(true)}, false, true},
		{"closed unknown but locked", &RawClosure{Locked: ptr(true)}, true, true},
		{"closed unknown and unlocked", &RawClosure{Locked: ptr(false)}, false, false},
	}

	for _, tc := range cases {
		got := resolveClosure(tc.closure)
		if got.Closed != tc.wantClosed || got.Locked != tc.wantLocked {
			t.Errorf("%s: expected closed=%v locked=%v, got closed=%v locked=%v",
				tc.name, tc.wantClosed, tc.wantLocked, got.Closed, got.Locked)
		}
	}
}

func TestNormalizeStatus_Defaults(t *testing.T) {
	status := NormalizeStatus(RawVehicle{})

	if !status.HoodClosed || !status.TrunkClosed {
		t.Error("Expected hood and trunk to default to closed")
	}
	if len(status.Doors) != 0 {
		t.Errorf("Expected no door entries without lock status, got %d", len(status.Doors))
	}
}

func TestNormalizeStatus_DoorsAndWindows(t *testing.T) {
	raw := RawVehicle{
		LockStatus: &RawLockStatus{
			Doors: &RawDoors{
				DriverSeat: &RawClosure{Closed: ptr(true), Locked: ptr(true)},
				Trunk:      &RawClosure{Closed: ptr(false), Locked: ptr(false)},
			},
			Windows: &RawWindows{
				DriverSeat: &RawWindow{Closed: ptr(false)},
			},
			Hood: &RawClosure{Closed: ptr(true)},
		},
	}

	status := NormalizeStatus(raw)

	if d := status.Doors["front_left"]; !d.Closed || !d.Locked {
		t.Errorf("Expected front_left closed+locked, got %+v", d)
	}
	// Unreported doors default to closed, unlocked.
	if d := status.Doors["rear_right"]; !d.Closed || d.Locked {
		t.Errorf("Expected rear_right default closed+unlocked, got %+v", d)
	}
	if status.TrunkClosed || status.TrunkLocked {
		t.Error("Expected trunk open and unlocked")
	}
	if w := status.Windows["front_left"]; w.Closed {
		t.Error("Expected front_left window open")
	}
	if w := status.Windows["rear_left"]; !w.Closed {
		t.Error("Expected unreported window to default to closed")
	}
}

func TestNormalizeDaily_HybridConsumption(t *testing.T) {
	day := &RawDaySummary{
		Distance:     ptr(50.0),
		FuelConsumed: ptr(2.0),
		EVDistance:   ptr(30.0),
	}

	stats := NormalizeDaily(day, true)
	if stats == nil {
		t.Fatal("Expected stats for non-nil summary")
	}
	// Hybrid: fuel over the 20 km non-EV share.
	if stats.CalculatedFuelConsumption != 10.0 {
		t.Errorf("Expected 10.0 l/100km over non-EV share, got %f", stats.CalculatedFuelConsumption)
	}

	stats = NormalizeDaily(day, false)
	if stats.CalculatedFuelConsumption != 4.0 {
		t.Errorf("Expected 4.0 l/100km over full distance, got %f", stats.CalculatedFuelConsumption)
	}

	if NormalizeDaily(nil, true) != nil {
		t.Error("Expected nil stats for nil summary")
	}
}

func TestIsHybrid(t *testing.T) {
	for _, typ := range []string{"hybrid", "phev"} {
		if !IsHybrid(typ) {
			t.Errorf("Expected %s to be hybrid", typ)
		}
	}
	for _, typ := range []string{"gas", "ev", ""} {
		if IsHybrid(typ) {
			t.Errorf("Expected %s not to be hybrid", typ)
		}
	}
}
