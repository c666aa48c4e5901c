package telemetry

import (
	"errors"
	"math"
	"time"

	"motorpool/paddock/internal/constants"
	gormModels "motorpool/paddock/internal/models/gorm"
	"motorpool/paddock/internal/models/dtos"
)

// ErrNoCoordinates marks a trip summary that arrived without endpoint
// coordinates. Such trips are skipped, never stored.
var ErrNoCoordinates = errors.New("trip summary has no coordinate data")

// NormalizeTrip converts a raw upstream trip into the canonical record.
// VIN and the address fields are left for the reconciler to fill; everything
// else, including the imperial mirrors, is computed here.
//
// Distances reported in meters and the drive-cycle times are converted to
// km/seconds; metrics with no sane zero default stay nil.
func NormalizeTrip(raw RawTrip) (gormModels.Trip, error) {
	if raw.Locations == nil || raw.Locations.Start == nil || raw.Locations.Start.Lat == nil ||
		raw.Locations.End == nil || raw.Locations.End.Lat == nil {
		return gormModels.Trip{}, ErrNoCoordinates
	}

	distanceKm := floatOrZero(raw.Distance)
	fuelL100 := floatOrZero(raw.AverageFuelConsumed)
	durationSeconds := int(raw.Duration / time.Second)
	avgSpeed := AverageSpeedKmh(distanceKm, durationSeconds)

	trip := gormModels.Trip{
		StartTimestamp:        raw.StartTime.UTC(),
		EndTimestamp:          raw.EndTime.UTC(),
		StartLat:              raw.Locations.Start.Lat,
		StartLon:              raw.Locations.Start.Lon,
		EndLat:                raw.Locations.End.Lat,
		EndLon:                raw.Locations.End.Lon,
		DistanceKm:            distanceKm,
		FuelConsumptionL100Km: fuelL100,
		DurationSeconds:       durationSeconds,
		AverageSpeedKmh:       avgSpeed,
		DistanceMi:            distanceKm * constants.KmToMi,
		Mpg:                   MpgUS(fuelL100),
		MpgUK:                 ptr(MpgUK(fuelL100)),
		AverageSpeedMph:       avgSpeed * constants.KmToMi,
	}

	// EV metrics: prefer the drive-cycle block (meters/seconds), fall back
	// to the top-level km fields.
	if raw.HDC != nil && raw.HDC.EVDistance != nil {
		trip.EVDistanceKm = *raw.HDC.EVDistance / 1000
	} else {
		trip.EVDistanceKm = floatOrZero(raw.EVDistance)
	}
	if raw.HDC != nil && raw.HDC.EVTime != nil {
		trip.EVDurationSeconds = *raw.HDC.EVTime
	} else {
		trip.EVDurationSeconds = int(raw.EVDuration / time.Second)
	}
	trip.EVDistanceMi = trip.EVDistanceKm * constants.KmToMi

	if raw.Summary != nil {
		trip.MaxSpeedKmh = raw.Summary.MaxSpeed
		trip.Countries = raw.Summary.Countries
		trip.LengthOverspeedKm = metersToKm(raw.Summary.LengthOverspeed)
		trip.DurationOverspeedSeconds = raw.Summary.DurationOverspeed
		trip.LengthHighwayKm = metersToKm(raw.Summary.LengthHighway)
		trip.DurationHighwaySeconds = raw.Summary.DurationHighway
		trip.NightTrip = raw.Summary.NightTrip
	}

	if raw.Scores != nil {
		trip.ScoreGlobal = raw.Scores.Global
		trip.ScoreAcceleration = raw.Scores.Acceleration
		trip.ScoreBraking = raw.Scores.Braking
		trip.ScoreAdvice = raw.Scores.Advice
		trip.ScoreConstantSpeed = raw.Scores.ConstantSpeed
	} else {
		trip.ScoreGlobal = raw.Score
	}

	if len(raw.Route) > 0 {
		route := make(gormModels.RoutePoints, len(raw.Route))
		for i, p := range raw.Route {
			route[i] = gormModels.RoutePoint{Lat: p.Lat, Lon: p.Lon}
		}
		trip.Route = route
	}

	return trip, nil
}

// MpgUS converts l/100km to US miles per gallon, 0.0 when consumption is
// zero or absent.
func MpgUS(l100 float64) float64 {
	if l100 <= 0 {
		return 0.0
	}
	return constants.MpgUSFactor / l100
}

// MpgUK converts l/100km to imperial miles per gallon, 0.0 when consumption
// is zero or absent.
func MpgUK(l100 float64) float64 {
	if l100 <= 0 {
		return 0.0
	}
	return constants.MpgUKFactor / l100
}

// AverageSpeedKmh derives average speed, 0.0 unless both inputs are positive.
func AverageSpeedKmh(distanceKm float64, durationSeconds int) float64 {
	if distanceKm <= 0 || durationSeconds <= 0 {
		return 0.0
	}
	return distanceKm / (float64(durationSeconds) / 3600)
}

// NormalizeDashboard shapes the raw dashboard and location into the cache
// record. Absent sub-objects produce an all-nil dashboard, not an error.
func NormalizeDashboard(raw RawVehicle) dtos.DashboardInfo {
	out := dtos.DashboardInfo{}
	if raw.Dashboard != nil {
		d := raw.Dashboard
		out.Odometer = d.Odometer
		out.FuelLevel = d.FuelLevel
		out.TotalRange = d.Range
		out.FuelRange = d.FuelRange
		out.BatteryLevel = d.BatteryLevel
		out.BatteryRange = d.BatteryRange
		out.BatteryRangeWithAC = d.BatteryRangeWithAC
		out.ChargingStatus = d.ChargingStatus
	}
	if raw.Location != nil {
		out.Latitude = raw.Location.Latitude
		out.Longitude = raw.Location.Longitude
	}
	return out
}

var doorPositions = []struct {
	key string
	get func(*RawDoors) *RawClosure
}{
	{"front_left", func(d *RawDoors) *RawClosure { return d.DriverSeat }},
	{"front_right", func(d *RawDoors) *RawClosure { return d.PassengerSeat }},
	{"rear_left", func(d *RawDoors) *RawClosure { return d.DriverRearSeat }},
	{"rear_right", func(d *RawDoors) *RawClosure { return d.PassengerRearSeat }},
}

var windowPositions = []struct {
	key string
	get func(*RawWindows) *RawWindow
}{
	{"front_left", func(w *RawWindows) *RawWindow { return w.DriverSeat }},
	{"front_right", func(w *RawWindows) *RawWindow { return w.PassengerSeat }},
	{"rear_left", func(w *RawWindows) *RawWindow { return w.DriverRearSeat }},
	{"rear_right", func(w *RawWindows) *RawWindow { return w.PassengerRearSeat }},
}

// NormalizeStatus resolves doors, windows, hood and trunk. Precedence per
// door: a reported closed flag wins; closed unknown with locked=true is
// treated as closed; a missing sub-object defaults to closed=true,
// locked=false.
func NormalizeStatus(raw RawVehicle) dtos.StatusInfo {
	status := dtos.StatusInfo{
		Doors:       map[string]dtos.DoorState{},
		Windows:     map[string]dtos.WindowState{},
		HoodClosed:  true,
		TrunkClosed: true,
	}

	ls := raw.LockStatus
	if ls == nil {
		return status
	}

	if ls.Doors != nil {
		for _, pos := range doorPositions {
			status.Doors[pos.key] = resolveClosure(pos.get(ls.Doors))
		}
		if trunk := ls.Doors.Trunk; trunk != nil {
			if trunk.Closed != nil {
				status.TrunkClosed = *trunk.Closed
			}
			if trunk.Locked != nil {
				status.TrunkLocked = *trunk.Locked
			}
		}
	}

	if ls.Windows != nil {
		for _, pos := range windowPositions {
			closed := true
			if w := pos.get(ls.Windows); w != nil && w.Closed != nil {
				closed = *w.Closed
			}
			status.Windows[pos.key] = dtos.WindowState{Closed: closed}
		}
	}

	if ls.Hood != nil && ls.Hood.Closed != nil {
		status.HoodClosed = *ls.Hood.Closed
	}

	if ls.LastUpdateTimestamp != nil {
		ts := *ls.LastUpdateTimestamp
		if ts.Location() == nil {
			ts = ts.UTC()
		}
		s := ts.Format(time.RFC3339)
		status.LastUpdateTimestamp = &s
	}

	return status
}

func resolveClosure(c *RawClosure) dtos.DoorState {
	if c == nil {
		return dtos.DoorState{Closed: true, Locked: false}
	}
	locked := c.Locked != nil && *c.Locked
	closed := false
	switch {
	case c.Closed != nil:
		closed = *c.Closed
	case locked:
		closed = true
	}
	return dtos.DoorState{Closed: closed, Locked: locked}
}

// NormalizeDaily derives the live daily tile. For hybrids the consumption is
// computed against the non-EV share of the distance when that share is
// positive.
func NormalizeDaily(raw *RawDaySummary, isHybrid bool) *dtos.DailyStats {
	if raw == nil {
		return nil
	}

	dist := floatOrZero(raw.Distance)
	fuel := floatOrZero(raw.FuelConsumed)
	evDist := floatOrZero(raw.EVDistance)

	base := dist
	if nonEV := dist - evDist; isHybrid && nonEV > 0 {
		base = nonEV
	}
	consumption := 0.0
	if fuel > 0 && base > 0 {
		consumption = round2(fuel / base * 100)
	}

	return &dtos.DailyStats{
		Distance:                  dist,
		FuelConsumed:              fuel,
		CalculatedFuelConsumption: consumption,
	}
}

// IsHybrid reports whether the vehicle type carries a combustion engine
// alongside an electric motor.
func IsHybrid(vehicleType string) bool {
	return vehicleType == "hybrid" || vehicleType == "phev"
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0.0
	}
	return *f
}

func metersToKm(m *float64) *float64 {
	if m == nil {
		return nil
	}
	km := *m / 1000
	return &km
}

func ptr[T any](v T) *T { return &v }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
