package telemetry

import "time"

// The Raw* types mirror the deeply optional upstream payloads. Every field
// that may be absent upstream is a pointer; nothing outside this package and
// the normalizer should ever touch them. The json tags define the bridge
// wire format.

// RawVehicle is the per-vehicle state after a live update.
type RawVehicle struct {
	VIN        string         `json:"vin"`
	Alias      string         `json:"alias"`
	ModelName  string         `json:"model_name"`
	Type       string         `json:"type"` // "gas", "hybrid", "phev", "ev"
	Dashboard  *RawDashboard  `json:"dashboard,omitempty"`
	Location   *RawLocation   `json:"location,omitempty"`
	LockStatus *RawLockStatus `json:"lock_status,omitempty"`

	// Manufacturer notices (recalls, maintenance reminders); passed through
	// to the cache artifact without interpretation.
	Notifications []any `json:"notifications,omitempty"`
}

// RawDashboard carries the instrument-cluster snapshot.
type RawDashboard struct {
	Odometer           *float64 `json:"odometer,omitempty"`
	FuelLevel          *float64 `json:"fuel_level,omitempty"`
	Range              *float64 `json:"range,omitempty"`
	FuelRange          *float64 `json:"fuel_range,omitempty"`
	BatteryLevel       *float64 `json:"battery_level,omitempty"`
	BatteryRange       *float64 `json:"battery_range,omitempty"`
	BatteryRangeWithAC *float64 `json:"battery_range_with_ac,omitempty"`
	ChargingStatus     *string  `json:"charging_status,omitempty"`
}

// RawLocation is the vehicle's parked position.
type RawLocation struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// RawClosure is one door/hood/trunk closed+locked pair; either flag may be
// unreported.
type RawClosure struct {
	Closed *bool `json:"closed,omitempty"`
	Locked *bool `json:"locked,omitempty"`
}

// RawDoors groups the four doors and the trunk. A nil entry means the
// upstream reported nothing for that position.
type RawDoors struct {
	DriverSeat        *RawClosure `json:"driver_seat,omitempty"`
	PassengerSeat     *RawClosure `json:"passenger_seat,omitempty"`
	DriverRearSeat    *RawClosure `json:"driver_rear_seat,omitempty"`
	PassengerRearSeat *RawClosure `json:"passenger_rear_seat,omitempty"`
	Trunk             *RawClosure `json:"trunk,omitempty"`
}

// RawWindow is one window's closed flag.
type RawWindow struct {
	Closed *bool `json:"closed,omitempty"`
}

// RawWindows groups the four windows.
type RawWindows struct {
	DriverSeat        *RawWindow `json:"driver_seat,omitempty"`
	PassengerSeat     *RawWindow `json:"passenger_seat,omitempty"`
	DriverRearSeat    *RawWindow `json:"driver_rear_seat,omitempty"`
	PassengerRearSeat *RawWindow `json:"passenger_rear_seat,omitempty"`
}

// RawLockStatus is the full closure/lock report.
type RawLockStatus struct {
	Doors               *RawDoors   `json:"doors,omitempty"`
	Windows             *RawWindows `json:"windows,omitempty"`
	Hood                *RawClosure `json:"hood,omitempty"`
	LastUpdateTimestamp *time.Time  `json:"last_update_timestamp,omitempty"`
}

// RawDaySummary is today's driving statistics.
type RawDaySummary struct {
	Distance     *float64 `json:"distance,omitempty"`      // km
	FuelConsumed *float64 `json:"fuel_consumed,omitempty"` // liters
	EVDistance   *float64 `json:"ev_distance,omitempty"`   // km
}

// RawCoordinate is one lat/lon pair.
type RawCoordinate struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// RawTripLocations holds trip endpoints; either end may be missing entirely.
type RawTripLocations struct {
	Start *RawCoordinate `json:"start,omitempty"`
	End   *RawCoordinate `json:"end,omitempty"`
}

// RawTripSummary groups the optional secondary trip metrics. Length fields
// arrive in meters.
type RawTripSummary struct {
	MaxSpeed          *float64 `json:"max_speed,omitempty"` // km/h
	Countries         []string `json:"countries,omitempty"`
	LengthOverspeed   *float64 `json:"length_overspeed,omitempty"`   // meters
	DurationOverspeed *int     `json:"duration_overspeed,omitempty"` // seconds
	LengthHighway     *float64 `json:"length_highway,omitempty"`     // meters
	DurationHighway   *int     `json:"duration_highway,omitempty"`   // seconds
	NightTrip         *bool    `json:"night_trip,omitempty"`
}

// RawScores are the driving-behavior scores, each 0-100 when present.
type RawScores struct {
	Global        *int `json:"global,omitempty"`
	Acceleration  *int `json:"acceleration,omitempty"`
	Braking       *int `json:"braking,omitempty"`
	Advice        *int `json:"advice,omitempty"`
	ConstantSpeed *int `json:"constant_speed,omitempty"`
}

// RawHDC is the hybrid drive-cycle breakdown. Only the EV pair is consumed;
// the distance arrives in meters, the time in seconds.
type RawHDC struct {
	EVDistance *float64 `json:"ev_distance,omitempty"`
	EVTime     *int     `json:"ev_time,omitempty"`
}

// RawRoutePoint is one polyline vertex.
type RawRoutePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawTrip is one upstream trip summary. Durations travel as nanoseconds on
// the wire.
type RawTrip struct {
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Locations *RawTripLocations `json:"locations,omitempty"`

	Distance            *float64      `json:"distance,omitempty"`              // km
	AverageFuelConsumed *float64      `json:"average_fuel_consumed,omitempty"` // l/100km
	Duration            time.Duration `json:"duration_ns,omitempty"`

	// Fallbacks used when the HDC block is absent.
	EVDistance *float64      `json:"ev_distance,omitempty"` // km
	EVDuration time.Duration `json:"ev_duration_ns,omitempty"`
	Score      *int          `json:"score,omitempty"`

	Summary *RawTripSummary `json:"summary,omitempty"`
	Scores  *RawScores      `json:"scores,omitempty"`
	HDC     *RawHDC         `json:"hdc,omitempty"`
	Route   []RawRoutePoint `json:"route,omitempty"`
}
