package dtos

// VehicleInfo is the per-vehicle record inside the cache artifact. It is
// rebuilt from live upstream data every cycle, except ServiceHistory which is
// carried over from the previous artifact when not refreshed.
type VehicleInfo struct {
	VIN         string        `json:"vin"`
	Alias       string        `json:"alias"`
	ModelName   string        `json:"model_name"`
	IsHybrid    bool          `json:"is_hybrid"`
	Dashboard   DashboardInfo `json:"dashboard"`
	Status      StatusInfo    `json:"status"`
	Statistics  Statistics    `json:"statistics"`
	LastUpdated string        `json:"last_updated,omitempty"`

	ServiceHistory any   `json:"service_history,omitempty"`
	Notifications  []any `json:"notifications,omitempty"`
}

// DashboardInfo mirrors the normalized dashboard snapshot.
type DashboardInfo struct {
	Odometer           *float64 `json:"odometer"`
	FuelLevel          *float64 `json:"fuel_level"`
	TotalRange         *float64 `json:"total_range"`
	FuelRange          *float64 `json:"fuel_range"`
	BatteryLevel       *float64 `json:"battery_level"`
	BatteryRange       *float64 `json:"battery_range"`
	BatteryRangeWithAC *float64 `json:"battery_range_with_ac"`
	ChargingStatus     *string  `json:"charging_status"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
}

// DoorState is the resolved closed/locked pair for one door.
type DoorState struct {
	Closed bool `json:"closed"`
	Locked bool `json:"locked"`
}

// WindowState is the resolved state for one window.
type WindowState struct {
	Closed bool `json:"closed"`
}

// StatusInfo aggregates lock/closure state across the vehicle.
type StatusInfo struct {
	Doors               map[string]DoorState   `json:"doors"`
	Windows             map[string]WindowState `json:"windows"`
	HoodClosed          bool                   `json:"hood_closed"`
	TrunkClosed         bool                   `json:"trunk_closed"`
	TrunkLocked         bool                   `json:"trunk_locked"`
	LastUpdateTimestamp *string                `json:"last_update_timestamp"`
}

// Statistics groups the daily tile and the lifetime aggregates.
type Statistics struct {
	Daily   *DailyStats   `json:"daily"`
	Overall *OverallStats `json:"overall"`
}

// DailyStats is today's driving summary for the live tile.
type DailyStats struct {
	Distance                  float64 `json:"distance"`
	FuelConsumed              float64 `json:"fuel_consumed"`
	CalculatedFuelConsumption float64 `json:"calculated_fuel_consumption_l_100km"`
}

// OverallStats is the all-time header tile.
type OverallStats struct {
	TotalDistanceKm      float64 `json:"total_distance_km"`
	TotalEVDistanceKm    float64 `json:"total_ev_distance_km"`
	TotalFuelL           float64 `json:"total_fuel_l"`
	TotalDurationSeconds int64   `json:"total_duration_seconds"`
	EVRatioPercent       float64 `json:"ev_ratio_percent"`
	FuelConsumptionL100  float64 `json:"fuel_consumption_l_100km"`
}

// DailySummaryEntry is one gap-free day bucket for the charts.
type DailySummaryEntry struct {
	Date                  string   `json:"date"`
	DistanceKm            float64  `json:"distance_km"`
	FuelConsumptionL100Km float64  `json:"fuel_consumption_l_100km"`
	EVDistanceKm          float64  `json:"ev_distance_km"`
	EVDurationSeconds     int64    `json:"ev_duration_seconds"`
	ScoreGlobal           *float64 `json:"score_global"`
	DurationSeconds       int64    `json:"duration_seconds"`
	AverageSpeedKmh       float64  `json:"average_speed_kmh"`
}

// CacheArtifact is the on-disk JSON snapshot consumed by the read path.
type CacheArtifact struct {
	LastUpdated string        `json:"last_updated"`
	Vehicles    []VehicleInfo `json:"vehicles"`
}
