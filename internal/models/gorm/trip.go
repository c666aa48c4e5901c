package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Trip is a single completed drive. At most one row exists per
// (vin, start_timestamp); that pair is the reconciliation key.
//
// The address columns start out as the pending-geocode sentinel and are owned
// by the geocoding worker once written; reconciliation never touches them.
type Trip struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	VIN            string    `gorm:"column:vin;index:idx_trips_vin_start,unique;not null" json:"vin"`
	StartTimestamp time.Time `gorm:"column:start_timestamp;index:idx_trips_vin_start,unique;not null" json:"start_timestamp"`
	EndTimestamp   time.Time `gorm:"column:end_timestamp" json:"end_timestamp"`

	StartAddress string   `gorm:"column:start_address" json:"start_address"`
	EndAddress   string   `gorm:"column:end_address" json:"end_address"`
	StartLat     *float64 `gorm:"column:start_lat" json:"start_lat"`
	StartLon     *float64 `gorm:"column:start_lon" json:"start_lon"`
	EndLat       *float64 `gorm:"column:end_lat" json:"end_lat"`
	EndLon       *float64 `gorm:"column:end_lon" json:"end_lon"`

	DistanceKm            float64  `gorm:"column:distance_km" json:"distance_km"`
	FuelConsumptionL100Km float64  `gorm:"column:fuel_consumption_l_100km" json:"fuel_consumption_l_100km"`
	DurationSeconds       int      `gorm:"column:duration_seconds" json:"duration_seconds"`
	AverageSpeedKmh       float64  `gorm:"column:average_speed_kmh" json:"average_speed_kmh"`
	MaxSpeedKmh           *float64 `gorm:"column:max_speed_kmh" json:"max_speed_kmh"`

	EVDistanceKm      float64 `gorm:"column:ev_distance_km" json:"ev_distance_km"`
	EVDurationSeconds int     `gorm:"column:ev_duration_seconds" json:"ev_duration_seconds"`

	ScoreAcceleration  *int `gorm:"column:score_acceleration" json:"score_acceleration"`
	ScoreBraking       *int `gorm:"column:score_braking" json:"score_braking"`
	ScoreAdvice        *int `gorm:"column:score_advice" json:"score_advice"`
	ScoreConstantSpeed *int `gorm:"column:score_constant_speed" json:"score_constant_speed"`
	ScoreGlobal        *int `gorm:"column:score_global" json:"score_global"`

	LengthOverspeedKm        *float64   `gorm:"column:length_overspeed_km" json:"length_overspeed_km"`
	DurationOverspeedSeconds *int       `gorm:"column:duration_overspeed_seconds" json:"duration_overspeed_seconds"`
	LengthHighwayKm          *float64   `gorm:"column:length_highway_km" json:"length_highway_km"`
	DurationHighwaySeconds   *int       `gorm:"column:duration_highway_seconds" json:"duration_highway_seconds"`
	NightTrip                *bool      `gorm:"column:night_trip" json:"night_trip"`
	Countries                StringList `gorm:"column:countries;type:text" json:"countries"`

	Route RoutePoints `gorm:"column:route;type:text" json:"route,omitempty"`

	// Pre-computed imperial mirrors for the read path.
	DistanceMi      float64  `gorm:"column:distance_mi" json:"distance_mi"`
	Mpg             float64  `gorm:"column:mpg" json:"mpg"`
	MpgUK           *float64 `gorm:"column:mpg_uk" json:"mpg_uk"`
	AverageSpeedMph float64  `gorm:"column:average_speed_mph" json:"average_speed_mph"`
	EVDistanceMi    float64  `gorm:"column:ev_distance_mi" json:"ev_distance_mi"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName specifies the table name for GORM
func (Trip) TableName() string {
	return "trips"
}

// RoutePoint is one vertex of an optional trip polyline.
type RoutePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RoutePoints stores a polyline as a JSON text column, portable across
// sqlite and postgres.
type RoutePoints []RoutePoint

// Scan implements the sql.Scanner interface for RoutePoints
func (r *RoutePoints) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// Value implements the driver.Valuer interface for RoutePoints
func (r RoutePoints) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// StringList stores a list of strings (per-trip country codes) as JSON text.
type StringList []string

// Scan implements the sql.Scanner interface for StringList
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for StringList
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
