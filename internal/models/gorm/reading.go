package gorm

import "time"

// Reading is a point-in-time odometer/fuel snapshot, persisted once per poll
// cycle when the odometer has advanced. Append-only.
type Reading struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;index;autoCreateTime" json:"timestamp"`
	VIN       string    `gorm:"column:vin;index;not null" json:"vin"`

	Odometer          float64  `gorm:"column:odometer" json:"odometer"`
	FuelLevel         *float64 `gorm:"column:fuel_level" json:"fuel_level"`
	TotalRange        *float64 `gorm:"column:total_range" json:"total_range"`
	DailyDistance     *float64 `gorm:"column:daily_distance" json:"daily_distance"`
	DailyFuelConsumed *float64 `gorm:"column:daily_fuel_consumed" json:"daily_fuel_consumed"`
}

// TableName specifies the table name for GORM
func (Reading) TableName() string {
	return "readings"
}
