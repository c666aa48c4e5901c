// Package stats derives aggregate trip statistics at read time. Nothing
// here is cached; both queries run against the live trips table.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"motorpool/paddock/internal/constants"
	"motorpool/paddock/internal/models/dtos"
)

// Service answers the all-time header tile and the day-bucketed chart
// series.
type Service struct {
	db *sqlx.DB
}

// NewService creates a new statistics service on the read-side connection
func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type overallRow struct {
	TotalDistance        float64 `db:"total_distance"`
	TotalEVDistance      float64 `db:"total_ev_distance"`
	TotalFuel            float64 `db:"total_fuel"`
	TotalDurationSeconds int64   `db:"total_duration_seconds"`
}

// Overall computes the lifetime aggregates for one vehicle. Returns nil
// when the vehicle has no recorded distance yet.
func (s *Service) Overall(ctx context.Context, vin string) (*dtos.OverallStats, error) {
	var row overallRow
	query := s.db.Rebind(constants.OverallTripStats)
	if err := s.db.GetContext(ctx, &row, query, vin); err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	if row.TotalDistance <= 0 {
		return nil, nil
	}

	out := &dtos.OverallStats{
		TotalDistanceKm:      round2(row.TotalDistance),
		TotalEVDistanceKm:    math.Round(row.TotalEVDistance),
		TotalFuelL:           round2(row.TotalFuel),
		TotalDurationSeconds: row.TotalDurationSeconds,
		EVRatioPercent:       round1(row.TotalEVDistance / row.TotalDistance * 100),
	}
	if row.TotalFuel > 0 {
		out.FuelConsumptionL100 = round2(row.TotalFuel / row.TotalDistance * 100)
	}
	return out, nil
}

type dailyRow struct {
	Day           string          `db:"day"`
	Distance      float64         `db:"distance"`
	Fuel          float64         `db:"fuel"`
	EVDistance    float64         `db:"ev_distance"`
	EVDuration    int64           `db:"ev_duration"`
	AvgScore      sql.NullFloat64 `db:"avg_score"`
	TotalDuration int64           `db:"total_duration"`
}

// DailySummary returns one entry per calendar day in [now-days, now],
// oldest first. Days without trips carry zero values, so the series is
// gap-free regardless of driving activity.
func (s *Service) DailySummary(ctx context.Context, vin string, days int, now time.Time) ([]dtos.DailySummaryEntry, error) {
	since := now.UTC().AddDate(0, 0, -days)

	query := fmt.Sprintf(constants.DailyTripStats, s.dateExpr())
	query = s.db.Rebind(query)

	var rows []dailyRow
	if err := s.db.SelectContext(ctx, &rows, query, vin, since); err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}

	// Materialize every day of the window first, then overlay actuals.
	byDay := make(map[string]dailyRow)
	startDate := since.Truncate(24 * time.Hour)
	endDate := now.UTC().Truncate(24 * time.Hour)
	numDays := int(endDate.Sub(startDate).Hours()/24) + 1
	if numDays < 0 {
		numDays = 0
	}

	order := make([]string, 0, numDays)
	for i := 0; i < numDays; i++ {
		day := startDate.AddDate(0, 0, i).Format("2006-01-02")
		order = append(order, day)
		byDay[day] = dailyRow{Day: day}
	}

	for _, r := range rows {
		day := r.Day
		if len(day) > 10 {
			day = day[:10]
		}
		if _, ok := byDay[day]; ok {
			r.Day = day
			byDay[day] = r
		}
	}

	out := make([]dtos.DailySummaryEntry, 0, len(order))
	for _, day := range order {
		r := byDay[day]
		entry := dtos.DailySummaryEntry{
			Date:              day,
			DistanceKm:        round2(r.Distance),
			EVDistanceKm:      round2(r.EVDistance),
			EVDurationSeconds: r.EVDuration,
			DurationSeconds:   r.TotalDuration,
		}
		if r.Fuel > 0 && r.Distance > 0 {
			entry.FuelConsumptionL100Km = round2(r.Fuel / r.Distance * 100)
		}
		if r.TotalDuration > 0 && r.Distance > 0 {
			entry.AverageSpeedKmh = round2(r.Distance / (float64(r.TotalDuration) / 3600))
		}
		if r.AvgScore.Valid {
			score := math.Round(r.AvgScore.Float64)
			entry.ScoreGlobal = &score
		}
		out = append(out, entry)
	}

	return out, nil
}

// GeocodeStatus counts trips still awaiting reverse geocoding.
func (s *Service) GeocodeStatus(ctx context.Context) (*dtos.GeocodeStatus, error) {
	var row struct {
		Pending int `db:"pending"`
		Total   int `db:"total"`
	}
	query := s.db.Rebind(constants.GeocodeStatus)
	if err := s.db.GetContext(ctx, &row, query, constants.GeocodePending); err != nil {
		return nil, fmt.Errorf("failed to query geocode status: %w", err)
	}
	return &dtos.GeocodeStatus{Pending: row.Pending, Total: row.Total}, nil
}

// dateExpr yields a per-driver expression producing a YYYY-MM-DD string for
// the trip's start day.
func (s *Service) dateExpr() string {
	if s.db.DriverName() == "postgres" {
		return "to_char(start_timestamp, 'YYYY-MM-DD')"
	}
	return "DATE(start_timestamp)"
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
