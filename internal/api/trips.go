package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"motorpool/paddock/internal/common"
)

// tripSortColumns is the whitelist of user-selectable sort keys. The key is
// always the metric column name; the imperial mirror is substituted per the
// requested unit system.
var tripSortColumns = map[string]bool{
	"start_timestamp":          true,
	"distance_km":              true,
	"fuel_consumption_l_100km": true,
	"duration_seconds":         true,
	"score_global":             true,
	"average_speed_kmh":        true,
	"ev_distance_km":           true,
	"ev_duration_seconds":      true,
}

// TripsHandler handles GET /api/trips with unit-aware server-side sorting.
func TripsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		vin := q.Get("vin")
		if vin == "" {
			common.RespondError(w, time.Now(), nil, "missing vin parameter", http.StatusBadRequest)
			return
		}

		sortBy := q.Get("sort_by")
		if sortBy == "" {
			sortBy = "start_timestamp"
		}
		direction := q.Get("sort_direction")
		if direction != "asc" {
			direction = "desc"
		}
		unitSystem := q.Get("unit_system")
		if unitSystem == "" {
			unitSystem = deps.Store.Snapshot().UnitSystem
		}

		orderExpr, err := tripOrderExpr(sortBy, direction, unitSystem)
		if err != nil {
			common.RespondError(w, time.Now(), err, "invalid sort parameter", http.StatusBadRequest)
			return
		}

		trips, err := deps.Repo.Trips.List(r.Context(), vin, orderExpr)
		if err != nil {
			common.RespondError(w, time.Now(), err, "failed to list trips")
			return
		}
		common.RespondJSON(w, http.StatusOK, trips)
	}
}

// tripOrderExpr builds the ORDER BY expression for a whitelisted sort key.
// Consumption sorting is special: "best first" means low l/100km but high
// MPG, and zero-MPG rows (unknown consumption) always sort as worst.
func tripOrderExpr(sortBy, direction, unitSystem string) (string, error) {
	if !tripSortColumns[sortBy] {
		return "", fmt.Errorf("invalid sort_by %q", sortBy)
	}

	imperial := strings.HasPrefix(unitSystem, "imperial")
	column := sortBy
	if imperial {
		switch sortBy {
		case "distance_km":
			column = "distance_mi"
		case "average_speed_kmh":
			column = "average_speed_mph"
		case "ev_distance_km":
			column = "ev_distance_mi"
		case "fuel_consumption_l_100km":
			column = "mpg"
			if unitSystem == "imperial_uk" {
				column = "mpg_uk"
			}
		}
	}

	if sortBy == "fuel_consumption_l_100km" {
		if imperial {
			if direction == "desc" { // best first
				return fmt.Sprintf("CASE WHEN %[1]s IS NULL OR %[1]s = 0 THEN 1 ELSE 0 END, %[1]s DESC", column), nil
			}
			return fmt.Sprintf("CASE WHEN %[1]s IS NULL OR %[1]s = 0 THEN 0 ELSE 1 END, %[1]s ASC", column), nil
		}
		if direction == "desc" { // best first
			return fmt.Sprintf("CASE WHEN %[1]s IS NULL THEN 1 ELSE 0 END, %[1]s ASC", column), nil
		}
		return fmt.Sprintf("CASE WHEN %[1]s IS NULL THEN 1 ELSE 0 END, %[1]s DESC", column), nil
	}

	dir := "ASC"
	if direction == "desc" {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST", column, dir), nil
}

// GeocodeStatusHandler handles GET /api/geocode_status
func GeocodeStatusHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.Services.Stats.GeocodeStatus(r.Context())
		if err != nil {
			common.RespondError(w, time.Now(), err, "failed to compute geocode status")
			return
		}
		common.RespondJSON(w, http.StatusOK, status)
	}
}
