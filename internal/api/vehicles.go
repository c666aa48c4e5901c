package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"motorpool/paddock/internal/common"
	"motorpool/paddock/internal/logging"
	"motorpool/paddock/internal/models/dtos"
)

// VehiclesHandler handles GET /api/vehicles. It serves the latest cache
// artifact with the overall statistics recomputed at read time, so the
// header tiles reflect trips imported or reconciled since the last cycle.
func VehiclesHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := deps.Services.Fetcher.Cache().Read()
		if err != nil {
			common.RespondError(w, time.Now(), err, "failed to read vehicle data")
			return
		}
		if artifact == nil {
			common.RespondJSON(w, http.StatusOK, []dtos.VehicleInfo{})
			return
		}

		for i := range artifact.Vehicles {
			overall, err := deps.Services.Stats.Overall(r.Context(), artifact.Vehicles[i].VIN)
			if err != nil {
				logging.Warn("Failed to compute overall stats",
					"vin", artifact.Vehicles[i].VIN, "error", err.Error())
				continue
			}
			artifact.Vehicles[i].Statistics.Overall = overall
		}

		common.RespondJSON(w, http.StatusOK, artifact.Vehicles)
	}
}

// VehicleHistoryHandler handles GET /api/vehicles/{vin}/history
func VehicleHistoryHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vin := chi.URLParam(r, "vin")
		days := queryDays(r, 30)

		since := time.Now().UTC().AddDate(0, 0, -days)
		readings, err := deps.Repo.Readings.History(r.Context(), vin, since)
		if err != nil {
			common.RespondError(w, time.Now(), err, "failed to load readings")
			return
		}
		common.RespondJSON(w, http.StatusOK, readings)
	}
}

// DailySummaryHandler handles GET /api/vehicles/{vin}/daily_summary
func DailySummaryHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vin := chi.URLParam(r, "vin")
		days := queryDays(r, 30)

		summary, err := deps.Services.Stats.DailySummary(r.Context(), vin, days, time.Now())
		if err != nil {
			common.RespondError(w, time.Now(), err, "failed to compute daily summary")
			return
		}
		common.RespondJSON(w, http.StatusOK, summary)
	}
}

// queryDays parses a positive ?days parameter with a default.
func queryDays(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return fallback
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return fallback
	}
	return days
}
