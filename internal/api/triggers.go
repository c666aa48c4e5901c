package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"motorpool/paddock/internal/common"
	"motorpool/paddock/internal/logging"
)

// ForcePollHandler handles POST /api/force_poll. The cycle runs to
// completion before the response is written; overlapping triggers queue up
// behind the fetcher's own serialization.
func ForcePollHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		logging.Info("Manual poll triggered via API")

		if err := deps.Services.Fetcher.RunCycle(r.Context()); err != nil {
			common.RespondError(w, initTime, err, "data poll failed")
			return
		}
		common.RespondSuccess(w, initTime, "Data poll completed successfully.", nil)
	}
}

// FetchTripsHandler handles POST /api/vehicles/{vin}/fetch_trips
func FetchTripsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		vin := chi.URLParam(r, "vin")

		var body struct {
			Period string `json:"period"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Period == "" {
			common.RespondError(w, initTime, nil, "missing 'period' in request body", http.StatusBadRequest)
			return
		}

		res, err := deps.Services.Fetcher.BackfillTrips(r.Context(), vin, body.Period)
		if err != nil {
			common.RespondError(w, initTime, err, "trip fetch failed")
			return
		}
		common.RespondSuccess(w, initTime,
			fmt.Sprintf("Fetched trips for period %q.", body.Period), res)
	}
}

// ServiceHistoryHandler handles GET /api/vehicles/{vin}/service_history
func ServiceHistoryHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vin := chi.URLParam(r, "vin")

		history, err := deps.Services.Fetcher.FetchServiceHistory(r.Context(), vin)
		if err != nil {
			common.RespondError(w, time.Now(), err, "failed to fetch service history")
			return
		}
		common.RespondJSON(w, http.StatusOK, history)
	}
}

// BackfillGeocodingHandler handles POST /api/backfill_geocoding
func BackfillGeocodingHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()

		queued, err := deps.Services.Geocoder.QueuePending(r.Context())
		if err != nil {
			common.RespondError(w, initTime, err, "geocoding backfill failed")
			return
		}
		common.RespondSuccess(w, initTime,
			fmt.Sprintf("Queued %d trips for geocoding.", queued),
			map[string]int{"queued": queued})
	}
}

// BackfillUnitsHandler handles POST /api/backfill_units
func BackfillUnitsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()

		updated, err := deps.Services.Fetcher.BackfillUnits(r.Context())
		if err != nil {
			common.RespondError(w, initTime, err, "unit backfill failed")
			return
		}
		if updated == 0 {
			common.RespondSuccess(w, initTime, "No trips needed backfilling. All data is up to date.", nil)
			return
		}
		common.RespondSuccess(w, initTime,
			fmt.Sprintf("Successfully backfilled imperial units for %d trips.", updated),
			map[string]int{"updated": updated})
	}
}
