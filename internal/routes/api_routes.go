package routes

import (
	"github.com/go-chi/chi/v5"

	"motorpool/paddock/internal/api"
)

// RegisterAPIRoutes registers all /api routes. This keeps route
// registration separate from the main router setup.
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies) {
	r.Route("/api", func(apiRouter chi.Router) {
		// Read endpoints consumed by the dashboard
		apiRouter.Get("/vehicles", api.VehiclesHandler(deps))
		apiRouter.Get("/vehicles/{vin}/history", api.VehicleHistoryHandler(deps))
		apiRouter.Get("/vehicles/{vin}/daily_summary", api.DailySummaryHandler(deps))
		apiRouter.Get("/vehicles/{vin}/service_history", api.ServiceHistoryHandler(deps))
		apiRouter.Get("/trips", api.TripsHandler(deps))
		apiRouter.Get("/geocode_status", api.GeocodeStatusHandler(deps))

		// Manual triggers
		apiRouter.Post("/force_poll", api.ForcePollHandler(deps))
		apiRouter.Post("/vehicles/{vin}/fetch_trips", api.FetchTripsHandler(deps))
		apiRouter.Post("/import/trips", api.ImportTripsHandler(deps))
		apiRouter.Post("/backfill_geocoding", api.BackfillGeocodingHandler(deps))
		apiRouter.Post("/backfill_units", api.BackfillUnitsHandler(deps))

		// Settings and credentials
		apiRouter.Get("/config", api.GetConfigHandler(deps))
		apiRouter.Post("/config", api.UpdateConfigHandler(deps))
		apiRouter.Get("/credentials", api.GetCredentialsHandler(deps))
		apiRouter.Post("/credentials", api.UpdateCredentialsHandler(deps))
	})
}
