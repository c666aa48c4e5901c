package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"motorpool/paddock/internal/common"
	"motorpool/paddock/internal/config"
)

// settingsView is the user-editable slice of the config exposed over the
// API. Server/database wiring stays out of it.
type settingsView struct {
	PollingMode            string `json:"polling_mode"`
	PollingIntervalSeconds int    `json:"polling_interval_seconds"`
	PollingFixedTime       string `json:"polling_fixed_time"`
	APIRetries             int    `json:"api_retries"`
	APIRetryDelaySeconds   int    `json:"api_retry_delay_seconds"`
	UnitSystem             string `json:"unit_system"`
	ReverseGeocodeEnabled  bool   `json:"reverse_geocode_enabled"`
}

// GetConfigHandler handles GET /api/config
func GetConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := deps.Store.Snapshot()
		common.RespondJSON(w, http.StatusOK, settingsView{
			PollingMode:            cfg.Polling.Mode,
			PollingIntervalSeconds: cfg.Polling.IntervalSeconds,
			PollingFixedTime:       cfg.Polling.FixedTime,
			APIRetries:             cfg.Upstream.Retries,
			APIRetryDelaySeconds:   cfg.Upstream.RetryDelaySeconds,
			UnitSystem:             cfg.UnitSystem,
			ReverseGeocodeEnabled:  cfg.Geocoding.Enabled,
		})
	}
}

// UpdateConfigHandler handles POST /api/config. Accepted keys are written
// back to the yaml file and the snapshot is reloaded immediately.
func UpdateConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()

		var update config.SettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			common.RespondError(w, initTime, err, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validateSettings(update); err != nil {
			common.RespondError(w, initTime, err, "invalid settings", http.StatusBadRequest)
			return
		}

		if err := deps.Store.Save(update); err != nil {
			common.RespondError(w, initTime, err, "failed to write configuration file")
			return
		}
		common.RespondSuccess(w, initTime,
			"Settings saved successfully. Changes will be applied on the next poll.", nil)
	}
}

// validateSettings rejects values that would make the reloaded config
// invalid before anything touches the file.
func validateSettings(update config.SettingsUpdate) error {
	if update.PollingMode != nil {
		switch *update.PollingMode {
		case "interval", "fixed_time":
		default:
			return fmt.Errorf("unsupported polling mode %q", *update.PollingMode)
		}
	}
	if update.PollingIntervalSeconds != nil && *update.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}
	if update.PollingFixedTime != nil {
		if _, err := time.Parse("15:04", *update.PollingFixedTime); err != nil {
			return fmt.Errorf("fixed time must be HH:MM")
		}
	}
	if update.UnitSystem != nil {
		switch *update.UnitSystem {
		case "metric", "imperial_us", "imperial_uk":
		default:
			return fmt.Errorf("unsupported unit system %q", *update.UnitSystem)
		}
	}
	if update.UpstreamRetries != nil && *update.UpstreamRetries < 0 {
		return fmt.Errorf("api retries must not be negative")
	}
	return nil
}

// GetCredentialsHandler handles GET /api/credentials, exposing only the
// account name.
func GetCredentialsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, err := deps.Services.Creds.Username()
		if err != nil {
			username = ""
		}
		common.RespondJSON(w, http.StatusOK, map[string]string{"username": username})
	}
}

// UpdateCredentialsHandler handles POST /api/credentials
func UpdateCredentialsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()

		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			common.RespondError(w, initTime, err, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Username == "" || body.Password == "" {
			common.RespondError(w, initTime, nil, "username and password are required", http.StatusBadRequest)
			return
		}

		if err := deps.Services.Creds.Save(body.Username, body.Password); err != nil {
			common.RespondError(w, initTime, err, "failed to save credentials")
			return
		}
		common.RespondSuccess(w, initTime, "Credentials saved successfully.", nil)
	}
}
