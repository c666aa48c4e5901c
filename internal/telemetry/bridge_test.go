package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeBridge is a minimal in-process bridge service.
func fakeBridge(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})

	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer tok-123"
	}

	mux.HandleFunc("GET /vehicles", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"vin": "WVWZZZ1JZXW000001", "alias": "Daily Driver", "model_name": "Model T", "type": "hybrid"},
		})
	})
	mux.HandleFunc("GET /vehicles/WVWZZZ1JZXW000001/status", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"dashboard": map[string]any{"odometer": 12345.6, "fuel_level": 64.0},
		})
	})
	mux.HandleFunc("GET /vehicles/WVWZZZ1JZXW000001/trips", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("from") == "" || q.Get("to") == "" || q.Get("route") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"start_time": "2026-03-10T08:15:00Z",
				"end_time":   "2026-03-10T08:45:00Z",
				"locations": map[string]any{
					"start": map[string]any{"lat": 48.137, "lon": 11.575},
					"end":   map[string]any{"lat": 48.208, "lon": 11.623},
				},
				"distance":              24.6,
				"average_fuel_consumed": 5.2,
				"duration_ns":           int64(30 * time.Minute),
			},
		})
	})
	mux.HandleFunc("GET /vehicles/WVWZZZ1JZXW000001/day_summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestBridgeClient_LoginAndList(t *testing.T) {
	server := fakeBridge(t)
	ctx := context.Background()

	client := NewBridgeFactory(server.URL)("tester", "secret")
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	vehicles, err := client.Vehicles(ctx)
	if err != nil {
		t.Fatalf("Vehicles failed: %v", err)
	}
	if len(vehicles) != 1 {
		t.Fatalf("Expected 1 vehicle, got %d", len(vehicles))
	}
	if vehicles[0].VIN() != "WVWZZZ1JZXW000001" {
		t.Errorf("Unexpected VIN %q", vehicles[0].VIN())
	}
	raw := vehicles[0].Raw()
	if raw.Alias != "Daily Driver" || raw.Type != "hybrid" {
		t.Errorf("Unexpected vehicle identity: %+v", raw)
	}

	if err := client.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestBridgeClient_LoginFailure(t *testing.T) {
	server := fakeBridge(t)

	client := NewBridgeFactory(server.URL)("tester", "wrong")
	err := client.Login(context.Background())
	if err == nil {
		t.Fatal("Expected login to fail with bad credentials")
	}
	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Errorf("Expected *LoginError, got %T", err)
	}
}

func TestBridgeVehicle_UpdateKeepsIdentity(t *testing.T) {
	server := fakeBridge(t)
	ctx := context.Background()

	client := NewBridgeFactory(server.URL)("tester", "secret")
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	vehicles, err := client.Vehicles(ctx)
	if err != nil {
		t.Fatalf("Vehicles failed: %v", err)
	}

	v := vehicles[0]
	if err := v.Update(ctx); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	raw := v.Raw()
	// The status payload omits identity fields; they must survive the merge.
	if raw.VIN != "WVWZZZ1JZXW000001" || raw.Alias != "Daily Driver" || raw.Type != "hybrid" {
		t.Errorf("Expected identity preserved across update, got %+v", raw)
	}
	if raw.Dashboard == nil || raw.Dashboard.Odometer == nil || *raw.Dashboard.Odometer != 12345.6 {
		t.Errorf("Expected fresh dashboard state, got %+v", raw.Dashboard)
	}
}

func TestBridgeVehicle_Trips(t *testing.T) {
	server := fakeBridge(t)
	ctx := context.Background()

	client := NewBridgeFactory(server.URL)("tester", "secret")
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	vehicles, _ := client.Vehicles(ctx)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trips, err := vehicles[0].Trips(ctx, from, from.AddDate(0, 0, 14), false)
	if err != nil {
		t.Fatalf("Trips failed: %v", err)
	}
	if len(trips) != 1 {
		t.Fatalf("Expected 1 trip, got %d", len(trips))
	}
	trip := trips[0]
	if trip.Distance == nil || *trip.Distance != 24.6 {
		t.Errorf("Unexpected distance: %v", trip.Distance)
	}
	if trip.Duration != 30*time.Minute {
		t.Errorf("Expected 30m duration, got %v", trip.Duration)
	}
	if trip.Locations == nil || trip.Locations.Start == nil || trip.Locations.Start.Lat == nil {
		t.Fatal("Expected endpoint coordinates")
	}
}

func TestBridgeVehicle_EmptyDaySummary(t *testing.T) {
	server := fakeBridge(t)
	ctx := context.Background()

	client := NewBridgeFactory(server.URL)("tester", "secret")
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	vehicles, _ := client.Vehicles(ctx)

	summary, err := vehicles[0].CurrentDaySummary(ctx)
	if err != nil {
		t.Fatalf("CurrentDaySummary failed: %v", err)
	}
	if summary != nil {
		t.Errorf("Expected nil summary for 204 response, got %+v", summary)
	}
}

func TestBridgeClient_ExpiredSessionSurfacesAPIError(t *testing.T) {
	server := fakeBridge(t)

	// No login: every authenticated call is rejected upstream.
	client := NewBridgeFactory(server.URL)("tester", "secret")
	_, err := client.Vehicles(context.Background())
	if err == nil {
		t.Fatal("Expected unauthenticated listing to fail")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("Expected *APIError, got %T", err)
	}
}
