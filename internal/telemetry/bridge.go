package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// bridgeClient talks to a telemetry bridge: a sidecar service that wraps the
// manufacturer account API and exposes it as plain JSON. One client is one
// session; the token obtained at login authenticates every later call.
type bridgeClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	token    string
}

// NewBridgeFactory returns a Factory producing sessions against the bridge
// at baseURL.
func NewBridgeFactory(baseURL string) Factory {
	return func(username, password string) Client {
		return &bridgeClient{
			baseURL:  strings.TrimRight(baseURL, "/"),
			username: username,
			password: password,
			http:     &http.Client{Timeout: 30 * time.Second},
		}
	}
}

// Login establishes the session.
func (c *bridgeClient) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return &LoginError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return &LoginError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &LoginError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &LoginError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &LoginError{Err: err}
	}
	c.token = out.Token
	return nil
}

// Vehicles lists the account's vehicles.
func (c *bridgeClient) Vehicles(ctx context.Context) ([]Vehicle, error) {
	var raws []RawVehicle
	if err := c.get(ctx, "/vehicles", nil, &raws); err != nil {
		return nil, &APIError{Op: "list vehicles", Err: err}
	}

	vehicles := make([]Vehicle, len(raws))
	for i, raw := range raws {
		vehicles[i] = &bridgeVehicle{client: c, raw: raw}
	}
	return vehicles, nil
}

// Close ends the session. A failed logout is not worth surfacing.
func (c *bridgeClient) Close(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	resp.Body.Close()
	c.token = ""
	return nil
}

// get performs an authenticated GET and decodes the JSON body into out.
// A 204 leaves out untouched.
func (c *bridgeClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNoContent:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("session rejected with status %d", resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// bridgeVehicle is one vehicle within a bridge session.
type bridgeVehicle struct {
	client *bridgeClient
	raw    RawVehicle
}

func (v *bridgeVehicle) VIN() string {
	return v.raw.VIN
}

// Update refreshes the live state.
func (v *bridgeVehicle) Update(ctx context.Context) error {
	var fresh RawVehicle
	if err := v.client.get(ctx, "/vehicles/"+url.PathEscape(v.raw.VIN)+"/status", nil, &fresh); err != nil {
		return &APIError{Op: "update vehicle", Err: err}
	}
	// The status payload may omit the identity fields.
	fresh.VIN = v.raw.VIN
	if fresh.Alias == "" {
		fresh.Alias = v.raw.Alias
	}
	if fresh.ModelName == "" {
		fresh.ModelName = v.raw.ModelName
	}
	if fresh.Type == "" {
		fresh.Type = v.raw.Type
	}
	v.raw = fresh
	return nil
}

func (v *bridgeVehicle) Raw() RawVehicle {
	return v.raw
}

// Trips lists trip summaries in [from, to].
func (v *bridgeVehicle) Trips(ctx context.Context, from, to time.Time, fullRoute bool) ([]RawTrip, error) {
	query := url.Values{}
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))
	query.Set("route", strconv.FormatBool(fullRoute))

	var trips []RawTrip
	if err := v.client.get(ctx, "/vehicles/"+url.PathEscape(v.raw.VIN)+"/trips", query, &trips); err != nil {
		return nil, &APIError{Op: "fetch trips", Err: err}
	}
	return trips, nil
}

// CurrentDaySummary returns today's statistics, nil when the upstream has
// none.
func (v *bridgeVehicle) CurrentDaySummary(ctx context.Context) (*RawDaySummary, error) {
	var summary *RawDaySummary
	if err := v.client.get(ctx, "/vehicles/"+url.PathEscape(v.raw.VIN)+"/day_summary", nil, &summary); err != nil {
		return nil, &APIError{Op: "fetch day summary", Err: err}
	}
	return summary, nil
}

// ServiceHistory returns the raw service records payload.
func (v *bridgeVehicle) ServiceHistory(ctx context.Context) (any, error) {
	var history any
	if err := v.client.get(ctx, "/vehicles/"+url.PathEscape(v.raw.VIN)+"/service_history", nil, &history); err != nil {
		return nil, &APIError{Op: "fetch service history", Err: err}
	}
	return history, nil
}
