package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"motorpool/paddock/internal/config"
)

// Geocoder resolves a coordinate pair to a display address. An empty string
// with a nil error means the provider knows nothing about the location.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// NominatimClient is a minimal reverse-geocoding client for the public
// Nominatim API. Callers are responsible for throttling; see Worker.
type NominatimClient struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

var _ Geocoder = (*NominatimClient)(nil)

// NewNominatimClient creates a client from the geocoding config section
func NewNominatimClient(cfg config.GeocodingConfig) *NominatimClient {
	return &NominatimClient{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse looks up the address for (lat, lon)
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		c.BaseURL,
		url.QueryEscape(fmt.Sprintf("%.7f", lat)),
		url.QueryEscape(fmt.Sprintf("%.7f", lon)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from geocoder", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	// Nominatim reports "Unable to geocode" inside a 200 response.
	if body.Error != "" {
		return "", nil
	}
	return body.DisplayName, nil
}
