// Package telemetry defines the contract with the manufacturer telemetry
// API. The real client is an external collaborator; everything downstream
// depends only on this interface and the normalized record types.
package telemetry

import (
	"context"
	"time"
)

// Client is one authenticated session against the manufacturer API.
// Login must be called before any other method; Close must always be called
// once the session is finished, regardless of outcome.
type Client interface {
	Login(ctx context.Context) error
	Vehicles(ctx context.Context) ([]Vehicle, error)
	Close(ctx context.Context) error
}

// Vehicle exposes the per-vehicle operations of an established session.
type Vehicle interface {
	// VIN is stable and available before Update.
	VIN() string

	// Update refreshes the live dashboard and lock status. Failures are
	// retryable *APIError values unless the session itself died.
	Update(ctx context.Context) error

	// Raw returns the last state fetched by Update.
	Raw() RawVehicle

	// Trips lists trip summaries whose start time falls inside [from, to].
	Trips(ctx context.Context, from, to time.Time, fullRoute bool) ([]RawTrip, error)

	// CurrentDaySummary returns today's driving statistics, or nil when the
	// upstream has none.
	CurrentDaySummary(ctx context.Context) (*RawDaySummary, error)

	// ServiceHistory returns the raw service history payload.
	ServiceHistory(ctx context.Context) (any, error)
}

// Factory builds a fresh client for one fetch cycle. Sessions are not
// reused across cycles.
type Factory func(username, password string) Client

// APIError wraps a transient upstream failure. Callers retry these with
// backoff up to the configured retry limit.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string {
	return "telemetry api error during " + e.Op + ": " + e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }

// LoginError means the session could not be established or was rejected.
// It aborts the whole fetch cycle.
type LoginError struct {
	Err error
}

func (e *LoginError) Error() string {
	return "telemetry login failed: " + e.Err.Error()
}

func (e *LoginError) Unwrap() error { return e.Err }
