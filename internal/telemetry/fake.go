package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FakeClient is an in-memory Client used by tests and by the dry-run mode.
// Behavior is scripted per field; the zero value is a logged-out client with
// no vehicles.
type FakeClient struct {
	mu sync.Mutex

	FailLogin    bool
	VehiclesList []*FakeVehicle

	LoginCalls int
	CloseCalls int
	loggedIn   bool
}

var _ Client = (*FakeClient)(nil)

func (c *FakeClient) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LoginCalls++
	if c.FailLogin {
		return &LoginError{Err: errors.New("invalid credentials")}
	}
	c.loggedIn = true
	return nil
}

func (c *FakeClient) Vehicles(ctx context.Context) ([]Vehicle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		return nil, &LoginError{Err: errors.New("not logged in")}
	}
	out := make([]Vehicle, len(c.VehiclesList))
	for i, v := range c.VehiclesList {
		out[i] = v
	}
	return out, nil
}

func (c *FakeClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCalls++
	c.loggedIn = false
	return nil
}

// FakeVehicle scripts one vehicle's responses.
type FakeVehicle struct {
	mu sync.Mutex

	Vehicle     RawVehicle
	TripList    []RawTrip
	DaySummary  *RawDaySummary
	History     any
	UpdateFails int // first N Update calls fail with *APIError

	UpdateCalls int
	TripCalls   int
}

var _ Vehicle = (*FakeVehicle)(nil)

func (v *FakeVehicle) VIN() string { return v.Vehicle.VIN }

func (v *FakeVehicle) Update(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.UpdateCalls++
	if v.UpdateCalls <= v.UpdateFails {
		return &APIError{Op: "update", Err: errors.New("upstream unavailable")}
	}
	return nil
}

func (v *FakeVehicle) Raw() RawVehicle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Vehicle
}

func (v *FakeVehicle) Trips(ctx context.Context, from, to time.Time, fullRoute bool) ([]RawTrip, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.TripCalls++
	var out []RawTrip
	for _, t := range v.TripList {
		day := t.StartTime.UTC()
		if !day.Before(from) && !day.After(to.Add(24*time.Hour)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (v *FakeVehicle) CurrentDaySummary(ctx context.Context) (*RawDaySummary, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.DaySummary, nil
}

func (v *FakeVehicle) ServiceHistory(ctx context.Context) (any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.History, nil
}
