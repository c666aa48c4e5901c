// Package mqtt republishes per-vehicle state onto a home-automation broker.
// Everything here is best-effort: a dead broker never fails a fetch cycle.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/constants"
	"motorpool/paddock/internal/logging"
	"motorpool/paddock/internal/metrics"
	"motorpool/paddock/internal/models/dtos"
)

// Publisher pushes vehicle state and Home Assistant discovery payloads.
// Connections are established lazily on the first publish after enablement.
type Publisher struct {
	store   *config.Store
	metrics *metrics.MetricsRegistry

	mu         sync.Mutex
	client     pahomqtt.Client
	discovered map[string]bool
}

// NewPublisher creates an MQTT publisher
func NewPublisher(store *config.Store, registry *metrics.MetricsRegistry) *Publisher {
	return &Publisher{
		store:      store,
		metrics:    registry,
		discovered: make(map[string]bool),
	}
}

// PublishVehicle publishes the discovery configs (once per VIN) and the
// current state for one vehicle. Errors are logged, counted and swallowed.
func (p *Publisher) PublishVehicle(info dtos.VehicleInfo) {
	cfg := p.store.Snapshot()
	if !cfg.MQTT.Enabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(cfg); err != nil {
		logging.Warn("MQTT connect failed", "host", cfg.MQTT.Host, "error", err.Error())
		p.metrics.MQTTPublishesTotal.WithLabelValues("failed").Inc()
		return
	}

	if !p.discovered[info.VIN] {
		if err := p.publishDiscoveryLocked(cfg, info); err != nil {
			logging.Warn("MQTT discovery publish failed", "vin", info.VIN, "error", err.Error())
			p.metrics.MQTTPublishesTotal.WithLabelValues("failed").Inc()
			return
		}
		p.discovered[info.VIN] = true
	}

	if err := p.publishStateLocked(cfg, info); err != nil {
		logging.Warn("MQTT state publish failed", "vin", info.VIN, "error", err.Error())
		p.metrics.MQTTPublishesTotal.WithLabelValues("failed").Inc()
		return
	}
	p.metrics.MQTTPublishesTotal.WithLabelValues("ok").Inc()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.client = nil
}

func (p *Publisher) connectLocked(cfg *config.Config) error {
	if p.client != nil && p.client.IsConnected() {
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)).
		SetClientID("paddock").
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("connect timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}
	p.client = client
	return nil
}

func baseTopic(cfg *config.Config, vin string) string {
	return strings.ReplaceAll(cfg.MQTT.BaseTopic, "{vin}", vin)
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type discoveryConfig struct {
	Name              string          `json:"name"`
	StateTopic        string          `json:"state_topic"`
	UniqueID          string          `json:"unique_id"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	Device            discoveryDevice `json:"device"`
}

// publishDiscoveryLocked announces the sensors for one vehicle so Home
// Assistant creates the entities automatically. Payloads are retained.
func (p *Publisher) publishDiscoveryLocked(cfg *config.Config, info dtos.VehicleInfo) error {
	base := baseTopic(cfg, info.VIN)
	device := discoveryDevice{
		Identifiers: []string{info.VIN},
		Name:        displayName(info),
		Model:       info.ModelName,
	}

	distanceUnit, consumptionUnit := "km", "L/100km"
	if cfg.IsImperial() {
		distanceUnit = "mi"
		consumptionUnit = "mpg"
	}

	sensors := []struct {
		component string
		key       string
		config    discoveryConfig
	}{
		{"sensor", "odometer", discoveryConfig{
			Name:              "Odometer",
			StateTopic:        base + "/odometer",
			UniqueID:          "paddock_" + info.VIN + "_odometer",
			UnitOfMeasurement: distanceUnit,
			DeviceClass:       "distance",
			Device:            device,
		}},
		{"sensor", "fuel_level", discoveryConfig{
			Name:              "Fuel level",
			StateTopic:        base + "/fuel_level",
			UniqueID:          "paddock_" + info.VIN + "_fuel_level",
			UnitOfMeasurement: "%",
			Device:            device,
		}},
		{"sensor", "fuel_consumption", discoveryConfig{
			Name:              "Fuel consumption",
			StateTopic:        base + "/fuel_consumption",
			UniqueID:          "paddock_" + info.VIN + "_fuel_consumption",
			UnitOfMeasurement: consumptionUnit,
			Device:            device,
		}},
		{"binary_sensor", "locked", discoveryConfig{
			Name:        "Lock status",
			StateTopic:  base + "/locked",
			UniqueID:    "paddock_" + info.VIN + "_locked",
			DeviceClass: "lock",
			Device:      device,
		}},
	}

	for _, s := range sensors {
		topic := fmt.Sprintf("%s/%s/paddock_%s/%s/config",
			cfg.MQTT.DiscoveryPrefix, s.component, info.VIN, s.key)
		payload, err := json.Marshal(s.config)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery config: %w", err)
		}
		if err := p.publishLocked(topic, payload, true); err != nil {
			return err
		}
	}
	return nil
}

// publishStateLocked writes the current sensor values.
func (p *Publisher) publishStateLocked(cfg *config.Config, info dtos.VehicleInfo) error {
	base := baseTopic(cfg, info.VIN)

	if info.Dashboard.Odometer != nil {
		odometer := *info.Dashboard.Odometer
		if cfg.IsImperial() {
			odometer *= constants.KmToMi
		}
		if err := p.publishLocked(base+"/odometer", []byte(fmt.Sprintf("%.1f", odometer)), false); err != nil {
			return err
		}
	}

	if info.Dashboard.FuelLevel != nil {
		if err := p.publishLocked(base+"/fuel_level", []byte(fmt.Sprintf("%.0f", *info.Dashboard.FuelLevel)), false); err != nil {
			return err
		}
	}

	if info.Statistics.Daily != nil {
		consumption := info.Statistics.Daily.CalculatedFuelConsumption
		if cfg.IsImperial() && consumption > 0 {
			factor := constants.MpgUSFactor
			if cfg.UnitSystem == "imperial_uk" {
				factor = constants.MpgUKFactor
			}
			consumption = factor / consumption
		}
		if err := p.publishLocked(base+"/fuel_consumption", []byte(fmt.Sprintf("%.2f", consumption)), false); err != nil {
			return err
		}
	}

	// Home Assistant lock device class: ON means unlocked.
	state := "OFF"
	for _, door := range info.Status.Doors {
		if !door.Locked {
			state = "ON"
			break
		}
	}
	return p.publishLocked(base+"/locked", []byte(state), false)
}

func (p *Publisher) publishLocked(topic string, payload []byte, retained bool) error {
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func displayName(info dtos.VehicleInfo) string {
	if info.Alias != "" {
		return info.Alias
	}
	return info.VIN
}
