// Package config loads the coop-door YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/coop-door/internal/door"
	"github.com/sweeney/coop-door/internal/hardware"
	"github.com/sweeney/coop-door/internal/logic"
	"github.com/sweeney/coop-door/internal/schedule"
)

// Config is the top-level configuration.
type Config struct {
	// Site location and schedule
	Site     SiteConfig     `yaml:"site"`
	Schedule ScheduleConfig `yaml:"schedule"`

	// Door control loop
	Door DoorConfig `yaml:"door"`

	// Hardware bindings
	GPIO   GPIOConfig   `yaml:"gpio"`
	Camera CameraConfig `yaml:"camera"`

	// Outer surfaces
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTP      string        `yaml:"http"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// SiteConfig holds the coop coordinates.
type SiteConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	// Timezone is an IANA zone name. Empty means the host's local zone.
	Timezone string `yaml:"timezone"`
}

// ScheduleConfig holds the open/close window settings.
type ScheduleConfig struct {
	Offset      time.Duration      `yaml:"offset"`
	MinOpenTime schedule.TimeOfDay `yaml:"min_open_time"`
	Window      time.Duration      `yaml:"window"`
}

// DoorConfig holds the motor and control loop settings.
type DoorConfig struct {
	UpSpeed              float64       `yaml:"up_speed"`
	DownSpeed            float64       `yaml:"down_speed"`
	Poll                 time.Duration `yaml:"poll"`
	Debounce             time.Duration `yaml:"debounce"`
	SnapshotSamples      int           `yaml:"snapshot_samples"`
	ReverseOnObstruction bool          `yaml:"reverse_on_obstruction"`
}

// GPIOConfig selects the GPIO chip and pin mapping.
type GPIOConfig struct {
	Chip        string        `yaml:"chip"`
	Pins        hardware.Pins `yaml:"pins"`
	ThermalPath string        `yaml:"thermal_path"`
}

// CameraConfig points at a still-image endpoint. An empty URL disables
// snapshots.
type CameraConfig struct {
	SnapshotURL string        `yaml:"snapshot_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MQTTConfig holds broker connection settings. Setting a CA or client
// certificate switches to TLS.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
	BufferSize int    `yaml:"buffer_size"`
}

// Defaults returns a configuration that runs the coop with no file.
func Defaults() Config {
	d := door.DefaultConfig()
	return Config{
		Site: SiteConfig{
			Latitude:  49.0026,
			Longitude: 8.5221,
		},
		Schedule: ScheduleConfig{
			MinOpenTime: schedule.TimeOfDay(6 * time.Hour),
			Window:      d.Window,
		},
		Door: DoorConfig{
			UpSpeed:              float64(d.UpSpeed),
			DownSpeed:            float64(d.DownSpeed),
			Poll:                 d.Tick,
			Debounce:             d.Debounce,
			SnapshotSamples:      d.SnapshotSamples,
			ReverseOnObstruction: d.ReverseOnObstruction,
		},
		GPIO: GPIOConfig{
			Chip:        "gpiochip0",
			Pins:        hardware.DefaultPins,
			ThermalPath: hardware.DefaultThermalPath,
		},
		Camera: CameraConfig{
			Timeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			ClientID:   "coop-door",
			BufferSize: 1000,
		},
		HTTP:      ":80",
		Heartbeat: 15 * time.Minute,
	}
}

// Load reads path on top of Defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Decode decodes YAML from r into cfg. Fields absent from r keep their
// current values.
func Decode(r io.Reader, cfg *Config) error {
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if math.IsNaN(c.Site.Latitude) || c.Site.Latitude < -90 || c.Site.Latitude > 90 {
		errs = append(errs, fmt.Errorf("site.latitude %v out of range [-90, 90]", c.Site.Latitude))
	}
	if math.IsNaN(c.Site.Longitude) || c.Site.Longitude < -180 || c.Site.Longitude > 180 {
		errs = append(errs, fmt.Errorf("site.longitude %v out of range [-180, 180]", c.Site.Longitude))
	}
	if _, err := c.location(); err != nil {
		errs = append(errs, err)
	}
	if !logic.Speed(c.Door.UpSpeed).Valid() {
		errs = append(errs, fmt.Errorf("door.up_speed %v out of range [0, 1]", c.Door.UpSpeed))
	}
	if !logic.Speed(c.Door.DownSpeed).Valid() {
		errs = append(errs, fmt.Errorf("door.down_speed %v out of range [0, 1]", c.Door.DownSpeed))
	}
	if c.Door.Poll <= 0 {
		errs = append(errs, fmt.Errorf("door.poll must be positive, got %v", c.Door.Poll))
	}
	if c.Door.Debounce < 0 {
		errs = append(errs, fmt.Errorf("door.debounce must not be negative, got %v", c.Door.Debounce))
	}
	if c.Schedule.Window <= 0 {
		errs = append(errs, fmt.Errorf("schedule.window must be positive, got %v", c.Schedule.Window))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		errs = append(errs, errors.New("mqtt.client_id missing"))
	}
	if (c.MQTT.ClientCert == "") != (c.MQTT.ClientKey == "") {
		errs = append(errs, errors.New("mqtt.client_cert and mqtt.client_key must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) location() (*time.Location, error) {
	if c.Site.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("site.timezone: %w", err)
	}
	return loc, nil
}

// SchedulerConfig returns the scheduler settings.
func (c Config) SchedulerConfig() (schedule.Config, error) {
	loc, err := c.location()
	if err != nil {
		return schedule.Config{}, err
	}
	return schedule.Config{
		Latitude:    c.Site.Latitude,
		Longitude:   c.Site.Longitude,
		Offset:      c.Schedule.Offset,
		MinOpenTime: c.Schedule.MinOpenTime,
		Location:    loc,
	}, nil
}

// ControllerConfig returns the door controller settings.
func (c Config) ControllerConfig() (door.Config, error) {
	loc, err := c.location()
	if err != nil {
		return door.Config{}, err
	}
	return door.Config{
		UpSpeed:              logic.Speed(c.Door.UpSpeed),
		DownSpeed:            logic.Speed(c.Door.DownSpeed),
		Tick:                 c.Door.Poll,
		Window:               c.Schedule.Window,
		SnapshotSamples:      c.Door.SnapshotSamples,
		ReverseOnObstruction: c.Door.ReverseOnObstruction,
		Debounce:             c.Door.Debounce,
		Location:             loc,
	}, nil
}
