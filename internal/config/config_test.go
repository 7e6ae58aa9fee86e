package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/coop-door/internal/hardware"
)

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Door.Poll != 100*time.Millisecond {
		t.Errorf("expected default poll, got %v", cfg.Door.Poll)
	}
	if cfg.GPIO.Pins != hardware.DefaultPins {
		t.Errorf("expected default pins, got %+v", cfg.GPIO.Pins)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coop-door.yaml")
	data := `
site:
  latitude: 52.52
  longitude: 13.40
  timezone: Europe/Berlin
schedule:
  offset: 20m
  min_open_time: "06:30"
door:
  up_speed: 0.6
  poll: 50ms
gpio:
  pins:
    light: 5
mqtt:
  broker: tcp://broker.local:1883
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Site.Latitude != 52.52 || cfg.Site.Timezone != "Europe/Berlin" {
		t.Errorf("site not decoded: %+v", cfg.Site)
	}
	if cfg.Schedule.Offset != 20*time.Minute {
		t.Errorf("offset: got %v", cfg.Schedule.Offset)
	}
	if cfg.Schedule.MinOpenTime.String() != "06:30" {
		t.Errorf("min_open_time: got %s", cfg.Schedule.MinOpenTime)
	}
	if cfg.Schedule.Window != 15*time.Minute {
		t.Errorf("window should keep its default, got %v", cfg.Schedule.Window)
	}
	if cfg.Door.UpSpeed != 0.6 || cfg.Door.DownSpeed != 0.1 {
		t.Errorf("speeds: got up=%v down=%v", cfg.Door.UpSpeed, cfg.Door.DownSpeed)
	}
	if cfg.Door.Poll != 50*time.Millisecond {
		t.Errorf("poll: got %v", cfg.Door.Poll)
	}
	if cfg.GPIO.Pins.Light != 5 || cfg.GPIO.Pins.HallTop != hardware.DefaultPins.HallTop {
		t.Errorf("pins: got %+v", cfg.GPIO.Pins)
	}
	if cfg.MQTT.ClientID != "coop-door" {
		t.Errorf("client id should keep its default, got %q", cfg.MQTT.ClientID)
	}

	sc, err := cfg.SchedulerConfig()
	if err != nil {
		t.Fatalf("scheduler config: %v", err)
	}
	if sc.Location.String() != "Europe/Berlin" || sc.Offset != 20*time.Minute {
		t.Errorf("unexpected scheduler config: %+v", sc)
	}

	dc, err := cfg.ControllerConfig()
	if err != nil {
		t.Fatalf("controller config: %v", err)
	}
	if dc.Tick != 50*time.Millisecond || dc.Window != 15*time.Minute || dc.UpSpeed != 0.6 {
		t.Errorf("unexpected controller config: %+v", dc)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("empty file should yield defaults, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("schedule:\n  min_open_time: dawn\n"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for invalid time of day")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"latitude", func(c *Config) { c.Site.Latitude = 91 }, "site.latitude"},
		{"longitude", func(c *Config) { c.Site.Longitude = -181 }, "site.longitude"},
		{"timezone", func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, "site.timezone"},
		{"up speed", func(c *Config) { c.Door.UpSpeed = 1.5 }, "door.up_speed"},
		{"down speed", func(c *Config) { c.Door.DownSpeed = -0.1 }, "door.down_speed"},
		{"poll", func(c *Config) { c.Door.Poll = 0 }, "door.poll"},
		{"window", func(c *Config) { c.Schedule.Window = 0 }, "schedule.window"},
		{"client id", func(c *Config) { c.MQTT.ClientID = "" }, "mqtt.client_id"},
		{"client cert", func(c *Config) { c.MQTT.ClientCert = "cert.pem" }, "mqtt.client_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Site.Latitude = 100
	cfg.Door.Poll = -time.Second
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"site.latitude", "door.poll"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
