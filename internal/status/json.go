package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Door          DoorJSON     `json:"door"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DoorJSON is the JSON representation of the door view.
type DoorJSON struct {
	State          string        `json:"state"`
	Direction      string        `json:"direction"`
	Position       float64       `json:"position"`
	Light          LightJSON     `json:"light"`
	CPUTemperature float64       `json:"cpu_temperature"`
	Schedule       *ScheduleJSON `json:"schedule,omitempty"`
}

// LightJSON reports the auxiliary light.
type LightJSON struct {
	On   bool   `json:"on"`
	Mode string `json:"mode"`
}

// ScheduleJSON is today's open/close window.
type ScheduleJSON struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opened         int `json:"opened"`
	Closed         int `json:"closed"`
	Obstructions   int `json:"obstructions"`
	EmergencyStops int `json:"emergency_stops"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	WindowMs    int64   `json:"window_ms"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`
	Broker      string  `json:"broker"`
	HTTPPort    string  `json:"http_port"`
}

func buildDoor(snap Snapshot) DoorJSON {
	d := snap.Door
	mode := string(d.LightMode)
	if mode == "" {
		mode = "AUTO"
	}
	door := DoorJSON{
		State:     d.State.String(),
		Direction: d.Direction.String(),
		Position:  d.Position,
		Light:     LightJSON{On: d.LightOn, Mode: mode},
		// one decimal place is plenty for a SoC sensor
		CPUTemperature: math.Round(d.CPUTemperature*10) / 10,
	}
	if !snap.Updated {
		door.Position = 0.5
	}
	if d.Schedule != nil {
		door.Schedule = &ScheduleJSON{Open: d.Schedule.Open, Close: d.Schedule.Close}
	}
	return door
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Door:          buildDoor(snap),
		Ready:         snap.Updated,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Opened:         snap.Counts.Opened,
			Closed:         snap.Counts.Closed,
			Obstructions:   snap.Counts.Obstructions,
			EmergencyStops: snap.Counts.EmergencyStops,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			WindowMs:    snap.Config.WindowMs,
			Latitude:    snap.Config.Latitude,
			Longitude:   snap.Config.Longitude,
			Timezone:    snap.Config.Timezone,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
