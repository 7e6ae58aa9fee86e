// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/coop-door/internal/logic"
)

// Topic is the MQTT topic for door events.
const Topic = "coop/door/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "coop/door/system"

// TopicCommand is the MQTT topic remote commands are received on.
const TopicCommand = "coop/door/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a door event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event DoorEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Discard is a Publisher that drops every event. It stands in when no broker
// is configured.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(DoorEvent) error         { return nil }
func (discard) PublishSystem(SystemEvent) error { return nil }
func (discard) Close() error                    { return nil }

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// DoorEvent is the arrival of the door at a travel limit.
type DoorEvent struct {
	Timestamp time.Time
	State     logic.DoorState
	Snapshot  string // data URI, may be empty
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the door event details.
type DoorPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
	Snapshot  string `json:"snapshot,omitempty"`
}

// FormatPayload creates the JSON payload for a door event.
func FormatPayload(event DoorEvent) ([]byte, error) {
	payload := Payload{
		Door: DoorPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     "DOOR_" + event.State.String(),
			State:     event.State.String(),
			Snapshot:  event.Snapshot,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Notifier adapts a Publisher to the door controller's notification port.
type Notifier struct {
	pub Publisher
	now func() time.Time
}

// NewNotifier creates a Notifier that stamps events with the wall clock.
func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub, now: time.Now}
}

// Notify publishes the door arriving at state.
func (n *Notifier) Notify(state logic.DoorState, snapshot string) error {
	return n.pub.Publish(DoorEvent{
		Timestamp: n.now(),
		State:     state,
		Snapshot:  snapshot,
	})
}
