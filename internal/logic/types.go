// Package logic contains the shared door domain types.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
package logic

import (
	"fmt"
	"math"
)

// DoorState represents the coarse position of the door.
type DoorState string

const (
	// StateUnknown is the initial state and the state after an emergency stop.
	StateUnknown DoorState = "UNKNOWN"
	StateOpening DoorState = "OPENING"
	StateOpen    DoorState = "OPEN"
	StateClosing DoorState = "CLOSING"
	StateClosed  DoorState = "CLOSED"
)

// String returns the state name. The zero value reports UNKNOWN.
func (s DoorState) String() string {
	if s == "" {
		return string(StateUnknown)
	}
	return string(s)
}

// IsTerminal reports whether the door rests at a travel limit.
func (s DoorState) IsTerminal() bool {
	return s == StateOpen || s == StateClosed
}

// IsMoving reports whether the state implies a running motor.
func (s DoorState) IsMoving() bool {
	return s == StateOpening || s == StateClosing
}

// Direction is the motor travel direction. It has exactly two values.
type Direction uint8

const (
	Up Direction = iota + 1
	Down
)

// Valid reports whether d is Up or Down.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// MovingState returns the door state that corresponds to travelling in d.
func (d Direction) MovingState() DoorState {
	if d == Up {
		return StateOpening
	}
	return StateClosing
}

// TerminalState returns the door state reached at the end of travel in d.
func (d Direction) TerminalState() DoorState {
	if d == Up {
		return StateOpen
	}
	return StateClosed
}

// CurrentDirection is an optional Direction. The zero value means the motor
// is stopped.
type CurrentDirection struct {
	dir Direction
}

// None is the stopped CurrentDirection.
var None = CurrentDirection{}

// Moving returns a CurrentDirection travelling in d.
func Moving(d Direction) CurrentDirection {
	return CurrentDirection{dir: d}
}

// Get returns the direction and whether the motor is moving.
func (c CurrentDirection) Get() (Direction, bool) {
	return c.dir, c.dir.Valid()
}

// IsNone reports whether the motor is stopped.
func (c CurrentDirection) IsNone() bool {
	return !c.dir.Valid()
}

func (c CurrentDirection) String() string {
	if c.IsNone() {
		return "NONE"
	}
	return c.dir.String()
}

// Speed is a motor duty cycle in [0, 1].
type Speed float64

// ClampSpeed limits v to [0, 1]. NaN clamps to 0.
func ClampSpeed(v float64) Speed {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return Speed(v)
}

// Valid reports whether s is a usable duty cycle.
func (s Speed) Valid() bool {
	return !math.IsNaN(float64(s)) && s >= 0 && s <= 1
}

// LightMode selects who drives the auxiliary light.
type LightMode string

const (
	// LightAuto slaves the light to the Closing state.
	LightAuto   LightMode = "AUTO"
	LightManual LightMode = "MANUAL"
)

// Schedule is the open/close window for the current day, formatted HH:MM.
type Schedule struct {
	Open  string
	Close string
}

// DoorInfo is a point-in-time view of the door for status consumers.
type DoorInfo struct {
	State          DoorState
	Direction      CurrentDirection
	Position       float64 // 1.0 = top limit, 0.0 = bottom limit, 0.5 in between
	CPUTemperature float64 // degrees Celsius, 0 if unavailable
	LightOn        bool
	LightMode      LightMode
	Schedule       *Schedule
}

// EventCounts tracks door transitions since startup.
type EventCounts struct {
	Opened         int
	Closed         int
	Obstructions   int
	EmergencyStops int
}

// Sensors is one sample of the limit sensors and manual buttons.
type Sensors struct {
	TopReached         bool
	BottomReached      bool
	UpPressed          bool
	DownPressed        bool
	BarrierInterrupted bool
}

// Position approximates the door position from the limit sensors.
func (s Sensors) Position() float64 {
	switch {
	case s.TopReached:
		return 1
	case s.BottomReached:
		return 0
	}
	return 0.5
}
