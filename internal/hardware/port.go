// Package hardware provides the door actuator and sensor port.
// The real implementation uses the Linux GPIO character device and the
// BCM2835 PWM block. The fake implementation allows testing without hardware.
package hardware

import (
	"errors"
	"fmt"

	"github.com/sweeney/coop-door/internal/logic"
)

var (
	// ErrInvalidDrive is returned by Drive for an unknown direction or a
	// speed outside [0, 1].
	ErrInvalidDrive = errors.New("invalid drive command")

	errReleased = errors.New("hardware released")
)

// Port reads the door sensors and drives the motor and light.
type Port interface {
	// HallTopReached reports whether the top limit sensor is active.
	// A read failure reports true so a running motor is stopped.
	HallTopReached() bool
	// HallBottomReached reports whether the bottom limit sensor is active.
	HallBottomReached() bool

	// TasterUpPressed and TasterDownPressed report the manual buttons.
	TasterUpPressed() bool
	TasterDownPressed() bool

	// BarrierInterrupted reports whether the light barrier is blocked.
	BarrierInterrupted() bool

	// Drive stops any current drive, then engages direction at speed.
	Drive(direction logic.Direction, speed logic.Speed) error

	// Stop de-energizes the motor.
	Stop() error

	TurnLightOn() error
	TurnLightOff() error

	// ReadVideoCapture returns a base64 data URI of a camera frame, or ""
	// when no frame is available.
	ReadVideoCapture() string

	// CPUTemperature returns the SoC temperature in degrees Celsius, or 0.
	CPUTemperature() float64

	// Shutdown stops the motor and releases hardware handles.
	Shutdown() error
}

// Pins holds BCM pin numbers.
type Pins struct {
	MotorUp    int `yaml:"motor_up"`
	MotorDown  int `yaml:"motor_down"`
	MotorPWM   int `yaml:"motor_pwm"` // must be a PWM0 pin
	HallTop    int `yaml:"hall_top"`
	HallBottom int `yaml:"hall_bottom"`
	TasterUp   int `yaml:"taster_up"`
	TasterDown int `yaml:"taster_down"`
	Barrier    int `yaml:"barrier"`
	Light      int `yaml:"light"`
}

// DefaultPins matches the coop wiring.
var DefaultPins = Pins{
	MotorUp:    24,
	MotorDown:  23,
	MotorPWM:   18,
	HallTop:    17,
	HallBottom: 27,
	TasterUp:   19,
	TasterDown: 26,
	Barrier:    22,
	Light:      14,
}

// ReadSensors samples every input once.
func ReadSensors(p Port) logic.Sensors {
	return logic.Sensors{
		TopReached:         p.HallTopReached(),
		BottomReached:      p.HallBottomReached(),
		UpPressed:          p.TasterUpPressed(),
		DownPressed:        p.TasterDownPressed(),
		BarrierInterrupted: p.BarrierInterrupted(),
	}
}

func validateDrive(direction logic.Direction, speed logic.Speed) error {
	if !direction.Valid() {
		return fmt.Errorf("%w: direction %s", ErrInvalidDrive, direction)
	}
	if !speed.Valid() {
		return fmt.Errorf("%w: speed %v", ErrInvalidDrive, float64(speed))
	}
	return nil
}
