//go:build linux

package hardware

import (
	"fmt"
	"log"
	"sync"

	"github.com/hjkoskel/govattu"
	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/coop-door/internal/logic"
)

// PWM0 at 19.2 MHz / 19 with a range of 5000 gives roughly 200 Hz.
const (
	pwmClockDivisor = 19
	pwmRange        = 5000
)

// RealPort drives the door on Raspberry Pi hardware.
type RealPort struct {
	mu sync.Mutex

	chip       *gpiocdev.Chip
	motorUp    *gpiocdev.Line
	motorDown  *gpiocdev.Line
	light      *gpiocdev.Line
	hallTop    *gpiocdev.Line
	hallBottom *gpiocdev.Line
	tasterUp   *gpiocdev.Line
	tasterDown *gpiocdev.Line
	barrier    *gpiocdev.Line

	pwm     govattu.Vattu
	pwmOpen bool

	snapshot    *SnapshotSource
	thermalPath string
}

// NewRealPort requests all lines on chip and configures PWM0 for the motor
// enable pin.
func NewRealPort(chipName string, pins Pins, snapshot *SnapshotSource, thermalPath string) (*RealPort, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	p := &RealPort{chip: chip, snapshot: snapshot, thermalPath: thermalPath}

	requests := []struct {
		name string
		pin  int
		dst  **gpiocdev.Line
		opts []gpiocdev.LineReqOption
	}{
		{"motor up", pins.MotorUp, &p.motorUp, []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}},
		{"motor down", pins.MotorDown, &p.motorDown, []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}},
		{"light", pins.Light, &p.light, []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}},
		// Hall sensors pull the line low at the limit.
		{"hall top", pins.HallTop, &p.hallTop, []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}},
		{"hall bottom", pins.HallBottom, &p.hallBottom, []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}},
		{"taster up", pins.TasterUp, &p.tasterUp, []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}},
		{"taster down", pins.TasterDown, &p.tasterDown, []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}},
		{"barrier", pins.Barrier, &p.barrier, []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow}},
	}
	for _, r := range requests {
		line, err := chip.RequestLine(r.pin, r.opts...)
		if err != nil {
			p.release()
			return nil, fmt.Errorf("request %s pin %d: %w", r.name, r.pin, err)
		}
		*r.dst = line
	}

	hw, err := govattu.Open()
	if err != nil {
		p.release()
		return nil, fmt.Errorf("open pwm: %w", err)
	}
	hw.PinMode(uint8(pins.MotorPWM), govattu.ALT5) // ALT5 for PWM0
	hw.PwmSetMode(true, true, false, false)
	hw.PwmSetClock(pwmClockDivisor)
	hw.Pwm0SetRange(pwmRange)
	hw.Pwm0Set(0)
	p.pwm = hw
	p.pwmOpen = true

	return p, nil
}

func (p *RealPort) HallTopReached() bool    { return p.readInput("hall top", p.hallTop, true) }
func (p *RealPort) HallBottomReached() bool { return p.readInput("hall bottom", p.hallBottom, true) }
func (p *RealPort) TasterUpPressed() bool   { return p.readInput("taster up", p.tasterUp, false) }
func (p *RealPort) TasterDownPressed() bool { return p.readInput("taster down", p.tasterDown, false) }
func (p *RealPort) BarrierInterrupted() bool {
	return p.readInput("barrier", p.barrier, false)
}

// readInput returns the logical line value, or onError if the read fails.
func (p *RealPort) readInput(name string, line *gpiocdev.Line, onError bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line == nil {
		return onError
	}
	v, err := line.Value()
	if err != nil {
		log.Printf("hardware: read %s: %v", name, err)
		return onError
	}
	return v == 1
}

// Drive implements Port.Drive.
func (p *RealPort) Drive(direction logic.Direction, speed logic.Speed) error {
	if err := validateDrive(direction, speed); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.motorUp == nil {
		return errReleased
	}
	if err := p.stopLocked(); err != nil {
		return err
	}
	p.pwm.Pwm0Set(uint32(float64(speed) * pwmRange))

	line := p.motorUp
	if direction == logic.Down {
		line = p.motorDown
	}
	if err := line.SetValue(1); err != nil {
		return fmt.Errorf("engage motor %s: %w", direction, err)
	}
	return nil
}

// Stop implements Port.Stop.
func (p *RealPort) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *RealPort) stopLocked() error {
	if p.motorUp == nil || p.motorDown == nil {
		// released
		return nil
	}
	var errs []error
	if err := p.motorUp.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("motor up: %w", err))
	}
	if err := p.motorDown.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("motor down: %w", err))
	}
	if p.pwmOpen {
		p.pwm.Pwm0Set(0)
	}
	if len(errs) > 0 {
		return fmt.Errorf("stop motor: %v", errs)
	}
	return nil
}

// TurnLightOn implements Port.TurnLightOn.
func (p *RealPort) TurnLightOn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.light == nil {
		return errReleased
	}
	if err := p.light.SetValue(1); err != nil {
		return fmt.Errorf("light on: %w", err)
	}
	return nil
}

// TurnLightOff implements Port.TurnLightOff.
func (p *RealPort) TurnLightOff() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.light == nil {
		return errReleased
	}
	if err := p.light.SetValue(0); err != nil {
		return fmt.Errorf("light off: %w", err)
	}
	return nil
}

// ReadVideoCapture implements Port.ReadVideoCapture.
func (p *RealPort) ReadVideoCapture() string {
	if p.snapshot == nil {
		return ""
	}
	return p.snapshot.Read()
}

// CPUTemperature implements Port.CPUTemperature.
func (p *RealPort) CPUTemperature() float64 {
	c, err := ReadCPUTemperature(p.thermalPath)
	if err != nil {
		return 0
	}
	return c
}

// Shutdown stops the motor and releases GPIO and PWM resources.
// Outputs are reconfigured to input with pull-down (Pi boot defaults) before
// closing so the H-bridge is never left energized.
func (p *RealPort) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.stopLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := p.release(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (p *RealPort) release() error {
	var errs []error
	for _, line := range []*gpiocdev.Line{p.motorUp, p.motorDown, p.light} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure output: %w", err))
		}
	}
	for _, line := range []*gpiocdev.Line{p.motorUp, p.motorDown, p.light, p.hallTop, p.hallBottom, p.tasterUp, p.tasterDown, p.barrier} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	p.motorUp, p.motorDown, p.light = nil, nil, nil
	p.hallTop, p.hallBottom, p.tasterUp, p.tasterDown, p.barrier = nil, nil, nil, nil, nil

	if p.pwmOpen {
		p.pwm.Pwm0Set(0)
		if err := p.pwm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pwm: %w", err))
		}
		p.pwmOpen = false
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}
