package hardware

import (
	"sync"

	"github.com/sweeney/coop-door/internal/logic"
)

// DriveCall records one Drive invocation.
type DriveCall struct {
	Direction logic.Direction
	Speed     logic.Speed
}

// FakePort is a test double with scripted sensors that records every
// actuator call. It is safe for concurrent use.
type FakePort struct {
	mu sync.Mutex

	top, bottom bool
	up, down    bool
	barrier     bool
	snapshot    string
	temperature float64

	driveErr error
	stopErr  error
	lightErr error

	moving    logic.CurrentDirection
	lightOn   bool
	drives    []DriveCall
	stops     int
	lightOns  int
	lightOffs int
	captures  int
	shutdowns int
}

// NewFakePort creates a FakePort with all inputs inactive.
func NewFakePort() *FakePort {
	return &FakePort{}
}

func (f *FakePort) SetTopReached(v bool)         { f.set(func() { f.top = v }) }
func (f *FakePort) SetBottomReached(v bool)      { f.set(func() { f.bottom = v }) }
func (f *FakePort) SetUpPressed(v bool)          { f.set(func() { f.up = v }) }
func (f *FakePort) SetDownPressed(v bool)        { f.set(func() { f.down = v }) }
func (f *FakePort) SetBarrierInterrupted(v bool) { f.set(func() { f.barrier = v }) }
func (f *FakePort) SetSnapshot(img string)       { f.set(func() { f.snapshot = img }) }
func (f *FakePort) SetTemperature(c float64)     { f.set(func() { f.temperature = c }) }

// SetDriveError makes Drive fail with err (nil clears).
func (f *FakePort) SetDriveError(err error) { f.set(func() { f.driveErr = err }) }

// SetStopError makes Stop fail with err (nil clears).
func (f *FakePort) SetStopError(err error) { f.set(func() { f.stopErr = err }) }

// SetLightError makes TurnLightOn and TurnLightOff fail with err (nil clears).
func (f *FakePort) SetLightError(err error) { f.set(func() { f.lightErr = err }) }

func (f *FakePort) set(fn func()) {
	f.mu.Lock()
	fn()
	f.mu.Unlock()
}

func (f *FakePort) HallTopReached() bool     { return f.get(func() bool { return f.top }) }
func (f *FakePort) HallBottomReached() bool  { return f.get(func() bool { return f.bottom }) }
func (f *FakePort) TasterUpPressed() bool    { return f.get(func() bool { return f.up }) }
func (f *FakePort) TasterDownPressed() bool  { return f.get(func() bool { return f.down }) }
func (f *FakePort) BarrierInterrupted() bool { return f.get(func() bool { return f.barrier }) }

func (f *FakePort) get(fn func() bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn()
}

// Drive records the call unless a drive error is scripted.
func (f *FakePort) Drive(direction logic.Direction, speed logic.Speed) error {
	if err := validateDrive(direction, speed); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.driveErr != nil {
		return f.driveErr
	}
	f.drives = append(f.drives, DriveCall{Direction: direction, Speed: speed})
	f.moving = logic.Moving(direction)
	return nil
}

// Stop records the call unless a stop error is scripted.
func (f *FakePort) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops++
	f.moving = logic.None
	return nil
}

// TurnLightOn implements Port.TurnLightOn.
func (f *FakePort) TurnLightOn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lightErr != nil {
		return f.lightErr
	}
	f.lightOns++
	f.lightOn = true
	return nil
}

// TurnLightOff implements Port.TurnLightOff.
func (f *FakePort) TurnLightOff() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lightErr != nil {
		return f.lightErr
	}
	f.lightOffs++
	f.lightOn = false
	return nil
}

// ReadVideoCapture returns the scripted snapshot.
func (f *FakePort) ReadVideoCapture() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	return f.snapshot
}

// CPUTemperature returns the scripted temperature.
func (f *FakePort) CPUTemperature() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.temperature
}

// Shutdown stops the motor and counts the call.
func (f *FakePort) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	f.moving = logic.None
	return nil
}

// Drives returns a copy of all recorded Drive calls.
func (f *FakePort) Drives() []DriveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DriveCall(nil), f.drives...)
}

// Stops returns the number of successful Stop calls.
func (f *FakePort) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Moving returns the direction the fake motor is running in.
func (f *FakePort) Moving() logic.CurrentDirection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moving
}

// LightOn reports the current light output.
func (f *FakePort) LightOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lightOn
}

// LightCalls returns the number of successful on and off calls.
func (f *FakePort) LightCalls() (on, off int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lightOns, f.lightOffs
}

// Captures returns the number of ReadVideoCapture calls.
func (f *FakePort) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

// Shutdowns returns the number of Shutdown calls.
func (f *FakePort) Shutdowns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

// Reset clears recorded calls. Scripted inputs and errors are kept.
func (f *FakePort) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drives = nil
	f.stops = 0
	f.lightOns = 0
	f.lightOffs = 0
	f.captures = 0
	f.shutdowns = 0
}
