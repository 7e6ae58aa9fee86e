//go:build !linux

package hardware

import (
	"errors"

	"github.com/sweeney/coop-door/internal/logic"
)

var errUnsupported = errors.New("hardware: not supported on this platform (requires Linux)")

// RealPort is not available on non-Linux platforms.
type RealPort struct{}

// NewRealPort returns an error on non-Linux platforms.
func NewRealPort(chipName string, pins Pins, snapshot *SnapshotSource, thermalPath string) (*RealPort, error) {
	return nil, errUnsupported
}

func (p *RealPort) HallTopReached() bool                     { return true }
func (p *RealPort) HallBottomReached() bool                  { return true }
func (p *RealPort) TasterUpPressed() bool                    { return false }
func (p *RealPort) TasterDownPressed() bool                  { return false }
func (p *RealPort) BarrierInterrupted() bool                 { return false }
func (p *RealPort) Drive(logic.Direction, logic.Speed) error { return errUnsupported }
func (p *RealPort) Stop() error                              { return nil }
func (p *RealPort) TurnLightOn() error                       { return errUnsupported }
func (p *RealPort) TurnLightOff() error                      { return errUnsupported }
func (p *RealPort) ReadVideoCapture() string                 { return "" }
func (p *RealPort) CPUTemperature() float64                  { return 0 }
func (p *RealPort) Shutdown() error                          { return nil }
