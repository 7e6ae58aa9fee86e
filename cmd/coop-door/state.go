package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sweeney/coop-door/internal/door"
	"github.com/sweeney/coop-door/internal/hardware"
	"github.com/sweeney/coop-door/internal/logic"
)

// restingState infers the door state from the limit sensors alone.
func restingState(s logic.Sensors) logic.DoorState {
	switch {
	case s.TopReached && s.BottomReached:
		return logic.StateUnknown
	case s.TopReached:
		return logic.StateOpen
	case s.BottomReached:
		return logic.StateClosed
	}
	return logic.StateUnknown
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// printDoorState writes one sample of the sensors and the schedule for now's
// date.
func printDoorState(w io.Writer, port hardware.Port, sched door.Scheduler, now time.Time) {
	s := hardware.ReadSensors(port)
	fmt.Fprintf(w, "DOOR: %s\n", restingState(s))
	fmt.Fprintf(w, "TOP: %s, BOTTOM: %s, BARRIER: %s\n",
		onOff(s.TopReached), onOff(s.BottomReached), onOff(s.BarrierInterrupted))
	fmt.Fprintf(w, "UP: %s, DOWN: %s\n", onOff(s.UpPressed), onOff(s.DownPressed))

	if oct, err := sched.GetOpenCloseTime(now); err != nil {
		fmt.Fprintf(w, "SCHEDULE: %v\n", err)
	} else {
		fmt.Fprintf(w, "SCHEDULE: open %s, close %s\n", oct.Open, oct.Close)
	}
	if c := port.CPUTemperature(); c > 0 {
		fmt.Fprintf(w, "CPU: %.1f C\n", c)
	}
}
