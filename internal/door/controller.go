// Package door implements the door state machine and its control loop.
//
// A Controller owns the door state. It polls the scheduler and the hardware
// port once per tick, reconciles the open/close windows, the limit sensors,
// the manual buttons and the light barrier into motor commands, and reports
// every arrival at a travel limit to a Notifier. Remote commands share the
// same lock as the loop and take effect immediately.
package door

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/coop-door/internal/hardware"
	"github.com/sweeney/coop-door/internal/logic"
	"github.com/sweeney/coop-door/internal/schedule"
)

const dateLayout = "2006-01-02"

// maxCloseRetries caps how often an obstructed scheduled close is retried
// within the same window.
const maxCloseRetries = 3

// Scheduler resolves the open/close window for a date.
type Scheduler interface {
	GetOpenCloseTime(date time.Time) (schedule.OpenCloseTime, error)
}

// Notifier delivers a terminal door state and a camera snapshot.
// Notify is called off the control loop and may block.
type Notifier interface {
	Notify(state logic.DoorState, snapshot string) error
}

// Config holds the controller tuning.
type Config struct {
	UpSpeed   logic.Speed
	DownSpeed logic.Speed
	Tick      time.Duration
	// Window is how long after the scheduled instant an automatic
	// transition may still start.
	Window time.Duration
	// SnapshotSamples is the number of camera reads per notification. The
	// last non-empty frame is sent.
	SnapshotSamples int
	// ReverseOnObstruction reopens the door when the light barrier is
	// interrupted while closing.
	ReverseOnObstruction bool
	// Debounce filters the manual buttons and the light barrier.
	Debounce time.Duration
	// Location is the zone the schedule is expressed in. Nil means Local.
	Location *time.Location
}

// DefaultConfig returns the settings used on the coop.
func DefaultConfig() Config {
	return Config{
		UpSpeed:              0.5,
		DownSpeed:            0.1,
		Tick:                 100 * time.Millisecond,
		Window:               15 * time.Minute,
		SnapshotSamples:      5,
		ReverseOnObstruction: true,
		Debounce:             50 * time.Millisecond,
	}
}

// Controller is the door state machine. It is safe for concurrent use.
type Controller struct {
	port     hardware.Port
	sched    Scheduler
	notifier Notifier
	cfg      Config

	// mu serializes ticks, commands and every actuator call.
	mu        sync.Mutex
	started   bool
	stopped   bool
	state     logic.DoorState
	direction logic.CurrentDirection
	sensors   logic.Sensors
	debouncer *logic.Debouncer
	counts    logic.EventCounts

	window       *schedule.OpenCloseTime
	scheduleErr  error
	lastTick     time.Time
	openFired    string
	closeFired   string
	retryDay     string
	closeRetries int

	buttonRejected bool

	lightMode   logic.LightMode
	lightManual bool
	lightOn     bool
	lightFault  bool

	done    chan struct{}
	pending sync.WaitGroup
}

// New creates a stopped controller in the Unknown state. notifier may be nil.
func New(port hardware.Port, sched Scheduler, notifier Notifier, cfg Config) *Controller {
	cfg.UpSpeed = logic.ClampSpeed(float64(cfg.UpSpeed))
	cfg.DownSpeed = logic.ClampSpeed(float64(cfg.DownSpeed))
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	if cfg.SnapshotSamples < 1 {
		cfg.SnapshotSamples = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Controller{
		port:      port,
		sched:     sched,
		notifier:  notifier,
		cfg:       cfg,
		state:     logic.StateUnknown,
		debouncer: logic.NewDebouncer(cfg.Debounce),
		lightMode: logic.LightAuto,
		done:      make(chan struct{}),
	}
}

// Start runs the control loop on its own goroutine until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.markStarted(); err != nil {
		return err
	}
	ticker := time.NewTicker(c.cfg.Tick)
	go func() {
		defer ticker.Stop()
		if err := c.loop(ctx, ticker.C); err != nil {
			log.Printf("door: %v", err)
		}
	}()
	return nil
}

// Run runs the control loop on the calling goroutine, evaluating one tick per
// value received on tick. It returns after ctx is cancelled and the hardware
// has been released.
func (c *Controller) Run(ctx context.Context, tick <-chan time.Time) error {
	if err := c.markStarted(); err != nil {
		return err
	}
	return c.loop(ctx, tick)
}

// Done is closed once the control loop has exited and released the hardware.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) markStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	return nil
}

func (c *Controller) loop(ctx context.Context, tick <-chan time.Time) error {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			return c.shutdown()
		}
		select {
		case <-ctx.Done():
			return c.shutdown()
		case t := <-tick:
			c.step(t)
		}
	}
}

// shutdown stops the motor, waits for in-flight notifications, then
// releases the port. Notifications still read the camera.
func (c *Controller) shutdown() error {
	c.mu.Lock()
	var errs []error
	if err := c.port.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	c.state = logic.StateUnknown
	c.direction = logic.None
	c.stopped = true
	c.mu.Unlock()

	c.pending.Wait()

	c.mu.Lock()
	if err := c.port.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("release hardware: %w", err))
	}
	c.mu.Unlock()

	log.Printf("door: control loop stopped")
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrHardwareFault, err)
	}
	return nil
}

// step evaluates one tick at now.
func (c *Controller) step(now time.Time) {
	c.mu.Lock()
	arrived := c.evaluate(now.In(c.cfg.Location))
	c.mu.Unlock()

	if arrived != "" {
		c.dispatch(arrived)
	}
}

// evaluate runs one tick under the lock and returns the terminal state
// reached in this tick, if any.
func (c *Controller) evaluate(now time.Time) logic.DoorState {
	c.lastTick = now
	c.resolveSchedule(now)

	c.sensors = c.debouncer.Process(hardware.ReadSensors(c.port), now)

	arrived, limitHit := c.checkLimits()
	switch {
	case limitHit:
		// A limit stop (or a failed one) preempts any new drive this tick.
	case c.checkObstruction(now):
	default:
		c.runSchedule(now)
		c.runButtons()
	}

	c.refreshLight()
	return arrived
}

func (c *Controller) resolveSchedule(now time.Time) {
	oct, err := c.sched.GetOpenCloseTime(now)
	if err != nil {
		if c.scheduleErr == nil {
			log.Printf("door: %v, keeping previous window", err)
		}
		c.scheduleErr = err
		return
	}
	if c.scheduleErr != nil || c.window == nil || *c.window != oct {
		log.Printf("door: schedule %s", oct)
	}
	c.scheduleErr = nil
	c.window = &oct
}

// checkLimits stops a moving door at its travel limit. limitHit is true when
// a limit was reached in the direction of travel, whether or not the stop
// succeeded.
func (c *Controller) checkLimits() (arrived logic.DoorState, limitHit bool) {
	dir, moving := c.direction.Get()
	if !moving || !c.limitReached(dir) {
		return "", false
	}
	if err := c.port.Stop(); err != nil {
		log.Printf("door: stop at %s limit: %v", dir, err)
		return "", true
	}

	arrived = dir.TerminalState()
	log.Printf("door: %s -> %s (limit)", c.state, arrived)
	c.state = arrived
	c.direction = logic.None
	if arrived == logic.StateOpen {
		c.counts.Opened++
	} else {
		c.counts.Closed++
	}
	return arrived, true
}

func (c *Controller) limitReached(d logic.Direction) bool {
	if d == logic.Up {
		return c.sensors.TopReached
	}
	return c.sensors.BottomReached
}

// checkObstruction reverses a closing door when the light barrier is
// interrupted and re-arms the close window. It reports whether it acted.
func (c *Controller) checkObstruction(now time.Time) bool {
	if !c.cfg.ReverseOnObstruction || c.state != logic.StateClosing || !c.sensors.BarrierInterrupted {
		return false
	}
	if err := c.port.Drive(logic.Up, c.cfg.UpSpeed); err != nil {
		log.Printf("door: reverse on obstruction: %v", err)
		c.driveFailed()
		return true
	}
	log.Printf("door: %s -> %s (obstruction)", c.state, logic.StateOpening)
	c.state = logic.StateOpening
	c.direction = logic.Moving(logic.Up)
	c.counts.Obstructions++
	c.rearmClose(now)
	return true
}

// driveFailed handles a failed reversal. The port may already have cut the
// motor, so once a stop succeeds the position is unknown.
func (c *Controller) driveFailed() {
	if err := c.port.Stop(); err != nil {
		log.Printf("door: stop after failed drive: %v", err)
		return
	}
	log.Printf("door: %s -> %s (drive fault)", c.state, logic.StateUnknown)
	c.state = logic.StateUnknown
	c.direction = logic.None
}

// rearmClose lets a scheduled close that was obstructed try again once the
// door is back open, up to maxCloseRetries times a day.
func (c *Controller) rearmClose(now time.Time) {
	day := now.Format(dateLayout)
	if c.retryDay != day {
		c.retryDay, c.closeRetries = day, 0
	}
	if c.closeFired != day {
		return
	}
	if c.closeRetries >= maxCloseRetries {
		log.Printf("door: close obstructed %d times, giving up until tomorrow", c.closeRetries+1)
		return
	}
	c.closeRetries++
	c.closeFired = ""
}

// runSchedule starts a transition once per window instance. The window is
// used up once the door is at or travelling toward its target. While the door
// travels the other way, or the barrier blocks a close, it waits.
func (c *Controller) runSchedule(now time.Time) {
	if c.window == nil {
		return
	}
	day := now.Format(dateLayout)

	var (
		dir   logic.Direction
		fired *string
	)
	switch {
	case c.openFired != day && c.window.OpenWindowActive(now, c.cfg.Window):
		dir, fired = logic.Up, &c.openFired
	case c.closeFired != day && c.window.CloseWindowActive(now, c.cfg.Window):
		dir, fired = logic.Down, &c.closeFired
	default:
		return
	}

	if moving, ok := c.direction.Get(); ok && moving != dir {
		return
	}
	if dir == logic.Down && c.sensors.BarrierInterrupted {
		return
	}

	err := c.move(dir, "schedule")
	if errors.Is(err, ErrHardwareFault) {
		return
	}
	if err != nil {
		log.Printf("door: scheduled %s dropped: %v", dir, err)
	}
	*fired = day
}

// latchActiveWindows uses up every window active at the last tick.
func (c *Controller) latchActiveWindows() {
	if c.window == nil || c.lastTick.IsZero() {
		return
	}
	day := c.lastTick.Format(dateLayout)
	if c.window.OpenWindowActive(c.lastTick, c.cfg.Window) {
		c.openFired = day
	}
	if c.window.CloseWindowActive(c.lastTick, c.cfg.Window) {
		c.closeFired = day
	}
}

func (c *Controller) runButtons() {
	var dir logic.Direction
	switch {
	case c.sensors.UpPressed && c.sensors.DownPressed:
		return
	case c.sensors.UpPressed:
		dir = logic.Up
	case c.sensors.DownPressed:
		dir = logic.Down
	default:
		c.buttonRejected = false
		return
	}
	// Faults are logged by move. A rejection is logged once per press.
	err := c.move(dir, "button")
	if errors.Is(err, ErrInvalidCommand) {
		if !c.buttonRejected {
			log.Printf("door: button %s ignored: %v", dir, err)
		}
		c.buttonRejected = true
		return
	}
	c.buttonRejected = false
}

// move starts travel in d. It is a no-op when the door already travels or
// rests in that direction, or when the limit for d is already reached.
func (c *Controller) move(d logic.Direction, source string) error {
	if !d.Valid() {
		return fmt.Errorf("%w: direction %s", ErrInvalidCommand, d)
	}
	target := d.MovingState()
	switch c.state {
	case target, d.TerminalState():
		return nil
	case logic.StateUnknown, logic.StateOpen, logic.StateClosed:
	default:
		return fmt.Errorf("%w: cannot start %s while %s", ErrInvalidCommand, target, c.state)
	}
	if c.limitReached(d) {
		return nil
	}

	speed := c.cfg.UpSpeed
	if d == logic.Down {
		speed = c.cfg.DownSpeed
	}
	if err := c.port.Drive(d, speed); err != nil {
		if errors.Is(err, hardware.ErrInvalidDrive) {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		log.Printf("door: drive %s (%s): %v", d, source, err)
		return fmt.Errorf("%w: drive %s: %w", ErrHardwareFault, d, err)
	}

	log.Printf("door: %s -> %s (%s)", c.state, target, source)
	c.state = target
	c.direction = logic.Moving(d)
	c.refreshLight()
	return nil
}

// refreshLight applies the light rule. In auto mode the light is on exactly
// while closing.
func (c *Controller) refreshLight() {
	if err := c.applyLight(); err != nil {
		if !c.lightFault {
			log.Printf("door: %v", err)
		}
		c.lightFault = true
		return
	}
	c.lightFault = false
}

func (c *Controller) applyLight() error {
	want := c.lightManual
	if c.lightMode == logic.LightAuto {
		want = c.state == logic.StateClosing
	}

	var err error
	if want {
		err = c.port.TurnLightOn()
	} else {
		err = c.port.TurnLightOff()
	}
	if err != nil {
		return fmt.Errorf("%w: light: %w", ErrHardwareFault, err)
	}
	c.lightOn = want
	return nil
}

// dispatch notifies off the loop.
func (c *Controller) dispatch(state logic.DoorState) {
	if c.notifier == nil {
		return
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("door: notify %s panicked: %v", state, r)
			}
		}()
		if err := c.notifier.Notify(state, c.snapshot()); err != nil {
			log.Printf("door: notify %s: %v", state, err)
		}
	}()
}

// snapshot returns the last non-empty of several camera reads. The first
// frames after the motor stops are often stale or blurred.
func (c *Controller) snapshot() string {
	var img string
	for i := 0; i < c.cfg.SnapshotSamples; i++ {
		if s := c.port.ReadVideoCapture(); s != "" {
			img = s
		}
	}
	return img
}

func (c *Controller) checkRunning() error {
	if !c.started || c.stopped {
		return ErrNotStarted
	}
	return nil
}

// OpenDoor starts opening the door. It is a no-op when the door is already
// open or opening, and ErrInvalidCommand while closing.
func (c *Controller) OpenDoor() error {
	return c.command(logic.Up)
}

// CloseDoor starts closing the door. It is a no-op when the door is already
// closed or closing, and ErrInvalidCommand while opening.
func (c *Controller) CloseDoor() error {
	return c.command(logic.Down)
}

func (c *Controller) command(d logic.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	// Limit sensors are not debounced, so a fresh read is as good as a tick's.
	c.sensors.TopReached = c.port.HallTopReached()
	c.sensors.BottomReached = c.port.HallBottomReached()
	return c.move(d, "command")
}

// EmergencyStop stops the motor and forgets the door position.
func (c *Controller) EmergencyStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if err := c.port.Stop(); err != nil {
		log.Printf("door: emergency stop: %v", err)
		return fmt.Errorf("%w: stop: %w", ErrHardwareFault, err)
	}
	log.Printf("door: %s -> %s (emergency stop)", c.state, logic.StateUnknown)
	c.state = logic.StateUnknown
	c.direction = logic.None
	c.counts.EmergencyStops++
	c.latchActiveWindows()
	c.refreshLight()
	return nil
}

// SetLight switches the light to manual mode and holds it on or off.
func (c *Controller) SetLight(on bool) error {
	return c.setLight(logic.LightManual, on)
}

// SetLightAuto returns the light to following the door.
func (c *Controller) SetLightAuto() error {
	return c.setLight(logic.LightAuto, false)
}

func (c *Controller) setLight(mode logic.LightMode, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	c.lightMode = mode
	c.lightManual = on
	err := c.applyLight()
	c.lightFault = err != nil
	return err
}

// GetDirection returns the current motor direction.
func (c *Controller) GetDirection() logic.CurrentDirection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

// State returns the current door state.
func (c *Controller) State() logic.DoorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Counts returns the transition counters.
func (c *Controller) Counts() logic.EventCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// GetDoorInfo returns a consistent view of the door.
func (c *Controller) GetDoorInfo() logic.DoorInfo {
	c.mu.Lock()
	info := logic.DoorInfo{
		State:     c.state,
		Direction: c.direction,
		Position:  c.sensors.Position(),
		LightOn:   c.lightOn,
		LightMode: c.lightMode,
	}
	if c.window != nil {
		info.Schedule = &logic.Schedule{
			Open:  c.window.Open.String(),
			Close: c.window.Close.String(),
		}
	}
	c.mu.Unlock()

	info.CPUTemperature = c.port.CPUTemperature()
	return info
}
