package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sweeney/coop-door/internal/door"
	"github.com/sweeney/coop-door/internal/hardware"
	"github.com/sweeney/coop-door/internal/logic"
	"github.com/sweeney/coop-door/internal/mqtt"
	"github.com/sweeney/coop-door/internal/schedule"
	"github.com/sweeney/coop-door/internal/status"
	"github.com/sweeney/coop-door/internal/web"
)

// fixedSun reports sunrise 06:36 and sunset 19:40 UTC every day.
type fixedSun struct{}

func (fixedSun) SunriseSunset(_, _ float64, date time.Time) (time.Time, time.Time, bool) {
	y, m, d := date.Date()
	return time.Date(y, m, d, 6, 36, 0, 0, time.UTC), time.Date(y, m, d, 19, 40, 0, 0, time.UTC), true
}

func clock(hh, mm int) time.Time {
	return time.Date(2026, 4, 1, hh, mm, 0, 0, time.UTC)
}

// rig wires the door controller to the same collaborators main uses, with
// fakes at the hardware and broker edges.
type rig struct {
	t       *testing.T
	port    *hardware.FakePort
	pub     *mqtt.FakePublisher
	ctrl    *door.Controller
	tracker *status.Tracker
	tick    chan time.Time
	cancel  context.CancelFunc
	runErr  chan error
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		t:      t,
		port:   hardware.NewFakePort(),
		pub:    mqtt.NewFakePublisher(),
		tick:   make(chan time.Time),
		runErr: make(chan error, 1),
	}
	r.port.SetSnapshot("data:image/jpeg;base64,AAAA")

	sched := schedule.New(schedule.Config{
		Latitude:    49.0026,
		Longitude:   8.5221,
		MinOpenTime: schedule.TimeOfDay(6 * time.Hour),
		Location:    time.UTC,
	}, fixedSun{})

	cfg := door.DefaultConfig()
	cfg.Debounce = 0
	cfg.SnapshotSamples = 1
	cfg.Location = time.UTC

	r.ctrl = door.New(r.port, sched, mqtt.NewNotifier(r.pub), cfg)
	r.tracker = status.NewTracker(clock(5, 0), status.Config{Broker: "tcp://localhost:1883"})

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { r.runErr <- r.ctrl.Run(ctx, r.tick) }()
	t.Cleanup(cancel)
	return r
}

// at evaluates one tick at now. A second tick at the same instant is only
// received once the first has been evaluated, and re-evaluating an instant
// changes nothing.
func (r *rig) at(now time.Time) {
	r.t.Helper()
	r.tick <- now
	r.tick <- now
	r.tracker.Update(r.ctrl.GetDoorInfo(), r.ctrl.Counts())
}

// waitEvents waits for n door events to be published.
func (r *rig) waitEvents(n int) []mqtt.DoorEvent {
	r.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		events := r.pub.DoorEvents()
		if len(events) >= n {
			return events
		}
		if time.Now().After(deadline) {
			r.t.Fatalf("expected %d door events, got %d", n, len(events))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (r *rig) stop() error {
	r.cancel()
	select {
	case err := <-r.runErr:
		return err
	case <-time.After(2 * time.Second):
		r.t.Fatal("controller did not stop")
		return nil
	}
}

func TestIntegrationScheduledDay(t *testing.T) {
	r := newRig(t)
	r.port.SetBottomReached(true)

	// Before the open window nothing moves.
	r.at(clock(5, 30))
	if len(r.port.Drives()) != 0 {
		t.Fatalf("expected no drive before sunrise, got %v", r.port.Drives())
	}

	// Inside the open window the door starts up.
	r.at(clock(6, 40))
	if got := r.ctrl.State(); got != logic.StateOpening {
		t.Fatalf("state at 06:40: got %s, want OPENING", got)
	}

	// The top limit stops it and publishes DOOR_OPEN with a snapshot.
	r.port.SetBottomReached(false)
	r.port.SetTopReached(true)
	r.at(clock(6, 41))
	if got := r.ctrl.State(); got != logic.StateOpen {
		t.Fatalf("state at 06:41: got %s, want OPEN", got)
	}
	events := r.waitEvents(1)
	if events[0].State != logic.StateOpen || events[0].Snapshot == "" {
		t.Errorf("unexpected open event: %+v", events[0])
	}

	var payload mqtt.Payload
	if err := json.Unmarshal(r.pub.Payloads[0], &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.Door.Event != "DOOR_OPEN" {
		t.Errorf("payload event: got %q, want DOOR_OPEN", payload.Door.Event)
	}
	if string(r.pub.Retained(mqtt.Topic)) != string(r.pub.Payloads[0]) {
		t.Error("door event should be retained for late subscribers")
	}

	// The close window drives the door down with the light on.
	r.at(clock(19, 45))
	if got := r.ctrl.State(); got != logic.StateClosing {
		t.Fatalf("state at 19:45: got %s, want CLOSING", got)
	}
	if !r.port.LightOn() {
		t.Error("expected light on while closing")
	}

	r.port.SetTopReached(false)
	r.port.SetBottomReached(true)
	r.at(clock(19, 46))
	events = r.waitEvents(2)
	if events[1].State != logic.StateClosed {
		t.Errorf("unexpected close event: %+v", events[1])
	}
	if r.port.LightOn() {
		t.Error("expected light off once closed")
	}

	// Still inside the close window: no second drive.
	r.at(clock(19, 50))
	if n := len(r.port.Drives()); n != 2 {
		t.Errorf("expected 2 drives over the day, got %d", n)
	}

	snap := r.tracker.Snapshot()
	if snap.Door.State != logic.StateClosed || snap.Counts != (logic.EventCounts{Opened: 1, Closed: 1}) {
		t.Errorf("tracker: state %s counts %+v", snap.Door.State, snap.Counts)
	}
	if snap.Door.Schedule == nil || snap.Door.Schedule.Open != "06:36" || snap.Door.Schedule.Close != "19:40" {
		t.Errorf("tracker schedule: %+v", snap.Door.Schedule)
	}

	if err := r.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.port.Shutdowns() != 1 {
		t.Errorf("expected hardware released once, got %d", r.port.Shutdowns())
	}
}

func TestIntegrationMQTTCommands(t *testing.T) {
	r := newRig(t)
	r.port.SetBottomReached(true)
	handle := mqtt.CommandHandler(r.ctrl)

	handle([]byte("open\n"))
	if got := r.ctrl.State(); got != logic.StateOpening {
		t.Fatalf("after OPEN: got %s, want OPENING", got)
	}

	handle([]byte("STOP"))
	if got := r.ctrl.State(); got != logic.StateUnknown {
		t.Fatalf("after STOP: got %s, want UNKNOWN", got)
	}
	if r.ctrl.Counts().EmergencyStops != 1 {
		t.Errorf("expected 1 emergency stop, got %d", r.ctrl.Counts().EmergencyStops)
	}

	handle([]byte("LIGHT_ON"))
	if !r.port.LightOn() {
		t.Error("expected light on")
	}
	// An unknown command changes nothing.
	handle([]byte("FLY"))
	r.at(clock(12, 0))
	if !r.port.LightOn() {
		t.Error("manual light should survive ticks")
	}

	if err := r.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestIntegrationWebCommands(t *testing.T) {
	r := newRig(t)
	r.port.SetBottomReached(true)
	r.at(clock(12, 0))

	ts := httptest.NewServer(web.New(":0", r.tracker, r.ctrl).Handler())
	defer ts.Close()

	post := func(path string) (int, web.CommandJSON) {
		t.Helper()
		resp, err := http.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		defer resp.Body.Close()
		var res web.CommandJSON
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.StatusCode, res
	}

	code, res := post("/api/door/open")
	if code != http.StatusOK || res.State != "OPENING" {
		t.Fatalf("open: got %d %+v", code, res)
	}

	code, res = post("/api/door/close")
	if code != http.StatusConflict || res.OK {
		t.Errorf("close while opening: got %d %+v", code, res)
	}

	r.port.SetBottomReached(false)
	r.port.SetTopReached(true)
	r.at(clock(12, 1))
	r.waitEvents(1)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)
	resp.Body.Close()
	if sj.Status.Door.State != "OPEN" || sj.Status.Door.Position != 1 || sj.Status.Counts.Opened != 1 {
		t.Errorf("status: %+v counts %+v", sj.Status.Door, sj.Status.Counts)
	}

	if err := r.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	code, _ = post("/api/door/close")
	if code != http.StatusServiceUnavailable {
		t.Errorf("after shutdown: got %d, want 503", code)
	}
}

func TestIntegrationPublishFailureDoesNotStopDoor(t *testing.T) {
	r := newRig(t)
	r.pub.PublishError = errors.New("broker unavailable")
	r.port.SetBottomReached(true)

	r.at(clock(6, 40))
	r.port.SetBottomReached(false)
	r.port.SetTopReached(true)
	r.at(clock(6, 41))

	if got := r.ctrl.State(); got != logic.StateOpen {
		t.Fatalf("got %s, want OPEN", got)
	}
	// the next cycle still runs
	r.at(clock(19, 45))
	if got := r.ctrl.State(); got != logic.StateClosing {
		t.Fatalf("got %s, want CLOSING", got)
	}
	if err := r.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
