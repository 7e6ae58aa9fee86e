// Command coop-door drives a motorized chicken-coop door on a sunrise/sunset
// schedule and reports its state over MQTT and HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // site.timezone must resolve on hosts without zoneinfo

	"github.com/sweeney/coop-door/internal/config"
	"github.com/sweeney/coop-door/internal/door"
	"github.com/sweeney/coop-door/internal/hardware"
	"github.com/sweeney/coop-door/internal/logic"
	"github.com/sweeney/coop-door/internal/mqtt"
	"github.com/sweeney/coop-door/internal/schedule"
	"github.com/sweeney/coop-door/internal/status"
	"github.com/sweeney/coop-door/internal/web"
)

// shutdownTimeout bounds the wait for the control loop to release the motor.
const shutdownTimeout = 5 * time.Second

// options holds the command line. Overrides apply only when the flag was
// given explicitly.
type options struct {
	configPath string
	printState bool
	poll       time.Duration
	broker     string
	httpAddr   string
	heartbeat  time.Duration
	set        map[string]bool
}

func parseFlags(args []string) (options, error) {
	def := config.Defaults()
	fs := flag.NewFlagSet("coop-door", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.configPath, "config", "", "YAML config file (empty for built-in defaults)")
	fs.BoolVar(&o.printState, "print-state", false, "Print sensor state and today's schedule, then exit")
	fs.DurationVar(&o.poll, "poll", def.Door.Poll, "Control loop interval (overrides door.poll)")
	fs.StringVar(&o.broker, "broker", def.MQTT.Broker, `MQTT broker address, "" to disable (overrides mqtt.broker)`)
	fs.StringVar(&o.httpAddr, "http", def.HTTP, "HTTP status address, empty to disable (overrides http)")
	fs.DurationVar(&o.heartbeat, "heartbeat", def.Heartbeat, "Heartbeat interval, 0 to disable (overrides heartbeat)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply writes explicitly given flags over cfg.
func (o options) apply(cfg *config.Config) {
	if o.set["poll"] {
		cfg.Door.Poll = o.poll
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["http"] {
		cfg.HTTP = o.httpAddr
	}
	if o.set["heartbeat"] {
		cfg.Heartbeat = o.heartbeat
	}
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, o.printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}
	ctrlCfg, err := cfg.ControllerConfig()
	if err != nil {
		return err
	}
	sched := schedule.New(schedCfg, schedule.SunriseSource{})

	// Initialize hardware
	snapshots := hardware.NewSnapshotSource(cfg.Camera.SnapshotURL, cfg.Camera.Timeout)
	port, err := hardware.NewRealPort(cfg.GPIO.Chip, cfg.GPIO.Pins, snapshots, cfg.GPIO.ThermalPath)
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}

	// Print state mode
	if printState {
		defer port.Shutdown()
		printDoorState(os.Stdout, port, sched, time.Now().In(ctrlCfg.Location))
		return nil
	}

	// Initialize MQTT. Events published before the broker connects are buffered.
	var (
		publisher  mqtt.Publisher = mqtt.Discard
		mqttStatus mqtt.ConnectionStatus
		client     *mqtt.RealPublisher
	)
	if cfg.MQTT.Broker != "" {
		client, err = mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			CACert:     cfg.MQTT.CACert,
			ClientCert: cfg.MQTT.ClientCert,
			ClientKey:  cfg.MQTT.ClientKey,
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			port.Shutdown()
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer client.Close()
		publisher = client
		mqttStatus = client
	} else {
		log.Printf("mqtt disabled: no broker configured")
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Door.Poll.Milliseconds(),
		DebounceMs:  cfg.Door.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		WindowMs:    cfg.Schedule.Window.Milliseconds(),
		Latitude:    cfg.Site.Latitude,
		Longitude:   cfg.Site.Longitude,
		Timezone:    cfg.Site.Timezone,
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctrl := door.New(port, sched, mqtt.NewNotifier(publisher), ctrlCfg)

	if client != nil {
		client.Connect(mqtt.Handlers{
			OnConnect:    func() { tracker.SetMQTTConnected(true) },
			OnDisconnect: func() { tracker.SetMQTTConnected(false) },
			OnCommand:    mqtt.CommandHandler(ctrl),
		})
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start door controller: %w", err)
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, ctrl)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: poll=%v debounce=%v window=%v broker=%s heartbeat=%v",
		cfg.Door.Poll, cfg.Door.Debounce, cfg.Schedule.Window, cfg.MQTT.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Door.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(ctrl, publisher, mqttStatus, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)

	// Stop the motor before the broker connection goes away.
	cancel()
	select {
	case <-ctrl.Done():
	case <-time.After(shutdownTimeout):
		log.Printf("door controller did not stop within %v", shutdownTimeout)
	}
	return err
}

// doorView is the read side of the door controller.
type doorView interface {
	GetDoorInfo() logic.DoorInfo
	Counts() logic.EventCounts
}

// runLoop mirrors controller state into the tracker, publishes heartbeats,
// and returns after publishing SHUTDOWN on the first signal.
func runLoop(view doorView, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	refresh := func() {
		tracker.Update(view.GetDoorInfo(), view.Counts())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			refresh()

			if heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v state=%s opened=%d closed=%d obstructions=%d",
				t.Sub(snap.StartTime).Truncate(time.Second), snap.Door.State,
				snap.Counts.Opened, snap.Counts.Closed, snap.Counts.Obstructions)

			hbEvent := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
