package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout     = 5 * time.Second
	defaultBufferSize  = 1000
	maxBufferBytes     = 16 << 20
	maxBufferAge       = 24 * time.Hour
	connectRetryPeriod = 5 * time.Second
)

// Options holds broker connection settings.
type Options struct {
	Broker     string
	ClientID   string
	CACert     string
	ClientCert string
	ClientKey  string
	// BufferSize is the number of messages kept while disconnected.
	BufferSize int
}

// Handlers holds callback functions for MQTT events.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
	// OnCommand receives payloads published to TopicCommand.
	OnCommand func(payload []byte)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client   paho.Client
	handlers Handlers
	now      func() time.Time

	mu            sync.Mutex
	buffer        *outbox
	everConnected bool
}

// NewRealPublisher creates a publisher for the given broker. Events published
// before Connect are buffered.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	p := &RealPublisher{
		now:    time.Now,
		buffer: newOutbox(o.BufferSize, maxBufferBytes, maxBufferAge),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryPeriod).
		SetKeepAlive(60*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetConnectionLostHandler(p.handleConnectionLost).
		SetOnConnectHandler(p.handleConnect)

	if o.CACert != "" || o.ClientCert != "" {
		tlsConfig, err := buildTLSConfig(o)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	paho.ERROR = log.New(os.Stdout, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stdout, "[MQTT CRIT] ", 0)
	paho.WARN = log.New(os.Stdout, "[MQTT WARN] ", 0)

	p.client = paho.NewClient(opts)
	return p, nil
}

// Connect installs handlers and starts connecting in the background. It does
// not wait for the connection. Call it once.
func (p *RealPublisher) Connect(handlers Handlers) {
	p.handlers = handlers
	// With connect retry enabled the token only completes once connected.
	p.client.Connect()
}

func buildTLSConfig(o Options) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if o.CACert != "" {
		caCert, err := os.ReadFile(o.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", o.CACert)
		}
		tlsConfig.RootCAs = caPool
	}

	if o.ClientCert != "" && o.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(o.ClientCert, o.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Publish sends a door event to the MQTT broker.
func (p *RealPublisher) Publish(event DoorEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1, retained so late subscribers see where the door is
	return p.publish(bufferedMsg{topic: Topic, payload: payload, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// publish sends msg, or buffers it while the connection is down.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buffer.push(msg, p.now())
		return nil
	}
	if err := p.send(msg); err != nil {
		p.buffer.push(msg, p.now())
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) handleConnect(client paho.Client) {
	log.Printf("mqtt: connected")

	if p.handlers.OnCommand != nil {
		token := client.Subscribe(TopicCommand, 1, func(_ paho.Client, msg paho.Message) {
			p.handlers.OnCommand(msg.Payload())
		})
		// Paho handlers must not block on tokens from the same client.
		go func() {
			if token.WaitTimeout(publishTimeout) && token.Error() != nil {
				log.Printf("mqtt: subscribe %s: %v", TopicCommand, token.Error())
			}
		}()
	}

	go p.replay()

	if p.handlers.OnConnect != nil {
		p.handlers.OnConnect()
	}
}

// replay drains the offline buffer, then announces a reconnect.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.buffer.drain(p.now())
	reconnect := p.everConnected
	p.everConnected = true

	for i, msg := range msgs {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay stopped after %d of %d messages: %v", i, len(msgs), err)
			for _, rest := range msgs[i:] {
				p.buffer.push(rest, p.now())
			}
			p.mu.Unlock()
			return
		}
	}
	if len(msgs) > 0 {
		log.Printf("mqtt: replayed %d buffered messages", len(msgs))
	}
	p.mu.Unlock()

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
			log.Printf("mqtt: publish reconnected event: %v", err)
		}
	}
}

func (p *RealPublisher) handleConnectionLost(client paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	if p.handlers.OnDisconnect != nil {
		p.handlers.OnDisconnect()
	}
}
