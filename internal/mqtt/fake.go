package mqtt

import "sync"

// Message is one publish as a broker would see it.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakePublisher stands in for the broker in tests. It records every publish
// in order and keeps the last retained payload per topic the way a broker
// would. Publishing is safe from multiple goroutines; read the exported
// slices only once publishing has finished, or use the accessor methods.
type FakePublisher struct {
	mu sync.Mutex

	// Events and Payloads hold the door events and their JSON.
	Events   []DoorEvent
	Payloads [][]byte

	// SystemEvents and SystemPayloads hold lifecycle events and their JSON.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Messages holds every successful publish across both topics.
	Messages []Message

	// PublishError and PublishSystemError fail the matching call when set.
	PublishError       error
	PublishSystemError error

	// Closed is set by Close. Connected is returned by IsConnected.
	Closed    bool
	Connected bool

	retained map[string][]byte
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) record(topic string, payload []byte, retained bool) {
	f.Messages = append(f.Messages, Message{Topic: topic, Payload: payload, Retained: retained})
	if !retained {
		return
	}
	if f.retained == nil {
		f.retained = make(map[string][]byte)
	}
	f.retained[topic] = payload
}

// Publish records the door event as a retained message on Topic.
func (f *FakePublisher) Publish(event DoorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	f.record(Topic, payload, true)
	return nil
}

// PublishSystem records the system event on TopicSystem.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	f.record(TopicSystem, payload, event.Retained)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// DoorEvents returns a copy of the recorded door events.
func (f *FakePublisher) DoorEvents() []DoorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DoorEvent(nil), f.Events...)
}

// Retained returns the payload a new subscriber to topic would receive, or
// nil when nothing retained was published there.
func (f *FakePublisher) Retained(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retained[topic]
}

// Reset forgets everything recorded and clears scripted errors and flags.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events, f.Payloads = nil, nil
	f.SystemEvents, f.SystemPayloads = nil, nil
	f.Messages, f.retained = nil, nil
	f.PublishError, f.PublishSystemError = nil, nil
	f.Closed, f.Connected = false, false
}
