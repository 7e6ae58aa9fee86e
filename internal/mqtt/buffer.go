package mqtt

import (
	"log"
	"time"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type queuedMsg struct {
	msg      bufferedMsg
	queuedAt time.Time
}

// outbox is a bounded FIFO that stores messages while disconnected. Door
// events carry camera frames, so it is bounded by total payload size as well
// as message count. Messages older than maxAge are discarded on drain.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	items    []queuedMsg
	maxCount int
	maxBytes int
	maxAge   time.Duration
	bytes    int
	dropped  int // since last drain
}

func newOutbox(maxCount, maxBytes int, maxAge time.Duration) *outbox {
	return &outbox{maxCount: maxCount, maxBytes: maxBytes, maxAge: maxAge}
}

func (o *outbox) push(msg bufferedMsg, now time.Time) {
	o.items = append(o.items, queuedMsg{msg: msg, queuedAt: now})
	o.bytes += len(msg.payload)

	// The newest message is always kept, even if it alone exceeds maxBytes.
	for len(o.items) > 1 && (len(o.items) > o.maxCount || (o.maxBytes > 0 && o.bytes > o.maxBytes)) {
		if o.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages, %d bytes), dropping oldest", len(o.items), o.bytes)
		}
		o.bytes -= len(o.items[0].msg.payload)
		o.items[0] = queuedMsg{}
		o.items = o.items[1:]
		o.dropped++
	}
}

// drain returns the buffered messages oldest first and empties the outbox.
func (o *outbox) drain(now time.Time) []bufferedMsg {
	if len(o.items) == 0 {
		o.dropped = 0
		return nil
	}

	result := make([]bufferedMsg, 0, len(o.items))
	expired := 0
	for _, q := range o.items {
		if o.maxAge > 0 && now.Sub(q.queuedAt) > o.maxAge {
			expired++
			continue
		}
		result = append(result, q.msg)
	}
	if expired > 0 || o.dropped > 0 {
		log.Printf("mqtt: discarded %d expired and %d overflowed messages", expired, o.dropped)
	}

	o.items = nil
	o.bytes = 0
	o.dropped = 0
	if len(result) == 0 {
		return nil
	}
	return result
}

func (o *outbox) len() int {
	return len(o.items)
}
