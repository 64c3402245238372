package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while
// disconnected, discarding the oldest once full.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	buf     []bufferedMsg
	tail    int // next write position
	count   int
	dropped int // messages discarded since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == len(r.buf) {
		if r.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", len(r.buf))
		}
		r.dropped++
		// tail points at the oldest entry when full; overwrite it
		r.buf[r.tail] = msg
		r.tail = (r.tail + 1) % len(r.buf)
		return
	}

	r.buf[r.tail] = msg
	r.tail = (r.tail + 1) % len(r.buf)
	r.count++
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	if r.dropped > 0 {
		log.Printf("mqtt: %d messages lost while disconnected", r.dropped)
	}

	out := make([]bufferedMsg, r.count)
	start := (r.tail - r.count + len(r.buf)) % len(r.buf)
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}

	r.count = 0
	r.tail = 0
	r.dropped = 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
