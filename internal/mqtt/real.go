package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/setpoint-indicator/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// bufferCapacity bounds how many undelivered messages are held for
	// replay while the broker is unreachable.
	bufferCapacity = 128

	// readingsBacklog is the channel depth between the paho callback and
	// the polling loop.
	readingsBacklog = 16
)

// Client talks to an actual MQTT broker: it subscribes to controller state
// and publishes indicator events. Messages that cannot be delivered are
// buffered and replayed on reconnect.
type Client struct {
	client   paho.Client
	readings chan logic.Reading

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewClient connects to the given broker. The client id carries a random
// suffix so several indicators can share a broker, and the broker holds a
// will that reports an unclean disconnect on the system topic.
func NewClient(broker string) (*Client, error) {
	c := &Client{
		readings: make(chan logic.Reading, readingsBacklog),
		buffer:   newRingBuffer(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("setpoint-indicator-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// Readings returns the channel on which decoded controller state arrives.
func (c *Client) Readings() <-chan logic.Reading {
	return c.readings
}

// onConnect runs on every (re)connect: the subscription does not survive a
// clean session, so it is re-established here, then buffered messages drain.
func (c *Client) onConnect(pc paho.Client) {
	token := pc.Subscribe(TopicControllerState, 0, c.handleControllerState)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("mqtt: subscribe timeout on %s", TopicControllerState)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", TopicControllerState, err)
	}

	c.replayBuffered(pc)
}

// handleControllerState decodes an incoming sample and hands it to the
// polling loop without blocking paho's router goroutine.
func (c *Client) handleControllerState(_ paho.Client, msg paho.Message) {
	reading, err := ParseControllerState(msg.Payload())
	if err != nil {
		log.Printf("mqtt: bad controller state: %v", err)
		return
	}
	if reading.Time.IsZero() {
		reading.Time = time.Now()
	}

	select {
	case c.readings <- reading:
	default:
		log.Printf("mqtt: dropping controller state, loop not keeping up")
	}
}

// Publish sends a region-change event to the MQTT broker.
func (c *Client) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return c.send(TopicEvents, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *Client) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return c.send(TopicSystem, 1, event.Retained, payload)
}

// send delivers one message, buffering it for replay when the broker is
// unreachable. A buffered message still reports an error so callers can log
// the delayed delivery.
func (c *Client) send(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	if !c.client.IsConnectionOpen() {
		n := c.stash(msg)
		return fmt.Errorf("not connected, buffered message (%d pending)", n)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		n := c.stash(msg)
		return fmt.Errorf("publish timeout, buffered message (%d pending)", n)
	}
	if err := token.Error(); err != nil {
		n := c.stash(msg)
		return fmt.Errorf("publish (buffered, %d pending): %w", n, err)
	}

	return nil
}

func (c *Client) stash(msg bufferedMsg) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer.push(msg)
	return c.buffer.len()
}

// replayBuffered drains messages queued while disconnected. Anything that
// fails again goes back on the buffer for the next reconnect.
func (c *Client) replayBuffered(pc paho.Client) {
	c.mu.Lock()
	msgs := c.buffer.drainAll()
	c.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	for i, m := range msgs {
		token := pc.Publish(m.topic, m.qos, m.retained, m.payload)
		var err error
		if !token.WaitTimeout(publishTimeout) {
			err = fmt.Errorf("publish timeout")
		} else {
			err = token.Error()
		}
		if err != nil {
			log.Printf("mqtt: replay failed after %d messages: %v", i, err)
			c.mu.Lock()
			for _, rest := range msgs[i:] {
				c.buffer.push(rest)
			}
			c.mu.Unlock()
			return
		}
	}
}

// IsConnected reports whether the connection to the broker is open.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
