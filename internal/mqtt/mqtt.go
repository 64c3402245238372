// Package mqtt connects the indicator to the broker: it decodes controller
// state messages into readings and publishes region-change and lifecycle
// events, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/setpoint-indicator/internal/logic"
)

// TopicControllerState carries the heater controller's reading and setpoint.
const TopicControllerState = "energy/heater/controller/state"

// TopicEvents is the MQTT topic for region-change events.
const TopicEvents = "energy/heater/indicator/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/heater/indicator/system"

// EventRegionChange is the event name used in region-change payloads.
const EventRegionChange = "REGION_CHANGE"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a region-change event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Indicator IndicatorPayload `json:"indicator"`
}

// IndicatorPayload contains the region-change event details.
type IndicatorPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	TempF     float64  `json:"temp_f"`
	SetpointF float64  `json:"setpoint_f"`
	LEDs      LEDState `json:"leds"`
}

// LEDState is the rendered pattern carried alongside a region change.
type LEDState struct {
	Above  bool `json:"above"`
	InBand bool `json:"in_band"`
	Below  bool `json:"below"`
}

// FormatPayload creates the JSON payload for a region-change event.
func FormatPayload(event logic.Event) ([]byte, error) {
	pattern := logic.PatternFor(event.To)
	payload := Payload{
		Indicator: IndicatorPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     EventRegionChange,
			From:      event.From.String(),
			To:        event.To.String(),
			TempF:     event.TempF,
			SetpointF: event.SetpointF,
			LEDs: LEDState{
				Above:  pattern.Above,
				InBand: pattern.InBand,
				Below:  pattern.Below,
			},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ControllerState is the envelope the heater controller publishes on
// TopicControllerState.
type ControllerState struct {
	Controller ControllerPayload `json:"controller"`
}

// ControllerPayload contains one controller sample. Pointer fields so a
// missing reading is distinguishable from a zero one.
type ControllerPayload struct {
	Timestamp string   `json:"timestamp"`
	TempF     *float64 `json:"temp_f"`
	SetpointF *float64 `json:"setpoint_f"`
}

// ParseControllerState decodes a controller state message into a Reading.
// The timestamp is optional; a Reading with a zero Time is returned when it
// is absent, and callers should substitute their own clock.
func ParseControllerState(data []byte) (logic.Reading, error) {
	var state ControllerState
	if err := json.Unmarshal(data, &state); err != nil {
		return logic.Reading{}, fmt.Errorf("decode controller state: %w", err)
	}
	if state.Controller.TempF == nil {
		return logic.Reading{}, errors.New("controller state missing temp_f")
	}
	if state.Controller.SetpointF == nil {
		return logic.Reading{}, errors.New("controller state missing setpoint_f")
	}

	reading := logic.Reading{
		TempF:     *state.Controller.TempF,
		SetpointF: *state.Controller.SetpointF,
	}
	if state.Controller.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, state.Controller.Timestamp)
		if err != nil {
			return logic.Reading{}, fmt.Errorf("controller state timestamp: %w", err)
		}
		reading.Time = ts
	}
	return reading, nil
}
