package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sweeney/setpoint-indicator/internal/gpio"
	"github.com/sweeney/setpoint-indicator/internal/leds"
	"github.com/sweeney/setpoint-indicator/internal/logic"
	"github.com/sweeney/setpoint-indicator/internal/mqtt"
	"github.com/sweeney/setpoint-indicator/internal/status"
	"github.com/sweeney/setpoint-indicator/internal/web"
)

var integrationStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newIndicator(updateEvery time.Duration) (*leds.Indicator, *gpio.FakePin, *gpio.FakePin, *gpio.FakePin) {
	above := &gpio.FakePin{}
	inBand := &gpio.FakePin{}
	below := &gpio.FakePin{}
	ind := leds.New(above, inBand, below, 4, updateEvery, integrationStart)
	return ind, above, inBand, below
}

// drive simulates the main loop: one reading per step, render, publish on
// change. Publish errors are ignored just like the daemon ignores them.
func drive(t *testing.T, ind *leds.Indicator, pub *mqtt.FakePublisher, start time.Time, step time.Duration, setpoint float64, temps []float64) {
	t.Helper()
	for i, temp := range temps {
		now := start.Add(time.Duration(i) * step)
		ind.Observe(temp, setpoint)

		prev := ind.Applied()
		rendered, err := ind.Update(now)
		if err != nil {
			t.Fatalf("step %d: render error: %v", i, err)
		}
		if rendered {
			pub.Publish(logic.Event{
				Timestamp: now,
				From:      prev,
				To:        ind.Applied(),
				TempF:     temp,
				SetpointF: setpoint,
			})
		}
	}
}

// TestIntegrationFullFlow walks a temperature trace through every region and
// checks the published events, their payloads, and the final LED state.
func TestIntegrationFullFlow(t *testing.T) {
	ind, above, inBand, below := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()

	// Setpoint 100, hysteresis 4: the band is [98, 102], split at the
	// setpoint itself
	drive(t, ind, pub, integrationStart, time.Second, 100,
		[]float64{90, 99, 101, 108, 99})

	want := []logic.Region{
		logic.RegionBelow,
		logic.RegionInBandBelow,
		logic.RegionInBandAbove,
		logic.RegionAbove,
		logic.RegionInBandBelow,
	}

	if len(pub.Events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(pub.Events))
	}

	from := logic.RegionAtSetPoint // boot state
	for i, ev := range pub.Events {
		if ev.From != from {
			t.Errorf("event %d: From: got %s, want %s", i, ev.From, from)
		}
		if ev.To != want[i] {
			t.Errorf("event %d: To: got %s, want %s", i, ev.To, want[i])
		}
		from = want[i]
	}

	// Every payload carries the LED pattern for its target region
	for i, raw := range pub.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Indicator.Event != "REGION_CHANGE" {
			t.Errorf("payload %d: event: got %q", i, parsed.Indicator.Event)
		}
		if parsed.Indicator.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		pattern := logic.PatternFor(pub.Events[i].To)
		got := parsed.Indicator.LEDs
		if got.Above != pattern.Above || got.InBand != pattern.InBand || got.Below != pattern.Below {
			t.Errorf("payload %d: leds: got %+v, want %+v", i, got, pattern)
		}
	}

	// Final reading was 99: in-band below lights the in-band and below LEDs
	if above.State {
		t.Error("above LED should be dark")
	}
	if !inBand.State {
		t.Error("in-band LED should be lit")
	}
	if !below.State {
		t.Error("below LED should be lit")
	}

	counts := ind.Counts()
	if counts.Total() != 5 {
		t.Errorf("total renders: got %d, want 5", counts.Total())
	}
	if counts.InBandBelow != 2 {
		t.Errorf("in-band-below renders: got %d, want 2", counts.InBandBelow)
	}
}

// TestIntegrationControllerStateToLEDs follows a raw broker message all the
// way to the pins.
func TestIntegrationControllerStateToLEDs(t *testing.T) {
	raw := []byte(`{"controller":{"timestamp":"2026-02-02T22:18:12Z","temp_f":108.2,"setpoint_f":100}}`)

	reading, err := mqtt.ParseControllerState(raw)
	if err != nil {
		t.Fatalf("parse controller state: %v", err)
	}

	ind, above, inBand, below := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()
	drive(t, ind, pub, integrationStart, time.Second, reading.SetpointF, []float64{reading.TempF})

	if !above.State || inBand.State || below.State {
		t.Errorf("expected only above lit: above=%v in_band=%v below=%v",
			above.State, inBand.State, below.State)
	}

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.Events))
	}
	if pub.Events[0].To != logic.RegionAbove {
		t.Errorf("To: got %s, want ABOVE", pub.Events[0].To)
	}
	if pub.Events[0].TempF != 108.2 {
		t.Errorf("TempF: got %v, want 108.2", pub.Events[0].TempF)
	}
}

// TestIntegrationRateLimitCoalesces verifies fast region traffic collapses to
// the latest region once the render window reopens.
func TestIntegrationRateLimitCoalesces(t *testing.T) {
	ind, _, _, _ := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()

	// Readings every 100ms against a 500ms render interval; the ramp
	// through the band lands inside one closed window
	drive(t, ind, pub, integrationStart, 100*time.Millisecond, 100,
		[]float64{90, 99, 100, 101, 108, 108})

	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.Events))
	}
	if pub.Events[0].To != logic.RegionBelow {
		t.Errorf("event 0: To: got %s, want BELOW", pub.Events[0].To)
	}
	if pub.Events[1].From != logic.RegionBelow || pub.Events[1].To != logic.RegionAbove {
		t.Errorf("event 1: got %s -> %s, want BELOW -> ABOVE", pub.Events[1].From, pub.Events[1].To)
	}

	counts := ind.Counts()
	if counts.InBandBelow != 0 || counts.AtSetPoint != 0 || counts.InBandAbove != 0 {
		t.Errorf("intermediate regions should never render: %+v", counts)
	}
}

// TestIntegrationChangeGate verifies a stable region produces exactly one
// event no matter how many readings arrive.
func TestIntegrationChangeGate(t *testing.T) {
	ind, _, _, _ := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()

	drive(t, ind, pub, integrationStart, time.Second, 100,
		[]float64{99, 99.2, 98.8, 99.5, 99})

	if len(pub.Events) != 1 {
		t.Errorf("expected 1 event for a stable region, got %d", len(pub.Events))
	}
}

// TestIntegrationStatusServer runs the pipeline and reads the result back
// through the HTTP status endpoints.
func TestIntegrationStatusServer(t *testing.T) {
	ind, _, _, _ := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(integrationStart, status.Config{
		PollMs:        100,
		UpdateEveryMs: 500,
		HysteresisF:   4,
		HeartbeatMs:   900000,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":80",
		WSBroker:      "ws://192.168.1.200:9001",
		PinAbove:      gpio.DefaultPinAbove,
		PinInBand:     gpio.DefaultPinInBand,
		PinBelow:      gpio.DefaultPinBelow,
	})

	drive(t, ind, pub, integrationStart, time.Second, 100, []float64{99})
	tracker.SetReading(logic.Reading{TempF: 99, SetpointF: 100, Time: integrationStart})
	tracker.Update(ind.Region(), ind.Applied(), ind.Counts())
	tracker.SetMQTTConnected(true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := web.New(ln.Addr().String(), tracker, nil)
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var parsed status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode status JSON: %v", err)
	}

	if parsed.Status.Region != "IN_BAND_BELOW" {
		t.Errorf("region: got %q, want IN_BAND_BELOW", parsed.Status.Region)
	}
	if parsed.Status.Applied != "IN_BAND_BELOW" {
		t.Errorf("applied_region: got %q, want IN_BAND_BELOW", parsed.Status.Applied)
	}
	if !parsed.Status.Ready {
		t.Error("expected ready=true")
	}
	if parsed.Status.Reading == nil || parsed.Status.Reading.TempF != 99 {
		t.Errorf("reading: got %+v, want temp_f 99", parsed.Status.Reading)
	}
	if parsed.Status.Counts.InBandBelow != 1 {
		t.Errorf("render_counts.in_band_below: got %d, want 1", parsed.Status.Counts.InBandBelow)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected mqtt.connected=true")
	}
	if parsed.Status.Config.HysteresisF != 4 {
		t.Errorf("config.hysteresis_f: got %v, want 4", parsed.Status.Config.HysteresisF)
	}
	if parsed.Status.Config.WSBroker != "ws://192.168.1.200:9001" {
		t.Errorf("config.ws_broker: got %q, want ws://192.168.1.200:9001", parsed.Status.Config.WSBroker)
	}
}

// TestIntegrationLifecycle publishes the full STARTUP / HEARTBEAT / SHUTDOWN
// sequence the daemon emits, with the status snapshot as payload.
func TestIntegrationLifecycle(t *testing.T) {
	ind, _, _, _ := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(integrationStart, status.Config{Broker: "tcp://192.168.1.200:1883"})

	// STARTUP before any reading
	snap := tracker.Snapshot()
	snap.Now = integrationStart
	if err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  integrationStart,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		t.Fatalf("startup publish: %v", err)
	}

	// Some region traffic
	drive(t, ind, pub, integrationStart.Add(time.Second), time.Second, 100, []float64{99})
	tracker.SetReading(logic.Reading{TempF: 99, SetpointF: 100})
	tracker.Update(ind.Region(), ind.Applied(), ind.Counts())

	// HEARTBEAT
	hb := ind.CheckHeartbeat(integrationStart.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat to be due")
	}
	snap = tracker.Snapshot()
	snap.Now = hb.Timestamp
	if err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  hb.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}); err != nil {
		t.Fatalf("heartbeat publish: %v", err)
	}

	// SHUTDOWN
	shutdownTime := integrationStart.Add(20 * time.Minute)
	snap = tracker.Snapshot()
	snap.Now = shutdownTime
	if err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  shutdownTime,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"),
	}); err != nil {
		t.Fatalf("shutdown publish: %v", err)
	}

	if len(pub.SystemEvents) != 3 {
		t.Fatalf("expected 3 system events, got %d", len(pub.SystemEvents))
	}
	order := []string{"STARTUP", "HEARTBEAT", "SHUTDOWN"}
	for i, want := range order {
		if pub.SystemEvents[i].Event != want {
			t.Errorf("system event %d: got %s, want %s", i, pub.SystemEvents[i].Event, want)
		}
	}
	if !pub.SystemEvents[2].Retained {
		t.Error("shutdown event should be retained")
	}

	// Raw payloads are full status documents
	var startup status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &startup); err != nil {
		t.Fatalf("startup payload: invalid JSON: %v", err)
	}
	if startup.Status.Event != "STARTUP" {
		t.Errorf("startup payload event: got %q", startup.Status.Event)
	}
	if startup.Status.Region != "WAITING" {
		t.Errorf("startup payload region: got %q, want WAITING", startup.Status.Region)
	}
	if startup.Status.Ready {
		t.Error("startup payload should not be ready")
	}

	var heartbeat status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[1], &heartbeat); err != nil {
		t.Fatalf("heartbeat payload: invalid JSON: %v", err)
	}
	if heartbeat.Status.Event != "HEARTBEAT" {
		t.Errorf("heartbeat payload event: got %q", heartbeat.Status.Event)
	}
	if !heartbeat.Status.Ready {
		t.Error("heartbeat payload should be ready")
	}
	if heartbeat.Status.UptimeSeconds != 900 {
		t.Errorf("heartbeat uptime: got %d, want 900", heartbeat.Status.UptimeSeconds)
	}
	if heartbeat.Status.Counts.InBandBelow != 1 {
		t.Errorf("heartbeat render_counts.in_band_below: got %d, want 1", heartbeat.Status.Counts.InBandBelow)
	}

	var shutdown status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[2], &shutdown); err != nil {
		t.Fatalf("shutdown payload: invalid JSON: %v", err)
	}
	if shutdown.Status.Event != "SHUTDOWN" {
		t.Errorf("shutdown payload event: got %q", shutdown.Status.Event)
	}
	if shutdown.Status.Reason != "SIGTERM" {
		t.Errorf("shutdown payload reason: got %q", shutdown.Status.Reason)
	}
}

// TestIntegrationPublishFailureKeepsRendering verifies broker trouble never
// stops the LEDs.
func TestIntegrationPublishFailureKeepsRendering(t *testing.T) {
	ind, _, _, below := newIndicator(500 * time.Millisecond)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker unreachable")

	drive(t, ind, pub, integrationStart, time.Second, 100, []float64{90})

	if !below.State {
		t.Error("below LED should be lit despite publish failure")
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected no recorded events while publishing fails, got %d", len(pub.Events))
	}

	// Broker comes back: next change publishes normally
	pub.PublishError = nil
	drive(t, ind, pub, integrationStart.Add(10*time.Second), time.Second, 100, []float64{108})

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 event after recovery, got %d", len(pub.Events))
	}
	if pub.Events[0].From != logic.RegionBelow || pub.Events[0].To != logic.RegionAbove {
		t.Errorf("event: got %s -> %s, want BELOW -> ABOVE", pub.Events[0].From, pub.Events[0].To)
	}
}
