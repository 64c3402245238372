// Package status provides a thread-safe status tracker for the
// setpoint-indicator daemon. It is read by HTTP handlers and serialized
// into MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/setpoint-indicator/internal/logic"
)

// NetworkInfo contains network state as reported by the pi-helper service.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	UpdateEveryMs int64
	HysteresisF   float64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	WSBroker      string // websocket broker URL for browser MQTT (empty = disabled)
	PinAbove      int
	PinInBand     int
	PinBelow      int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Region        logic.Region
	Applied       logic.Region
	Ready         bool // true once a controller reading has been received
	TempF         float64
	SetpointF     float64
	ReadingTime   time.Time
	Counts        logic.RegionCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// Region and Applied start at AT_SETPOINT to mirror the LED driver's
// boot state, though neither is reported until a reading arrives.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Region:    logic.RegionAtSetPoint,
			Applied:   logic.RegionAtSetPoint,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the classified and applied regions and the render counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(region, applied logic.Region, counts logic.RegionCounts) {
	t.mu.Lock()
	t.snap.Region = region
	t.snap.Applied = applied
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetReading records the latest controller reading and marks the daemon
// ready. Called whenever a controller state message arrives.
func (t *Tracker) SetReading(r logic.Reading) {
	t.mu.Lock()
	t.snap.TempF = r.TempF
	t.snap.SetpointF = r.SetpointF
	t.snap.ReadingTime = r.Time
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
