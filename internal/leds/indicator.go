// Package leds renders the relationship between a temperature reading and
// its setpoint onto three indicator LEDs. Rendering is rate-limited and
// change-gated so a polling loop can call Update on every iteration.
package leds

import (
	"time"

	"github.com/sweeney/setpoint-indicator/internal/gpio"
	"github.com/sweeney/setpoint-indicator/internal/logic"
)

// selfTestDwell is how long each self-test step stays lit.
const selfTestDwell = 250 * time.Millisecond

// Indicator owns the three LED lines and decides when they change.
// It is not safe for concurrent use; drive it from a single loop.
type Indicator struct {
	above  gpio.Pin
	inBand gpio.Pin
	below  gpio.Pin

	hysteresisF float64
	updateEvery time.Duration

	// region is the most recently classified region. lastApplied is what
	// the LEDs currently show; both start at AtSetPoint so nothing renders
	// until the first reading moves the region.
	region      logic.Region
	lastApplied logic.Region
	lastUpdate  time.Time

	counts        logic.RegionCounts
	startTime     time.Time
	lastHeartbeat time.Time

	// sleep is swapped out in tests so SelfTest does not stall the suite.
	sleep func(time.Duration)
}

// New creates an Indicator driving the three LED lines. The LEDs are not
// touched until Begin runs. The startTime is used for calculating uptime in
// heartbeat events.
func New(above, inBand, below gpio.Pin, hysteresisF float64, updateEvery time.Duration, startTime time.Time) *Indicator {
	return &Indicator{
		above:         above,
		inBand:        inBand,
		below:         below,
		hysteresisF:   hysteresisF,
		updateEvery:   updateEvery,
		region:        logic.RegionAtSetPoint,
		lastApplied:   logic.RegionAtSetPoint,
		startTime:     startTime,
		lastHeartbeat: startTime,
		sleep:         time.Sleep,
	}
}

// Begin blanks all three LEDs. Call this once before the polling loop.
func (i *Indicator) Begin() error {
	return i.writeAll(false)
}

// Observe classifies the latest reading and records it as the current
// region. It never touches the LEDs; Update does the rendering.
func (i *Indicator) Observe(tempF, setpointF float64) logic.Region {
	i.region = logic.RegionFor(tempF, setpointF, i.hysteresisF)
	return i.region
}

// Update renders the current region if the minimum interval has elapsed and
// the region differs from what the LEDs already show. The rate-limit window
// resets every time the interval elapses, whether or not anything renders.
// Reports whether a render was applied.
func (i *Indicator) Update(now time.Time) (bool, error) {
	if now.Sub(i.lastUpdate) < i.updateEvery {
		return false, nil
	}
	i.lastUpdate = now

	if i.region == i.lastApplied {
		return false, nil
	}
	i.lastApplied = i.region

	switch i.region {
	case logic.RegionBelow:
		i.counts.Below++
	case logic.RegionInBandBelow:
		i.counts.InBandBelow++
	case logic.RegionAtSetPoint:
		i.counts.AtSetPoint++
	case logic.RegionInBandAbove:
		i.counts.InBandAbove++
	case logic.RegionAbove:
		i.counts.Above++
	}

	return true, i.render(logic.PatternFor(i.region))
}

// SelfTest steps each LED in turn, lights all three together, blanks them,
// then steps each again. It blocks for eight dwell periods (about two
// seconds) and is meant to run once at startup, before the polling loop.
func (i *Indicator) SelfTest() error {
	step := []gpio.Pin{i.below, i.inBand, i.above}

	for _, pin := range step {
		if err := pin.Set(true); err != nil {
			return err
		}
		i.sleep(selfTestDwell)
		if err := pin.Set(false); err != nil {
			return err
		}
	}

	if err := i.writeAll(true); err != nil {
		return err
	}
	i.sleep(selfTestDwell)
	if err := i.writeAll(false); err != nil {
		return err
	}
	i.sleep(selfTestDwell)

	for _, pin := range step {
		if err := pin.Set(true); err != nil {
			return err
		}
		i.sleep(selfTestDwell)
		if err := pin.Set(false); err != nil {
			return err
		}
	}

	return nil
}

// AllOff forces all three LEDs dark, bypassing the rate limit and change
// gate. Region bookkeeping is untouched, so a later Update only re-renders
// once the classified region actually moves.
func (i *Indicator) AllOff() error {
	return i.writeAll(false)
}

// Region returns the most recently classified region.
func (i *Indicator) Region() logic.Region {
	return i.region
}

// Applied returns the region the LEDs were last rendered for.
func (i *Indicator) Applied() logic.Region {
	return i.lastApplied
}

// Counts returns how many times each region has been rendered.
func (i *Indicator) Counts() logic.RegionCounts {
	return i.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (i *Indicator) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(i.lastHeartbeat) < interval {
		return nil
	}

	i.lastHeartbeat = now
	return &logic.HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(i.startTime),
		Counts:    i.counts,
	}
}

// render writes one pattern to the pins, above first, then in-band, then
// below.
func (i *Indicator) render(p logic.Pattern) error {
	if err := i.above.Set(p.Above); err != nil {
		return err
	}
	if err := i.inBand.Set(p.InBand); err != nil {
		return err
	}
	return i.below.Set(p.Below)
}

func (i *Indicator) writeAll(on bool) error {
	if err := i.above.Set(on); err != nil {
		return err
	}
	if err := i.inBand.Set(on); err != nil {
		return err
	}
	return i.below.Set(on)
}
