// Package logic contains pure business logic for classifying a temperature
// reading against its setpoint. This package has NO external dependencies
// (no GPIO, MQTT, OS, or time.Sleep). Time is always injectable via
// time.Time parameters.
package logic

import "time"

// Region identifies where a measured temperature sits relative to the
// setpoint and its hysteresis band, ordered from coldest to hottest.
type Region int

const (
	RegionBelow Region = iota
	RegionInBandBelow
	RegionAtSetPoint
	RegionInBandAbove
	RegionAbove
)

// String returns the region name as used in event payloads.
func (r Region) String() string {
	switch r {
	case RegionBelow:
		return "BELOW"
	case RegionInBandBelow:
		return "IN_BAND_BELOW"
	case RegionAtSetPoint:
		return "AT_SETPOINT"
	case RegionInBandAbove:
		return "IN_BAND_ABOVE"
	case RegionAbove:
		return "ABOVE"
	default:
		return "UNKNOWN"
	}
}

// Pattern is the on/off state of the three indicator LEDs for one region.
type Pattern struct {
	Above  bool
	InBand bool
	Below  bool
}

// Reading is a single controller sample, already decoded from transport.
type Reading struct {
	TempF     float64
	SetpointF float64
	Time      time.Time
}

// Event represents a region transition to be published.
type Event struct {
	Timestamp time.Time
	From      Region
	To        Region
	TempF     float64
	SetpointF float64
}

// RegionCounts tracks the number of times each region has been rendered to
// the LEDs since startup.
type RegionCounts struct {
	Below       int
	InBandBelow int
	AtSetPoint  int
	InBandAbove int
	Above       int
}

// Total returns the number of renders across all regions.
func (c RegionCounts) Total() int {
	return c.Below + c.InBandBelow + c.AtSetPoint + c.InBandAbove + c.Above
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    RegionCounts
}
