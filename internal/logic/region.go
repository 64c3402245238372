package logic

// RegionFor classifies tempF against setpointF given the total width of the
// hysteresis band around the setpoint. The checks run in a fixed order and
// the first match wins: a reading exactly at the setpoint is InBandBelow,
// including when hysteresisF is zero. NaN fails every comparison and falls
// through to AtSetPoint.
func RegionFor(tempF, setpointF, hysteresisF float64) Region {
	halfBand := hysteresisF / 2

	switch {
	case tempF < setpointF-halfBand:
		return RegionBelow
	case tempF >= setpointF-halfBand && tempF <= setpointF:
		return RegionInBandBelow
	case tempF <= setpointF+halfBand && tempF >= setpointF:
		return RegionInBandAbove
	case tempF > setpointF+halfBand:
		return RegionAbove
	default:
		return RegionAtSetPoint
	}
}

// PatternFor returns the LED pattern for a region. The in-band LED covers
// the three central regions, so the observer reads direction from the outer
// LEDs and in/out of band from the middle one.
func PatternFor(r Region) Pattern {
	switch r {
	case RegionBelow:
		return Pattern{Below: true}
	case RegionInBandBelow:
		return Pattern{Below: true, InBand: true}
	case RegionAtSetPoint:
		return Pattern{InBand: true}
	case RegionInBandAbove:
		return Pattern{InBand: true, Above: true}
	case RegionAbove:
		return Pattern{Above: true}
	default:
		return Pattern{}
	}
}
