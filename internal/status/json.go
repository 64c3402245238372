package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Region        string       `json:"region"`
	Applied       string       `json:"applied_region"`
	Ready         bool         `json:"ready"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"render_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the last controller reading.
type ReadingJSON struct {
	TempF     float64 `json:"temp_f"`
	SetpointF float64 `json:"setpoint_f"`
	Time      string  `json:"time,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of per-region render counts.
type CountsJSON struct {
	Below       int `json:"below"`
	InBandBelow int `json:"in_band_below"`
	AtSetPoint  int `json:"at_setpoint"`
	InBandAbove int `json:"in_band_above"`
	Above       int `json:"above"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64   `json:"poll_ms"`
	UpdateEveryMs int64   `json:"update_every_ms"`
	HysteresisF   float64 `json:"hysteresis_f"`
	HeartbeatMs   int64   `json:"heartbeat_ms"`
	Broker        string  `json:"broker"`
	HTTPAddr      string  `json:"http_addr"`
	WSBroker      string  `json:"ws_broker,omitempty"`
	PinAbove      int     `json:"pin_above"`
	PinInBand     int     `json:"pin_in_band"`
	PinBelow      int     `json:"pin_below"`
}

func buildInner(snap Snapshot) StatusInner {
	// Until the first controller reading the boot-state region is a guess,
	// so both region fields report WAITING instead.
	region := "WAITING"
	applied := "WAITING"
	if snap.Ready {
		region = snap.Region.String()
		applied = snap.Applied.String()
	}

	inner := StatusInner{
		Region:        region,
		Applied:       applied,
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Below:       snap.Counts.Below,
			InBandBelow: snap.Counts.InBandBelow,
			AtSetPoint:  snap.Counts.AtSetPoint,
			InBandAbove: snap.Counts.InBandAbove,
			Above:       snap.Counts.Above,
		},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			UpdateEveryMs: snap.Config.UpdateEveryMs,
			HysteresisF:   snap.Config.HysteresisF,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			WSBroker:      snap.Config.WSBroker,
			PinAbove:      snap.Config.PinAbove,
			PinInBand:     snap.Config.PinInBand,
			PinBelow:      snap.Config.PinBelow,
		},
	}

	if snap.Ready {
		reading := &ReadingJSON{
			TempF:     snap.TempF,
			SetpointF: snap.SetpointF,
		}
		if !snap.ReadingTime.IsZero() {
			reading.Time = snap.ReadingTime.UTC().Format(time.RFC3339)
		}
		inner.Reading = reading
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
