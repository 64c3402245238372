package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/setpoint-indicator/internal/logic"
	"github.com/sweeney/setpoint-indicator/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Setpoint Indicator</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.leds { margin: 1em 0; }
.led { display: inline-block; width: 18px; height: 18px; border-radius: 50%; background: #ddd; margin-right: 6px; vertical-align: middle; }
.led.above.lit { background: orange; }
.led.inband.lit { background: green; }
.led.below.lit { background: #1976d2; }
.led-label { margin-right: 18px; color: #555; }
.above { color: orange; font-weight: bold; }
.inband { color: green; font-weight: bold; }
.below { color: #1976d2; font-weight: bold; }
.waiting { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Setpoint Indicator{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<div class="leds">
<span id="led-above" class="led above{{if .LEDs.Above}} lit{{end}}"></span><span class="led-label">above</span>
<span id="led-inband" class="led inband{{if .LEDs.InBand}} lit{{end}}"></span><span class="led-label">in band</span>
<span id="led-below" class="led below{{if .LEDs.Below}} lit{{end}}"></span><span class="led-label">below</span>
</div>

<h2>Indicator</h2>
<table>
<tr><th>Region</th><td id="region" class="{{.RegionClass}}">{{.Region}}</td></tr>
<tr><th>Applied</th><td id="applied" class="{{.AppliedClass}}">{{.Applied}}</td></tr>
{{if .Ready}}<tr><th>Temperature</th><td id="temp">{{printf "%.1f" .TempF}} &deg;F</td></tr>
<tr><th>Setpoint</th><td id="setpoint">{{printf "%.1f" .SetpointF}} &deg;F</td></tr>{{end}}
<tr><th>Hysteresis</th><td>{{.Config.HysteresisF}} &deg;F band (&plusmn;{{.HalfBandF}} &deg;F)</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Render Counts</h2>
<table>
<tr><th>Below</th><td>{{.Counts.Below}}</td></tr>
<tr><th>In band below</th><td>{{.Counts.InBandBelow}}</td></tr>
<tr><th>At setpoint</th><td>{{.Counts.AtSetPoint}}</td></tr>
<tr><th>In band above</th><td>{{.Counts.InBandAbove}}</td></tr>
<tr><th>Above</th><td>{{.Counts.Above}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Update every</th><td>{{.Config.UpdateEveryMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>Pins</th><td>above={{.Config.PinAbove}} in_band={{.Config.PinInBand}} below={{.Config.PinBelow}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .HasMetrics}} &middot; <a href="/metrics">Metrics</a>{{end}}</p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "energy/heater/indicator/events";
  var dot = document.getElementById("live-dot");
  var aboveEl = document.getElementById("led-above");
  var inBandEl = document.getElementById("led-inband");
  var belowEl = document.getElementById("led-below");
  var regionEl = document.getElementById("region");
  var appliedEl = document.getElementById("applied");
  var tempEl = document.getElementById("temp");
  var spEl = document.getElementById("setpoint");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function setLed(el, role, on) {
    el.className = "led " + role + (on ? " lit" : "");
  }

  function setRegion(el, region) {
    el.textContent = region;
    el.className = region === "BELOW" ? "below" : region === "ABOVE" ? "above" : "inband";
  }

  if (typeof mqtt === "undefined") {
    setDot("err", "mqtt.js not loaded");
    return;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (!msg.indicator) {
        return;
      }
      setLed(aboveEl, "above", msg.indicator.leds.above);
      setLed(inBandEl, "inband", msg.indicator.leds.in_band);
      setLed(belowEl, "below", msg.indicator.leds.below);
      setRegion(regionEl, msg.indicator.to);
      setRegion(appliedEl, msg.indicator.to);
      if (tempEl) {
        tempEl.textContent = msg.indicator.temp_f.toFixed(1) + " °F";
      }
      if (spEl) {
        spEl.textContent = msg.indicator.setpoint_f.toFixed(1) + " °F";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func regionClass(r logic.Region, ready bool) string {
	if !ready {
		return "waiting"
	}
	switch r {
	case logic.RegionBelow:
		return "below"
	case logic.RegionAbove:
		return "above"
	default:
		return "inband"
	}
}

func renderHTML(w io.Writer, snap status.Snapshot, hasMetrics bool) {
	region := "WAITING"
	applied := "WAITING"
	if snap.Ready {
		region = snap.Region.String()
		applied = snap.Applied.String()
	}

	// Dots show the physical LEDs, which stay dark until the first render.
	var leds logic.Pattern
	if snap.Ready && snap.Counts.Total() > 0 {
		leds = logic.PatternFor(snap.Applied)
	}

	data := struct {
		status.Snapshot
		Uptime       time.Duration
		Region       string
		Applied      string
		RegionClass  string
		AppliedClass string
		LEDs         logic.Pattern
		HalfBandF    float64
		HasMetrics   bool
	}{
		Snapshot:     snap,
		Uptime:       snap.Uptime(),
		Region:       region,
		Applied:      applied,
		RegionClass:  regionClass(snap.Region, snap.Ready),
		AppliedClass: regionClass(snap.Applied, snap.Ready),
		LEDs:         leds,
		HalfBandF:    snap.Config.HysteresisF / 2,
		HasMetrics:   hasMetrics,
	}
	indexTmpl.Execute(w, data)
}
