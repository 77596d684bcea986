package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/cheese-cave/internal/status"
	"github.com/sweeney/cheese-cave/internal/telemetry"
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
	"round2": telemetry.Round2,
	"fanClass": func(s string) string {
		switch s {
		case "On":
			return "on"
		case "Off":
			return "off"
		case "Failed":
			return "failed"
		default:
			return "unknown"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Cheese Cave</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.failed { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Cheese Cave</h1>

<h2>State</h2>
<table>
<tr><th>Fan</th><td class="{{fanClass (printf "%s" .FanState)}}">{{if .FanState}}{{.FanState}}{{else}}UNKNOWN{{end}}</td></tr>
{{if .Fault}}<tr><th>Fault</th><td class="failed">{{.Fault}}</td></tr>{{end}}
{{with .LastReading}}<tr><th>Temperature</th><td>{{round2 .TemperatureF}} &deg;F</td></tr>
<tr><th>Humidity</th><td>{{round2 .HumidityPct}} %</td></tr>
<tr><th>Read at</th><td>{{.Time.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{else}}<tr><th>Reading</th><td class="unknown">none yet</td></tr>{{end}}
<tr><th>Limits</th><td>&plusmn;{{.Limits.TemperatureF}} &deg;F, &plusmn;{{.Limits.HumidityPct}} %</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Device</th><td>{{.Config.DeviceID}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Reports sent</th><td>{{.Counts.ReportsSent}}</td></tr>
<tr><th>Reports dropped</th><td>{{.Counts.ReportsDropped}}</td></tr>
<tr><th>Sensor errors</th><td>{{.Counts.SensorErrors}}</td></tr>
<tr><th>Commands applied</th><td>{{.Counts.CommandsApplied}}</td></tr>
<tr><th>Commands rejected</th><td>{{.Counts.CommandsRejected}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Fan pin</th><td>{{.Config.Pin}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type limits struct {
	TemperatureF float64
	HumidityPct  float64
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Limits limits
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Limits:   limits{status.DesiredTempLimitF, status.DesiredHumidityLimitPct},
	}
	indexTmpl.Execute(w, data)
}
