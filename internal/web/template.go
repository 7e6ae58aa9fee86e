package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/coop-door/internal/status"
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
	"stateClass": func(state string) string {
		switch state {
		case "OPEN":
			return "open"
		case "CLOSED":
			return "closed"
		case "OPENING", "CLOSING":
			return "moving"
		}
		return "unknown"
	},
	"percent": func(p float64) string {
		return fmt.Sprintf("%.0f%%", p*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Coop Door</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
button { font-family: monospace; margin: 0 4px 4px 0; }
.open { color: green; font-weight: bold; }
.closed { color: #555; font-weight: bold; }
.moving { color: orange; font-weight: bold; }
.unknown { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Coop Door</h1>

<h2>Door</h2>
<table>
<tr><th>State</th><td id="door-state" class="{{stateClass .State}}">{{.State}}</td></tr>
<tr><th>Direction</th><td>{{.Direction}}</td></tr>
<tr><th>Position</th><td>{{percent .Door.Position}}</td></tr>
<tr><th>Light</th><td>{{if .Door.LightOn}}on{{else}}off{{end}} ({{.LightMode}})</td></tr>
<tr><th>Schedule</th><td>{{with .Door.Schedule}}open {{.Open}}, close {{.Close}}{{else}}unavailable{{end}}</td></tr>
<tr><th>CPU</th><td>{{if .Door.CPUTemperature}}{{printf "%.1f" .Door.CPUTemperature}} &deg;C{{else}}n/a{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Updated}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Control</h2>
<div>
<form method="post" action="/api/door/open"><button>Open</button></form>
<form method="post" action="/api/door/close"><button>Close</button></form>
<form method="post" action="/api/door/stop"><button>Stop</button></form>
</div>
<div>
<form method="post" action="/api/light/on"><button>Light on</button></form>
<form method="post" action="/api/light/off"><button>Light off</button></form>
<form method="post" action="/api/light/auto"><button>Light auto</button></form>
</div>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Opened</th><td>{{.Counts.Opened}}</td></tr>
<tr><th>Closed</th><td>{{.Counts.Closed}}</td></tr>
<tr><th>Obstructions</th><td>{{.Counts.Obstructions}}</td></tr>
<tr><th>Emergency stops</th><td>{{.Counts.EmergencyStops}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Site</th><td>{{printf "%.4f" .Config.Latitude}}, {{printf "%.4f" .Config.Longitude}}{{if .Config.Timezone}} ({{.Config.Timezone}}){{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template needs plain fields for values computed by methods.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		State     string
		Direction string
		LightMode string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		State:     snap.Door.State.String(),
		Direction: snap.Door.Direction.String(),
		LightMode: string(snap.Door.LightMode),
	}
	if data.LightMode == "" {
		data.LightMode = "AUTO"
	}
	return indexTmpl.Execute(w, data)
}
