package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/param-actuator/internal/status"
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
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: orange; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
#feed { max-height: 12em; overflow-y: auto; }
</style>
</head>
<body>
<h1>{{.Config.Name}}<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Gate</h2>
<table>
<tr><th>Cooldown</th><td class="{{if .CooldownActive}}active{{else}}idle{{end}}">{{if .CooldownActive}}active{{else}}idle{{end}}</td></tr>
<tr><th>Debounced</th><td>{{range $i, $p := .Debounced}}{{if $i}}, {{end}}{{$p}}{{else}}none{{end}}</td></tr>
{{with .LastFire}}<tr><th>Last fire</th><td>{{.Param}} {{.Operation}} intensity {{.Intensity}} for {{.Duration}}s (cooldown {{ms .Cooldown}}ms)</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Fires</th><td id="count-fire">{{.Counts.Fires}}</td></tr>
<tr><th>Suppressed</th><td id="count-suppressed">{{.Counts.Suppressed}}</td></tr>
<tr><th>Debounce cleared</th><td id="count-cleared">{{.Counts.DebounceCleared}}</td></tr>
<tr><th>Dropped</th><td>{{.Counts.Dropped}}</td></tr>
<tr><th>Requests sent</th><td>{{.Dispatch.Sent}}</td></tr>
<tr><th>Requests failed</th><td>{{.Dispatch.Failed}}</td></tr>
<tr><th>Interlock skips</th><td>{{.Dispatch.Skipped}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>OSC port</th><td>{{.Config.OSCPort}}</td></tr>
<tr><th>OSC received</th><td>{{.OSC.Received}} ({{.OSC.Malformed}} malformed)</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cooldown base</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>Parameters</th><td>{{range $i, $p := .Config.Params}}{{if $i}}, {{end}}{{$p}}{{end}}</td></tr>
<tr><th>Devices</th><td>{{.Config.Devices}}</td></tr>
<tr><th>Config reloads</th><td>{{.Reloads}}</td></tr>
</table>

<h2>Live</h2>
<ul id="feed"></ul>

<p><a href="/status.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var feed = document.getElementById("feed");
  var counters = {
    FIRE: document.getElementById("count-fire"),
    SUPPRESSED: document.getElementById("count-suppressed"),
    DEBOUNCE_CLEARED: document.getElementById("count-cleared")
  };

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.type !== "action") { return; }
        var a = msg.data;
        var el = counters[a.kind];
        if (el) { el.textContent = parseInt(el.textContent, 10) + 1; }
        var li = document.createElement("li");
        li.textContent = msg.ts + " " + a.kind + " " + a.param + "=" + a.value + (a.reason ? " (" + a.reason + ")" : "");
        feed.insertBefore(li, feed.firstChild);
        while (feed.children.length > 50) { feed.removeChild(feed.lastChild); }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
