package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"calgrid/internal/controller"
	appLog "calgrid/internal/log"
	"calgrid/internal/maintenance"
)

var pageFuncs = template.FuncMap{
	"pct": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 4, 64) + "%"
	},
	"tierClass": func(t maintenance.Tier) string {
		return "tier-" + string(t)
	},
	"barClass": func(class string) string {
		if class == "" {
			return "bar"
		}
		return "bar bar-" + class
	},
}

type pageData struct {
	Ready bool
	Error string
	View  controller.View
}

// handleCalendar renders the month grid and the maintenance list as a
// standalone page. The root element carries data-ready="true" only once data
// is loaded, so headless capture can wait for it.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	data := pageData{}
	view, err := s.cal.View()
	if err != nil {
		data.Error = err.Error()
	} else {
		data.Ready = true
		data.View = view
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		appLog.Error("render calendar page failed", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !data.Ready {
		w.WriteHeader(statusFor(err))
	}
	_, _ = w.Write(buf.Bytes())
}

const calendarPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Ready}}{{.View.Grid.Title}}{{else}}Calendar{{end}}</title>
<style>
body { font-family: sans-serif; margin: 16px; }
.grid { display: grid; grid-template-columns: 80px 1fr; row-gap: 2px; }
.hours { display: flex; }
.hours span { flex: 1; font-size: 10px; text-align: left; }
.track { position: relative; height: 18px; background: #f3f3f3; }
.bar { position: absolute; top: 2px; bottom: 2px; background: #888; }
.bar-reading { background: #4a7fd4; }
.bar-support { background: #49a86b; }
.bar-crisis { background: #d44a4a; }
.bar-practical { background: #d4a94a; }
.bar-job { background: #7a4ad4; }
.bar-running { background: #4ac3d4; }
.maintenance li { font-family: monospace; }
.tier-fresh { color: #2a7a2a; }
.tier-aging { color: #b07a00; }
.tier-stale { color: #b02a2a; }
.error { color: #b02a2a; }
</style>
</head>
<body>
<div id="calendar"{{if .Ready}} data-ready="true" data-render-id="{{.View.RenderID}}"{{end}}>
{{- if .Error}}
<p class="error">{{.Error}}</p>
{{- else}}
<h1>{{.View.Grid.Title}}</h1>
<div class="grid">
<div></div>
<div class="hours">{{range .View.Grid.HourLabels}}<span>{{.}}</span>{{end}}</div>
{{- range .View.Grid.Days}}
<div class="day" data-date="{{.Key}}">{{.Label}}</div>
<div class="track">
{{- range .Bars}}
<div class="{{barClass .Class}}" style="left: {{pct .LeftPercent}}; width: {{pct .WidthPercent}};" title="{{.Title}}" data-details="{{.Tooltip}}"></div>
{{- end}}
</div>
{{- end}}
</div>
{{- if .View.Grid.Invalid}}
<p class="error">{{.View.Grid.Invalid}} event(s) skipped: unparseable start</p>
{{- end}}
<h2>Maintenance</h2>
<ul class="maintenance">
{{- range .View.Rows}}
<li class="{{tierClass .Tier}}" data-key="{{.Key}}">{{.Label}}: {{.Counter}}</li>
{{- end}}
</ul>
{{- end}}
</div>
</body>
</html>
`
