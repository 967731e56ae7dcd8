package api

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"zipdive/internal/session"
)

var uiTemplates = template.Must(template.New("layout").Funcs(template.FuncMap{
	"percent": func(f float64) int { return int(f * 100) },
}).Parse(`{{define "head"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>zipdive</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:960px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .row{display:flex;gap:12px;flex-wrap:wrap;align-items:center}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:8px 12px;border-radius:8px;cursor:pointer}
    .btn.secondary{background:#444}
    input[type=text],input[type=password]{padding:8px 10px;border:1px solid #dcdcdc;border-radius:8px;width:100%}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .status{display:inline-block;padding:3px 8px;border-radius:6px;background:#efefef;font-size:12px}
    .error{color:#b3261e}
    progress{width:200px}
  </style>
</head>
<body>
  <header><h1><a href="/">zipdive</a></h1><div class="muted">Recursive archive extraction</div></header>
  {{if .Error}}<div class="card error"><strong>Error:</strong> {{.Error}}</div>{{end}}
{{end}}

{{define "foot"}}
  <footer class="muted"><span class="mono">/api/v1</span></footer>
</body>
</html>
{{end}}

{{define "home"}}
  {{template "head" .}}
  <div class="card">
    <h2>Start</h2>
    <form method="post" action="/ui/sessions">
      <p><input type="text" name="input" placeholder="Input directory" required /></p>
      <p><input type="text" name="output" placeholder="Output directory" required /></p>
      <p><input type="password" name="password" placeholder="Password (optional)" /></p>
      <div class="row">
        <label><input type="checkbox" name="auto_advance" value="on" /> Auto-advance</label>
        <button class="btn" type="submit">Start</button>
      </div>
    </form>
  </div>
  <div class="card">
    <h2>Sessions</h2>
    {{range .Sessions}}
      <div><a class="mono" href="/ui/sessions/{{.ID}}">{{.ID}}</a> <span class="status">{{.State}}</span> <span class="muted">{{.InputRoot}} → {{.OutputRoot}} · {{len .Layers}} layer(s)</span></div>
    {{else}}
      <div class="muted">No sessions yet</div>
    {{end}}
  </div>
  {{template "foot" .}}
{{end}}

{{define "session"}}
  {{template "head" .}}
  {{with .Session}}
  <div class="card">
    <h2>Session <span class="mono">{{.ID}}</span></h2>
    <div>Status: <span class="status">{{.State}}</span> · auto-advance: {{.AutoAdvance}}</div>
    <div class="muted mono">{{.InputRoot}} → {{.OutputRoot}}</div>
    <div class="row" style="margin-top:12px">
      <form method="post" action="/ui/sessions/{{.ID}}/advance"><button class="btn" type="submit">Next layer</button></form>
      <form method="post" action="/ui/sessions/{{.ID}}/auto-advance">
        <input type="hidden" name="enabled" value="{{if .AutoAdvance}}off{{else}}on{{end}}" />
        <button class="btn secondary" type="submit">{{if .AutoAdvance}}Disable{{else}}Enable{{end}} auto-advance</button>
      </form>
      <a class="btn secondary" href="/ui/sessions/{{.ID}}">Refresh</a>
    </div>
  </div>
  {{range .Layers}}
  <div class="card">
    <div class="row">
      <strong>Layer {{.Depth}}</strong> <span class="status">{{.State}}</span>
      <progress max="100" value="{{percent .Progress}}"></progress>
      <span>{{.FinishedCount}}/{{len .Tasks}}</span>
    </div>
    <div class="muted mono">{{.InputDir}}</div>
    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
    <ul>
    {{range .Tasks}}
      <li><span class="mono">{{.DisplayPath}}</span> <span class="status">{{.State}}</span>{{if .Error}} <span class="error">{{.Error}}</span>{{end}}</li>
    {{end}}
    </ul>
  </div>
  {{end}}
  {{end}}
  {{template "foot" .}}
{{end}}
`))

// RegisterUIRoutes registers minimal HTML status pages without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.POST("/ui/sessions", a.UIStart)
	router.GET("/ui/sessions/:id", a.UISession)
	router.POST("/ui/sessions/:id/advance", a.UIAdvance)
	router.POST("/ui/sessions/:id/auto-advance", a.UIAutoAdvance)
}

// UIHome renders the start form and the session list
func (a *API) UIHome(c *gin.Context) {
	c.HTML(http.StatusOK, "home", gin.H{"Sessions": a.sessions.List()})
}

// UIStart starts a session from the form and redirects to its page
func (a *API) UIStart(c *gin.Context) {
	autoAdvance := c.PostForm("auto_advance") == "on"
	sess, err := a.sessions.Create(session.StartRequest{
		Input:       strings.TrimSpace(c.PostForm("input")),
		Output:      strings.TrimSpace(c.PostForm("output")),
		Password:    c.PostForm("password"),
		AutoAdvance: &autoAdvance,
	})
	if err != nil {
		c.HTML(statusFor(err), "home", gin.H{"Sessions": a.sessions.List(), "Error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, "/ui/sessions/"+sess.ID())
}

// UISession renders layers and per-file states
func (a *API) UISession(c *gin.Context) {
	sess, ok := a.sessions.Get(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "home", gin.H{"Sessions": a.sessions.List(), "Error": "session not found"})
		return
	}
	c.HTML(http.StatusOK, "session", gin.H{"Session": sess.Snapshot()})
}

// UIAdvance triggers the next layer and re-renders with any refusal
func (a *API) UIAdvance(c *gin.Context) {
	sess, ok := a.sessions.Get(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "home", gin.H{"Sessions": a.sessions.List(), "Error": "session not found"})
		return
	}
	if _, err := sess.Advance(); err != nil {
		c.HTML(statusFor(err), "session", gin.H{"Session": sess.Snapshot(), "Error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, "/ui/sessions/"+sess.ID())
}

// UIAutoAdvance toggles auto-advance from the form
func (a *API) UIAutoAdvance(c *gin.Context) {
	sess, ok := a.sessions.Get(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "home", gin.H{"Sessions": a.sessions.List(), "Error": "session not found"})
		return
	}
	sess.SetAutoAdvance(c.PostForm("enabled") == "on")
	c.Redirect(http.StatusFound, "/ui/sessions/"+sess.ID())
}
