package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/castline-dev/castline/internal/gate"
	"github.com/castline-dev/castline/internal/onboarding"
)

const pageTemplateName = "page"

// pageTemplate is the shell the dashboard frontend mounts into
var pageTemplate = template.Must(template.New(pageTemplateName).Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Castline · {{.Title}}</title>
</head>
<body>
<div id="app" data-page="{{.Page}}" data-state="{{.State}}"></div>
</body>
</html>
`))

// GateRequest is the query accepted by the gate evaluation endpoint
type GateRequest struct {
	Mode string `form:"mode" validate:"omitempty,oneof=protected public"`
	Path string `form:"path"`
	From string `form:"from"`
}

// GateResponse is a gate decision plus the inputs it was made from
type GateResponse struct {
	gate.Decision
	RedirectURL string            `json:"redirect_url,omitempty"`
	Onboarding  onboarding.Status `json:"onboarding"`
}

// @Summary Evaluate the access gate
// @Description Returns what the gate decides for a navigation to path with the caller's session
// @Tags gate
// @Produce json
// @Param mode query string false "protected (default) or public"
// @Param path query string false "Path being navigated to"
// @Param from query string false "Origin path for public pages"
// @Success 200 {object} GateResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/gate [get]
func (s *Server) evaluateGate(c *gin.Context) {
	var req GateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path := SanitizePath(req.Path)
	if path == "" {
		path = s.gate.Destinations().Landing
	}

	session := GetGateSession(c)
	state := localOnboarding(c)
	nav := gate.NavigationIntent{CurrentPath: path}

	var d gate.Decision
	if req.Mode == "public" {
		nav.OriginPath = SanitizePath(req.From)
		d = s.gate.Public(session, state, nav)
	} else {
		d = s.gate.Protected(session, state, nav)
	}

	resp := GateResponse{Decision: d}
	if d.IsRedirect() {
		resp.RedirectURL = RedirectLocation(d)
	}
	user, _ := GetUser(c)
	resp.Onboarding = onboarding.StatusFor(user, state)

	c.JSON(http.StatusOK, resp)
}

// page renders the frontend shell for a page the gate has let through
func (s *Server) page(name string) gin.HandlerFunc {
	title := name
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, pageTemplateName, gin.H{
			"Title": title,
			"Page":  name,
			"State": gate.Classify(GetGateSession(c), localOnboarding(c)),
		})
	}
}

func (s *Server) redirectToLanding(c *gin.Context) {
	c.Redirect(http.StatusFound, s.gate.Destinations().Landing)
}
