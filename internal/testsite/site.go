// Package testsite is a self-contained demo site the sample suite drives.
// The runner starts it automatically when no base URL is configured, so the
// shipped features work out of the box against a real browser.
package testsite

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// User is one demo account.
type User struct {
	Name     string
	Password string
}

// DemoUsers are the accounts the sample features sign in with.
var DemoUsers = map[string]User{
	"alice@example.test": {Name: "Alice Hart", Password: "correct-horse"},
	"bob@example.test":   {Name: "Bob Reyes", Password: "battery-staple"},
}

// Industry is one section of the demo site.
type Industry struct {
	Slug    string
	Title   string
	Summary string
}

// Industries lists the demo sections in display order.
var Industries = []Industry{
	{Slug: "healthcare", Title: "Healthcare", Summary: "Coverage planning for providers and patients."},
	{Slug: "energy", Title: "Energy", Summary: "Portfolios for utilities and renewables."},
	{Slug: "technology", Title: "Technology", Summary: "Equity plans for growth companies."},
}

// Server hosts the demo site on a local listener.
type Server struct {
	users      map[string]User
	signingKey []byte
	logger     *zap.Logger

	httpServer *http.Server
	baseURL    string
}

// New builds the demo site with the demo accounts and a fresh signing key.
func New(logger *zap.Logger) (*Server, error) {
	key, err := newSigningKey()
	if err != nil {
		return nil, err
	}
	return &Server{
		users:      DemoUsers,
		signingKey: key,
		logger:     logger.Named("testsite"),
	}, nil
}

// Start listens on an ephemeral localhost port and serves in the
// background. Returns the site's base URL.
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for demo site: %w", err)
	}
	s.baseURL = "http://" + listener.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler()}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Demo site server failed.", zap.Error(err))
		}
	}()

	s.logger.Info("Demo site started.", zap.String("base_url", s.baseURL))
	return s.baseURL, nil
}

// BaseURL returns the started site's base URL.
func (s *Server) BaseURL() string { return s.baseURL }

// Close shuts the site down.
func (s *Server) Close(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the site's routes. Exposed separately so tests can drive
// the site through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /signin", s.handleSignInForm)
	mux.HandleFunc("POST /signin", s.handleSignIn)
	mux.HandleFunc("GET /signout", s.handleSignOut)
	mux.HandleFunc("GET /dashboard", s.requireSession(s.handleDashboard))
	mux.HandleFunc("GET /industries/{slug}", s.handleIndustry)
	mux.HandleFunc("GET /retirement", s.handleRetirementForm)
	mux.HandleFunc("POST /retirement", s.handleRetirement)
	return mux
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} — Meridian Demo</title></head>
<body>
<nav id="main-nav">
  <a id="nav-home" href="/">Home</a>
  {{range .Industries}}<a id="nav-{{.Slug}}" href="/industries/{{.Slug}}">{{.Title}}</a>
  {{end}}<a id="nav-retirement" href="/retirement">Retirement planner</a>
  <a id="nav-signin" href="/signin">Sign in</a>
</nav>
<main>
<h1 id="page-title">{{.Title}}</h1>
{{if .Error}}<p id="error" class="error">{{.Error}}</p>{{end}}
{{.Body}}
</main>
</body>
</html>
`))

type pageData struct {
	Title      string
	Error      string
	Body       template.HTML
	Industries []Industry
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	data.Industries = Industries
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("Failed to render page.", zap.Error(err))
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{
		Title: "Welcome to Meridian",
		Body: template.HTML(`<p id="tagline">Plan with confidence.</p>
<a id="get-started" href="/signin">Get started</a>`),
	})
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.renderSignIn(w, http.StatusOK, "")
}

func (s *Server) renderSignIn(w http.ResponseWriter, status int, errMsg string) {
	s.render(w, status, pageData{
		Title: "Sign in",
		Error: errMsg,
		Body: template.HTML(`<form id="signin-form" method="post" action="/signin">
<label for="email">Email</label><input id="email" name="email" type="email">
<label for="password">Password</label><input id="password" name="password" type="password">
<button id="signin-submit" type="submit">Sign in</button>
</form>`),
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	user, ok := s.users[email]
	if !ok || user.Password != password {
		s.renderSignIn(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	token, err := s.MintSession(email)
	if err != nil {
		s.logger.Error("Failed to mint session.", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, name string) {
	s.render(w, http.StatusOK, pageData{
		Title: "Dashboard",
		Body: template.HTML(fmt.Sprintf(`<p id="greeting">Welcome, %s</p>
<a id="signout" href="/signout">Sign out</a>`, template.HTMLEscapeString(name))),
	})
}

func (s *Server) handleIndustry(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var industry *Industry
	for i := range Industries {
		if Industries[i].Slug == slug {
			industry = &Industries[i]
			break
		}
	}
	if industry == nil {
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, pageData{
		Title: industry.Title,
		Body:  template.HTML(fmt.Sprintf(`<p id="industry-summary">%s</p>`, template.HTMLEscapeString(industry.Summary))),
	})
}

func (s *Server) handleRetirementForm(w http.ResponseWriter, r *http.Request) {
	s.renderRetirement(w, http.StatusOK, "", "")
}

func (s *Server) renderRetirement(w http.ResponseWriter, status int, errMsg, summary string) {
	body := `<form id="retirement-form" method="post" action="/retirement">
<label for="current-age">Current age</label><input id="current-age" name="current_age" type="number">
<label for="retirement-age">Retirement age</label><input id="retirement-age" name="retirement_age" type="number">
<button id="plan-submit" type="submit">Plan</button>
</form>`
	if summary != "" {
		body += fmt.Sprintf(`<p id="summary">%s</p>`, template.HTMLEscapeString(summary))
	}
	s.render(w, status, pageData{
		Title: "Retirement planner",
		Error: errMsg,
		Body:  template.HTML(body),
	})
}

func (s *Server) handleRetirement(w http.ResponseWriter, r *http.Request) {
	current, err := strconv.Atoi(r.FormValue("current_age"))
	if err != nil {
		s.renderRetirement(w, http.StatusBadRequest, "Current age must be a number.", "")
		return
	}
	retirement, err := strconv.Atoi(r.FormValue("retirement_age"))
	if err != nil {
		s.renderRetirement(w, http.StatusBadRequest, "Retirement age must be a number.", "")
		return
	}
	if retirement <= current {
		s.renderRetirement(w, http.StatusBadRequest, "Retirement age must be greater than current age.", "")
		return
	}
	years := retirement - current
	summary := fmt.Sprintf("You have %d years until retirement.", years)
	s.renderRetirement(w, http.StatusOK, "", summary)
}
