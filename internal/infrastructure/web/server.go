// Package web serves the question generator as an HTML form, a JSON API and
// a websocket progress stream.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
)

//go:embed templates/*
var templatesFS embed.FS

// DefaultFormCount is the count pre-filled in the HTML form.
const DefaultFormCount = 10

// Generator runs generation requests.
type Generator interface {
	GenerateObserved(ctx context.Context, req generation.Request, obs application.Observer) (*generation.Result, error)
	Templates() *prompt.Registry
}

// Planner breaks a goal into tasks.
type Planner interface {
	Plan(ctx context.Context, goal string) (*application.TaskPlan, error)
}

// Server is the web HTTP server.
type Server struct {
	addr     string
	gen      Generator
	planner  Planner
	logger   *slog.Logger
	server   *http.Server
	tmpl     *template.Template
	upgrader websocket.Upgrader
	events   http.Handler
}

// NewServer creates a new web server. planner may be nil, which disables
// the plan pages.
func NewServer(addr string, gen Generator, planner Planner, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	funcMap := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		addr:    addr,
		gen:     gen,
		planner: planner,
		logger:  logger,
		tmpl:    tmpl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}, nil
}

// WithEvents mounts h as the live activity feed at GET /events.
func (s *Server) WithEvents(h http.Handler) *Server {
	s.events = h
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleGenerateForm)
	mux.HandleFunc("GET /plan", s.handlePlanPage)
	mux.HandleFunc("POST /plan", s.handlePlanForm)
	mux.HandleFunc("POST /api/generate", s.handleAPIGenerate)
	mux.HandleFunc("POST /api/plan", s.handleAPIPlan)
	mux.HandleFunc("GET /api/templates", s.handleAPITemplates)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.events != nil {
		mux.Handle("GET /events", s.events)
	}

	return mux
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// A run may take several provider round trips.
		WriteTimeout: 10 * time.Minute,
	}

	s.logger.Info("web server starting", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// FormValues echoes the submitted form back into the page.
type FormValues struct {
	Situation   string
	Count       int
	Template    string
	Temperature float64
	Goal        string
}

// TemplateView is a template option in the form.
type TemplateView struct {
	Name        string
	Title       string
	Description string
	Selected    bool
}

// PageData holds data for template rendering.
type PageData struct {
	Title     string
	Templates []TemplateView
	Form      FormValues
	Result    *generation.Result
	Plan      *application.TaskPlan
	Warning   string
	Error     string
	MinCount  int
	MaxCount  int
	CanPlan   bool
}

func (s *Server) page(title string, form FormValues) PageData {
	views := make([]TemplateView, 0)
	for _, t := range s.gen.Templates().List() {
		name := form.Template
		if name == "" {
			name = prompt.DefaultTemplate
		}
		views = append(views, TemplateView{
			Name:        t.Name,
			Title:       displayTitle(t),
			Description: t.Description,
			Selected:    t.Name == name,
		})
	}
	return PageData{
		Title:     title,
		Templates: views,
		Form:      form,
		MinCount:  generation.MinCount,
		MaxCount:  generation.MaxCount,
		CanPlan:   s.planner != nil,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.page("Qualifying Questions Generator", FormValues{Count: DefaultFormCount}))
}

func (s *Server) handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form := FormValues{
		Situation: r.PostFormValue("situation"),
		Template:  r.PostFormValue("template"),
		Count:     DefaultFormCount,
	}
	if v := strings.TrimSpace(r.PostFormValue("count")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			n = 0
		}
		form.Count = n
	}
	if v := strings.TrimSpace(r.PostFormValue("temperature")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			f = -1
		}
		form.Temperature = f
	}

	data := s.page("Qualifying Questions Generator", form)
	req := generation.Request{
		Situation:   form.Situation,
		Count:       form.Count,
		Template:    form.Template,
		Temperature: form.Temperature,
	}

	res, err := s.gen.GenerateObserved(r.Context(), req, nil)
	status := http.StatusOK
	switch {
	case err != nil:
		data.Error = err.Error()
		status = statusFor(err)
	case !res.Satisfied():
		data.Warning = fmt.Sprintf("Requested %d questions, but %d were generated after %d attempts. Try again or adjust the prompt.",
			res.Requested, len(res.Records), res.AttemptsUsed)
	}
	data.Result = res
	s.render(w, status, "index.html", data)
}

func (s *Server) handlePlanPage(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, "plan.html", s.page("Task Generator", FormValues{}))
}

func (s *Server) handlePlanForm(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form := FormValues{Goal: r.PostFormValue("goal")}
	data := s.page("Task Generator", form)

	plan, err := s.planner.Plan(r.Context(), form.Goal)
	status := http.StatusOK
	if err != nil {
		data.Error = err.Error()
		status = statusFor(err)
	}
	data.Plan = plan
	s.render(w, status, "plan.html", data)
}

// GenerateRequest is the JSON body of /api/generate and the first /ws message.
type GenerateRequest struct {
	Situation   string  `json:"situation"`
	Count       int     `json:"count"`
	Template    string  `json:"template,omitempty"`
	Temperature float64 `json:"temperature"`
}

func (g GenerateRequest) toDomain() generation.Request {
	return generation.Request{
		Situation:   g.Situation,
		Count:       g.Count,
		Template:    g.Template,
		Temperature: g.Temperature,
	}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error(), Kind: string(application.KindRequest)})
		return
	}

	res, err := s.gen.GenerateObserved(r.Context(), body.toDomain(), nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type planRequest struct {
	Goal string `json:"goal"`
}

func (s *Server) handleAPIPlan(w http.ResponseWriter, r *http.Request) {
	if s.planner == nil {
		http.NotFound(w, r)
		return
	}
	var body planRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error(), Kind: string(application.KindRequest)})
		return
	}

	plan, err := s.planner.Plan(r.Context(), body.Goal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type templateInfo struct {
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Placeholders []string `json:"placeholders"`
}

func (s *Server) handleAPITemplates(w http.ResponseWriter, r *http.Request) {
	list := s.gen.Templates().List()
	out := make([]templateInfo, 0, len(list))
	for _, t := range list {
		out = append(out, templateInfo{
			Name:         t.Name,
			Title:        t.Title,
			Description:  t.Description,
			Placeholders: t.Placeholders(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(application.ClassifyError(err))})
}

// statusFor maps the generation error taxonomy onto HTTP statuses: caller
// mistakes are 400, provider and reply failures are 502.
func statusFor(err error) int {
	switch application.ClassifyError(err) {
	case application.KindRequest, application.KindTemplate:
		return http.StatusBadRequest
	case application.KindProvider, application.KindMalformed, application.KindSchema:
		return http.StatusBadGateway
	case application.KindCancelled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return 499
	}
	return http.StatusInternalServerError
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func displayTitle(t *prompt.Template) string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}
