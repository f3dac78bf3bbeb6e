// Package httpserver exposes the simulator's HTTP API and mounts the call WebSocket.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/config"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/realtime"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/report"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/transcript"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/tts"
)

const (
	personaFailed    = "Failed to generate an AI persona. Please check the API key and try again."
	evaluationFailed = "Failed to evaluate the call. Please check the API key and try again."
)

// Coach generates personas and scores calls.
type Coach interface {
	GeneratePersona(ctx context.Context, d domain.Difficulty, scenario, directives, country string) (domain.Persona, error)
	realtime.Evaluator
}

// Deps are the collaborators behind the routes. A nil Synthesizer means the
// browser synthesizes speech and owns the voice list.
type Deps struct {
	Coach       Coach
	Synthesizer tts.Synthesizer
	Call        http.Handler
	Logger      logrus.FieldLogger
	// RequestTimeout bounds persona generation and evaluation.
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Server bundles HTTP router and dependencies.
type Server struct {
	Router *echo.Echo

	cfg  config.Config
	deps Deps
	log  logrus.FieldLogger
}

// New constructs the HTTP server with routes.
func New(cfg config.Config, deps Deps) *Server {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 90 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		Router: NewRouter(),
		cfg:    cfg,
		deps:   deps,
		log:    logging.Or(deps.Logger).WithField("component", "http"),
	}
	e := s.Router
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api/settings", s.settings)
	e.GET("/api/voices", s.voices)
	e.POST("/api/personas", s.generatePersona)
	e.POST("/api/evaluations", s.evaluate)
	e.POST("/api/reports", s.downloadReport)
	if deps.Call != nil {
		e.GET("/call", echo.WrapHandler(deps.Call))
	}
	return s
}

type settingsResponse struct {
	Defaults     config.Defaults     `json:"defaults"`
	Pace         string              `json:"pace"`
	Countries    []string            `json:"countries"`
	Difficulties []domain.Difficulty `json:"difficulties"`
	TimeLimits   []timeLimitOption   `json:"timeLimits"`
	MinRate      float64             `json:"minSpeechRate"`
	MaxRate      float64             `json:"maxSpeechRate"`
	Capture      string              `json:"capture"`
	Playback     string              `json:"playback"`
	// RateApplied is false when the server synthesizer ignores the speech rate.
	RateApplied bool `json:"speechRateApplied"`
}

// GET /api/settings
func (s *Server) settings(c echo.Context) error {
	playback, rateApplied := "client", true
	if s.deps.Synthesizer != nil {
		playback, rateApplied = "server", tts.SupportsRate(s.deps.Synthesizer)
	}
	capture := "client"
	if s.cfg.CaptureProvider == "assemblyai" {
		capture = "server"
	}
	return c.JSON(http.StatusOK, settingsResponse{
		Defaults:     s.cfg.Defaults,
		Pace:         PaceLabel(s.cfg.Defaults.SpeechRate),
		Countries:    transcript.Countries(),
		Difficulties: []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard},
		TimeLimits:   timeLimitOptions,
		MinRate:      minSpeechRate,
		MaxRate:      maxSpeechRate,
		Capture:      capture,
		Playback:     playback,
		RateApplied:  rateApplied,
	})
}

type voicesResponse struct {
	Locale  string          `json:"locale"`
	Voices  []tts.VoiceInfo `json:"voices"`
	Default string          `json:"default"`
}

// GET /api/voices?country=
func (s *Server) voices(c echo.Context) error {
	country := c.QueryParam("country")
	if country == "" {
		country = s.cfg.Defaults.Country
	}
	locale := transcript.Locale(country)
	resp := voicesResponse{Locale: locale, Voices: []tts.VoiceInfo{}}
	if synth := s.deps.Synthesizer; synth != nil {
		catalog := synth.Voices()
		resp.Voices = tts.VoicesFor(catalog, locale)
		resp.Default = tts.SelectVoice(catalog, "", locale, synth.DefaultVoice())
	}
	return c.JSON(http.StatusOK, resp)
}

type personaRequest struct {
	Difficulty string `json:"difficulty"`
	Scenario   string `json:"scenario"`
	Directives string `json:"directives"`
	Country    string `json:"country"`
}

// POST /api/personas
func (s *Server) generatePersona(c echo.Context) error {
	var req personaRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if s.deps.Coach == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": personaFailed})
	}
	d := defaultString(req.Difficulty, s.cfg.Defaults.Difficulty)
	scenario := defaultString(req.Scenario, s.cfg.Defaults.Scenario)
	directives := defaultString(req.Directives, s.cfg.Defaults.Directives)
	country := defaultString(req.Country, s.cfg.Defaults.Country)

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.deps.RequestTimeout)
	defer cancel()
	p, err := s.deps.Coach.GeneratePersona(ctx, domain.ParseDifficulty(d), scenario, directives, country)
	if err != nil {
		s.log.WithError(err).Error("persona generation failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": personaFailed})
	}
	return c.JSON(http.StatusOK, p)
}

type evaluationRequest struct {
	Transcript domain.Transcript `json:"transcript"`
	Persona    domain.Persona    `json:"persona"`
	Scenario   string            `json:"scenario"`
	Criteria   string            `json:"criteria"`
	Country    string            `json:"country"`
}

// POST /api/evaluations
func (s *Server) evaluate(c echo.Context) error {
	var req evaluationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.Transcript.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if s.deps.Coach == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": evaluationFailed})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.deps.RequestTimeout)
	defer cancel()
	r, err := s.deps.Coach.Evaluate(ctx, req.Transcript,
		req.Persona,
		defaultString(req.Scenario, s.cfg.Defaults.Scenario),
		defaultString(req.Criteria, s.cfg.Defaults.Criteria),
		defaultString(req.Country, s.cfg.Defaults.Country))
	if err != nil {
		s.log.WithError(err).WithField("turns", len(req.Transcript)).Error("evaluation failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": evaluationFailed})
	}
	return c.JSON(http.StatusOK, r)
}

type reportRequest struct {
	Report     domain.EvaluationReport `json:"report"`
	Transcript domain.Transcript       `json:"transcript"`
}

// POST /api/reports
func (s *Server) downloadReport(c echo.Context) error {
	var req reportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	name := report.FileName(s.deps.Now())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(report.Text(req.Report, req.Transcript)))
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
