package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/config"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/llm"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/tts"
)

var testDefaults = config.Defaults{
	Scenario:   "Selling a home insurance policy.",
	Directives: "Skeptical about price.",
	Criteria:   "Rapport Building, Next Steps",
	Country:    "Sri Lanka",
	Difficulty: "Medium",
	TimeLimit:  300,
	SpeechRate: 1.0,
}

type recordingCoach struct {
	*llm.Coach
	gotDifficulty domain.Difficulty
	gotScenario   string
	gotCountry    string
	err           error
}

func (c *recordingCoach) GeneratePersona(ctx context.Context, d domain.Difficulty, scenario, directives, country string) (domain.Persona, error) {
	c.gotDifficulty, c.gotScenario, c.gotCountry = d, scenario, country
	if c.err != nil {
		return domain.Persona{}, c.err
	}
	return c.Coach.GeneratePersona(ctx, d, scenario, directives, country)
}

func (c *recordingCoach) Evaluate(ctx context.Context, t domain.Transcript, p domain.Persona, scenario, criteria, country string) (domain.EvaluationReport, error) {
	if c.err != nil {
		return domain.EvaluationReport{}, c.err
	}
	return c.Coach.Evaluate(ctx, t, p, scenario, criteria, country)
}

type catalogSynth struct{}

func (catalogSynth) Voices() []tts.VoiceInfo {
	return []tts.VoiceInfo{
		{ID: "us-m", Name: "Orion", Locale: "en-US", Gender: "male"},
		{ID: "us-f", Name: "Luna", Locale: "en-US", Gender: "female"},
		{ID: "gb-f", Name: "Pandora", Locale: "en-GB", Gender: "female"},
	}
}
func (catalogSynth) DefaultVoice() string { return "us-m" }
func (catalogSynth) StreamPCM48k(context.Context, string, string, float64) (<-chan []byte, <-chan error) {
	pcm := make(chan []byte)
	errc := make(chan error)
	close(pcm)
	close(errc)
	return pcm, errc
}

func newTestServer(t *testing.T, coach *recordingCoach, synth tts.Synthesizer) *Server {
	t.Helper()
	cfg := config.Config{CaptureProvider: "assemblyai", Defaults: testDefaults}
	return New(cfg, Deps{
		Coach:       coach,
		Synthesizer: synth,
		Logger:      logging.Discard(),
		Now:         func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) },
	})
}

func newCoach() *recordingCoach {
	return &recordingCoach{Coach: llm.NewCoach(llm.MockClient{}, logging.Discard())}
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	return w
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t, newCoach(), nil)
	w := do(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServer_Settings(t *testing.T) {
	srv := newTestServer(t, newCoach(), nil)
	w := do(srv, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got settingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, testDefaults, got.Defaults)
	assert.Equal(t, "Normal (1.0x)", got.Pace)
	assert.Contains(t, got.Countries, "Sri Lanka")
	assert.Len(t, got.Difficulties, 3)
	assert.Equal(t, "server", got.Capture)
	assert.Equal(t, "client", got.Playback)
	assert.True(t, got.RateApplied)
	assert.Equal(t, 0, got.TimeLimits[len(got.TimeLimits)-1].Seconds)
}

func TestServer_SettingsReportsIgnoredSpeechRate(t *testing.T) {
	cases := []struct {
		name  string
		synth tts.Synthesizer
		want  bool
	}{
		{"deepgram", tts.NewDeepgramClient("k", "", nil), false},
		{"elevenlabs", tts.NewElevenLabsClient("k", "v", nil), true},
		{"no rate control", catalogSynth{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, newCoach(), tc.synth)
			w := do(srv, http.MethodGet, "/api/settings", "")
			require.Equal(t, http.StatusOK, w.Code)
			var got settingsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "server", got.Playback)
			assert.Equal(t, tc.want, got.RateApplied)
		})
	}
}

func TestServer_VoicesPicksLocaleDefault(t *testing.T) {
	srv := newTestServer(t, newCoach(), catalogSynth{})
	w := do(srv, http.MethodGet, "/api/voices?country=United+States", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got voicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "en-US", got.Locale)
	assert.Len(t, got.Voices, 2)
	assert.Equal(t, "us-f", got.Default)
}

func TestServer_VoicesUnknownLocaleListsAll(t *testing.T) {
	srv := newTestServer(t, newCoach(), catalogSynth{})
	// Sri Lanka is the configured default and has no catalog voices.
	w := do(srv, http.MethodGet, "/api/voices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got voicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "si-LK", got.Locale)
	assert.Len(t, got.Voices, 3)
	assert.Equal(t, "us-m", got.Default)
}

func TestServer_VoicesClientPlayback(t *testing.T) {
	srv := newTestServer(t, newCoach(), nil)
	w := do(srv, http.MethodGet, "/api/voices?country=Canada", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"locale":"en-CA","voices":[],"default":""}`, w.Body.String())
}

func TestServer_GeneratePersonaFillsDefaults(t *testing.T) {
	coach := newCoach()
	srv := newTestServer(t, coach, nil)
	w := do(srv, http.MethodPost, "/api/personas", `{"difficulty":"hard"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var p domain.Persona
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Amaya Perera", p.Name)
	assert.Equal(t, domain.DifficultyHard, coach.gotDifficulty)
	assert.Equal(t, testDefaults.Scenario, coach.gotScenario)
	assert.Equal(t, testDefaults.Country, coach.gotCountry)
}

func TestServer_GeneratePersonaFailureIsBadGateway(t *testing.T) {
	coach := newCoach()
	coach.err = errors.New("quota exceeded")
	logger, hook := logtest.NewNullLogger()
	srv := New(config.Config{Defaults: testDefaults}, Deps{Coach: coach, Logger: logger})

	w := do(srv, http.MethodPost, "/api/personas", `{}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"`+personaFailed+`"}`, w.Body.String())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "persona generation failed", entry.Message)
	assert.Equal(t, "http", entry.Data["component"])
}

func TestServer_Evaluate(t *testing.T) {
	srv := newTestServer(t, newCoach(), nil)
	body := `{"transcript":[{"speaker":"agent","text":"Hi"},{"speaker":"trainee","text":"Hello"}],"persona":{"name":"Amaya"}}`
	w := do(srv, http.MethodPost, "/api/evaluations", body)
	require.Equal(t, http.StatusOK, w.Code)

	var r domain.EvaluationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, 7.0, r.OverallScore)
	assert.NotEmpty(t, r.Evaluation)
}

func TestServer_EvaluateRejectsUnknownSpeaker(t *testing.T) {
	srv := newTestServer(t, newCoach(), nil)
	w := do(srv, http.MethodPost, "/api/evaluations", `{"transcript":[{"speaker":"narrator","text":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_EvaluateFailureIsBadGateway(t *testing.T) {
	coach := newCoach()
	coach.err = errors.New("model unavailable")
	srv := newTestServer(t, coach, nil)
	w := do(srv, http.MethodPost, "/api/evaluations", `{"transcript":[]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), evaluationFailed)
}

func TestServer_DownloadReport(t *testing.T) {
	srv := newTestServer(t, newCoach(), nil)
	body := `{"report":{"overallScore":8,"overallFeedback":"Solid.","evaluation":[]},"transcript":[{"speaker":"trainee","text":"Hello"}]}`
	w := do(srv, http.MethodPost, "/api/reports", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="performance-report-2024-05-01T09-30-00-000Z.txt"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "Score: 8.0/10")
	assert.Contains(t, w.Body.String(), "Consultant (You):\nHello")
}

func TestServer_CallRouteMountsHandler(t *testing.T) {
	called := false
	srv := New(config.Config{}, Deps{
		Call:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true; w.WriteHeader(http.StatusTeapot) }),
		Logger: logging.Discard(),
	})
	w := do(srv, http.MethodGet, "/call", "")
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestPaceLabel(t *testing.T) {
	cases := map[float64]string{
		0.5: "Slower (0.5x)",
		0.9: "Slow (0.9x)",
		1.0: "Normal (1.0x)",
		1.2: "Slightly Fast (1.2x)",
		1.5: "Fast (1.5x)",
		2.0: "Faster (2.0x)",
	}
	for rate, want := range cases {
		assert.Equal(t, want, PaceLabel(rate), "rate %v", rate)
	}
}
