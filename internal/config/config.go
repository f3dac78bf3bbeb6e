package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

const (
	defaultScenario   = "A mock call between a real estate agent and a first-time home buyer."
	defaultDirectives = "The buyer is very excited but also nervous about the financial commitment. They have a lot of questions about hidden costs."
	defaultCriteria   = "Rapport Building, Needs Assessment, Addressing Concerns, Financial Qualification, Next Steps"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	LogLevel    string
	LogFormat   string

	// LLMProvider is one of gemini, cerebras, mock.
	LLMProvider     string
	GeminiKey       string
	GeminiModelID   string
	GeminiBaseURL   string
	CerebrasKey     string
	CerebrasModelID string

	// CaptureProvider is assemblyai (server-side STT) or client (browser recognizer).
	CaptureProvider string
	AssemblyAIKey   string

	// PlaybackProvider is server (stream synthesized PCM) or client (browser synthesizer).
	PlaybackProvider  string
	TTSProvider       string
	DeepgramKey       string
	DeepgramModel     string
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	Defaults Defaults

	warnings []string
}

// Defaults pre-fill the settings screen.
type Defaults struct {
	Scenario   string  `json:"scenario"`
	Directives string  `json:"directives"`
	Criteria   string  `json:"criteria"`
	Country    string  `json:"country"`
	Difficulty string  `json:"difficulty"`
	TimeLimit  int     `json:"timeLimit"`
	SpeechRate float64 `json:"speechRate"`
}

// CallSettings are the settings a call starts with when the client sends none.
func (d Defaults) CallSettings() domain.CallSettings {
	return domain.CallSettings{
		Scenario:   d.Scenario,
		Country:    d.Country,
		SpeechRate: d.SpeechRate,
		TimeLimit:  d.TimeLimit,
	}
}

// Load reads environment variables (and .env when present) and returns Config with sane defaults.
func Load() Config {
	var warnings []string
	if err := godotenv.Load(); err != nil {
		warnings = append(warnings, "no .env file loaded: "+err.Error())
	}

	cfg := Config{
		HTTPAddress:       getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModelID:     getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		GeminiBaseURL:     os.Getenv("GEMINI_BASE_URL"),
		CerebrasKey:       os.Getenv("CEREBRAS_API_KEY"),
		CerebrasModelID:   getEnv("CEREBRAS_MODEL_ID", "gpt-oss-120b"),
		CaptureProvider:   strings.ToLower(getEnv("CAPTURE_PROVIDER", "assemblyai")),
		AssemblyAIKey:     os.Getenv("ASSEMBLYAI_API_KEY"),
		PlaybackProvider:  strings.ToLower(getEnv("PLAYBACK_PROVIDER", "server")),
		TTSProvider:       strings.ToLower(getEnv("TTS_PROVIDER", "deepgram")),
		DeepgramKey:       os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:     os.Getenv("DEEPGRAM_MODEL"),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		Defaults: Defaults{
			Scenario:   getEnv("DEFAULT_SCENARIO", defaultScenario),
			Directives: getEnv("DEFAULT_DIRECTIVES", defaultDirectives),
			Criteria:   getEnv("DEFAULT_CRITERIA", defaultCriteria),
			Country:    getEnv("DEFAULT_COUNTRY", "United States"),
			Difficulty: getEnv("DEFAULT_DIFFICULTY", "Medium"),
			TimeLimit:  getEnvInt("DEFAULT_CALL_TIME_LIMIT", 300),
			SpeechRate: getEnvFloat("DEFAULT_SPEECH_RATE", 1.0),
		},
	}

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiKey == "" {
			warnings = append(warnings, "GEMINI_API_KEY not set - persona, conversation and evaluation will fail")
		}
	case "cerebras":
		if cfg.CerebrasKey == "" {
			warnings = append(warnings, "CEREBRAS_API_KEY not set - LLM will not work")
		}
	}
	if cfg.CaptureProvider == "assemblyai" && cfg.AssemblyAIKey == "" {
		warnings = append(warnings, "ASSEMBLYAI_API_KEY not set - recordings will come back empty")
	}
	if cfg.PlaybackProvider == "server" {
		switch cfg.TTSProvider {
		case "elevenlabs":
			if cfg.ElevenLabsKey == "" {
				warnings = append(warnings, "ELEVENLABS_API_KEY not set - TTS will not work")
			}
			if cfg.ElevenLabsVoiceID == "" {
				warnings = append(warnings, "ELEVENLABS_VOICE_ID not set - set a concrete voice ID from your ElevenLabs dashboard or pick one per call")
			}
		default:
			if cfg.DeepgramKey == "" {
				warnings = append(warnings, "DEEPGRAM_API_KEY not set - TTS will not work")
			}
			if cfg.Defaults.SpeechRate > 0 && cfg.Defaults.SpeechRate != 1 {
				warnings = append(warnings, "DEFAULT_SPEECH_RATE is ignored by Deepgram voices - use TTS_PROVIDER=elevenlabs or PLAYBACK_PROVIDER=client to change the pace")
			}
		}
	}
	if cfg.Defaults.TimeLimit < 0 {
		cfg.Defaults.TimeLimit = 0
	}
	if cfg.Defaults.SpeechRate <= 0 {
		cfg.Defaults.SpeechRate = 1.0
	}
	cfg.warnings = warnings
	return cfg
}

// Warnings lists configuration problems found by Load, for logging once a logger exists.
func (c Config) Warnings() []string { return c.warnings }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
