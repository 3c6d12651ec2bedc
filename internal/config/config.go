package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ent0n29/voicecall/internal/faults"
)

const (
	CredentialModeDiscard = "discard"
	CredentialModeHeader  = "header"

	ProviderGoogle = "google"
	ProviderGroq   = "groq"
	ProviderMock   = "mock"
)

// Config contains all runtime settings for the call service.
type Config struct {
	BindAddr          string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	MetricsNamespace  string

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string

	UploadDir      string
	MaxUploadBytes int64

	// CallCredentialMode controls whether the room token issued on /call is
	// sent back to the caller ("header") or only computed ("discard").
	CallCredentialMode string

	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitTokenTTL  time.Duration

	VoiceProvider string
	BrainProvider string

	GroqAPIKey  string
	GroqBaseURL string

	GoogleAPIKey         string
	GoogleSpeechEndpoint string
	GoogleTTSEndpoint    string
}

// Load reads an optional dotenv file, then environment variables, and applies
// defaults. Variables already set in the environment win over the file.
func Load() (Config, error) {
	envFile := envOrDefault("APP_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "voicecall"),
		LogLevel:             strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(envOrDefault("APP_LOG_FORMAT", "json")),
		CORSAllowedOrigins:   splitList(envOrDefault("APP_CORS_ALLOWED_ORIGINS", "*")),
		UploadDir:            envOrDefault("APP_UPLOAD_DIR", "uploads"),
		MaxUploadBytes:       32 << 20,
		CallCredentialMode:   strings.ToLower(envOrDefault("CALL_CREDENTIAL_MODE", CredentialModeDiscard)),
		LiveKitAPIKey:        trimmedEnv("LIVEKIT_API_KEY"),
		LiveKitAPISecret:     trimmedEnv("LIVEKIT_API_SECRET"),
		LiveKitTokenTTL:      6 * time.Hour,
		VoiceProvider:        strings.ToLower(envOrDefault("VOICE_PROVIDER", ProviderGoogle)),
		BrainProvider:        strings.ToLower(envOrDefault("BRAIN_PROVIDER", ProviderGroq)),
		GroqAPIKey:           trimmedEnv("GROQ_API_KEY"),
		GroqBaseURL:          envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GoogleAPIKey:         trimmedEnv("GOOGLE_API_KEY"),
		GoogleSpeechEndpoint: trimmedEnv("GOOGLE_SPEECH_ENDPOINT"),
		GoogleTTSEndpoint:    trimmedEnv("GOOGLE_TTS_ENDPOINT"),
		ShutdownTimeout:      15 * time.Second,
		ReadHeaderTimeout:    10 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReadHeaderTimeout, err = durationFromEnv("APP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LiveKitTokenTTL, err = durationFromEnv("LIVEKIT_TOKEN_TTL", cfg.LiveKitTokenTTL)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := intFromEnv("APP_MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.LiveKitTokenTTL < time.Minute {
		return Config{}, fmt.Errorf("LIVEKIT_TOKEN_TTL must be at least 1m")
	}

	return cfg, nil
}

// Validate checks the settings the service cannot start without. It runs once
// at startup so that a missing secret fails the process before any request is
// accepted.
func (c Config) Validate() error {
	if c.LiveKitAPIKey == "" || c.LiveKitAPISecret == "" {
		return faults.Configuration("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set")
	}
	switch c.CallCredentialMode {
	case CredentialModeDiscard, CredentialModeHeader:
	default:
		return faults.Configuration("invalid CALL_CREDENTIAL_MODE: %q (expected discard|header)", c.CallCredentialMode)
	}
	switch c.VoiceProvider {
	case ProviderGoogle, ProviderMock:
	default:
		return faults.Configuration("invalid VOICE_PROVIDER: %q (expected google|mock)", c.VoiceProvider)
	}
	switch c.BrainProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return faults.Configuration("GROQ_API_KEY must be set when BRAIN_PROVIDER=groq")
		}
	case ProviderMock:
	default:
		return faults.Configuration("invalid BRAIN_PROVIDER: %q (expected groq|mock)", c.BrainProvider)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
