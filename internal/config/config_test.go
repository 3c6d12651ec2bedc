package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ent0n29/voicecall/internal/faults"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.CallCredentialMode != CredentialModeDiscard {
		t.Fatalf("CallCredentialMode = %q, want %q", cfg.CallCredentialMode, CredentialModeDiscard)
	}
	if cfg.VoiceProvider != ProviderGoogle || cfg.BrainProvider != ProviderGroq {
		t.Fatalf("providers = %q/%q, want google/groq", cfg.VoiceProvider, cfg.BrainProvider)
	}
	if cfg.GroqBaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("GroqBaseURL = %q, want groq default", cfg.GroqBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins = %v, want [*]", cfg.CORSAllowedOrigins)
	}
	if cfg.LiveKitTokenTTL != 6*time.Hour {
		t.Fatalf("LiveKitTokenTTL = %v, want 6h", cfg.LiveKitTokenTTL)
	}
	if cfg.MaxUploadBytes != 32<<20 {
		t.Fatalf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 32<<20)
	}
}

func TestLoadReadsDotenvWithoutOverridingEnvironment(t *testing.T) {
	setCoreEnvEmpty(t)
	unsetEnv(t, "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "GROQ_API_KEY")

	path := filepath.Join(t.TempDir(), "test.env")
	body := "LIVEKIT_API_KEY=file-key\nLIVEKIT_API_SECRET=file-secret\nAPP_BIND_ADDR=:7000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_ENV_FILE", path)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LiveKitAPIKey != "file-key" || cfg.LiveKitAPISecret != "file-secret" {
		t.Fatalf("livekit pair = %q/%q, want values from env file", cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want environment to win over env file", cfg.BindAddr)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LIVEKIT_TOKEN_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		CallCredentialMode: CredentialModeDiscard,
		LiveKitAPIKey:      "key",
		LiveKitAPISecret:   "secret",
		VoiceProvider:      ProviderGoogle,
		BrainProvider:      ProviderGroq,
		GroqAPIKey:         "gsk",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing livekit key", func(c *Config) { c.LiveKitAPIKey = "" }},
		{"missing livekit secret", func(c *Config) { c.LiveKitAPISecret = "" }},
		{"missing groq key", func(c *Config) { c.GroqAPIKey = "" }},
		{"bad credential mode", func(c *Config) { c.CallCredentialMode = "cookie" }},
		{"bad voice provider", func(c *Config) { c.VoiceProvider = "elevenlabs" }},
		{"bad brain provider", func(c *Config) { c.BrainProvider = "openclaw" }},
	}
	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		err := cfg.Validate()
		var ce *faults.ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: Validate() = %v, want ConfigurationError", tc.name, err)
		}
	}

	mockBrain := valid
	mockBrain.BrainProvider = ProviderMock
	mockBrain.GroqAPIKey = ""
	if err := mockBrain.Validate(); err != nil {
		t.Fatalf("mock brain without groq key: Validate() error = %v", err)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_READ_HEADER_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"APP_LOG_FORMAT",
		"APP_CORS_ALLOWED_ORIGINS",
		"APP_UPLOAD_DIR",
		"APP_MAX_UPLOAD_BYTES",
		"CALL_CREDENTIAL_MODE",
		"LIVEKIT_API_KEY",
		"LIVEKIT_API_SECRET",
		"LIVEKIT_TOKEN_TTL",
		"VOICE_PROVIDER",
		"BRAIN_PROVIDER",
		"GROQ_API_KEY",
		"GROQ_BASE_URL",
		"GOOGLE_API_KEY",
		"GOOGLE_SPEECH_ENDPOINT",
		"GOOGLE_TTS_ENDPOINT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
	t.Setenv("APP_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

// unsetEnv removes keys for the duration of the test; godotenv never
// overrides a variable that is present, even when it is empty.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
