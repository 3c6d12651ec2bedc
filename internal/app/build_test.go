package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/voicecall/internal/config"
	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/voice"
)

func mockConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		MetricsNamespace:   "voicecall_test",
		CORSAllowedOrigins: []string{"*"},
		UploadDir:          filepath.Join(t.TempDir(), "uploads"),
		MaxUploadBytes:     1 << 20,
		CallCredentialMode: config.CredentialModeDiscard,
		LiveKitAPIKey:      "key",
		LiveKitAPISecret:   "secret",
		VoiceProvider:      config.ProviderMock,
		BrainProvider:      config.ProviderMock,
	}
}

func TestBuildWithMockProvidersServesSpeak(t *testing.T) {
	res, err := Build(context.Background(), mockConfig(t), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	if res.Providers.Voice != config.ProviderMock || res.Providers.Brain != config.ProviderMock {
		t.Fatalf("providers = %+v, want mock/mock", res.Providers)
	}

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/speak-reply", "application/json", strings.NewReader(`{"text":"hello"}`))
	if err != nil {
		t.Fatalf("POST /speak-reply error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", resp.StatusCode, body)
	}
	if string(body) != string(voice.MockAudio(voice.MockReply)) {
		t.Fatalf("body = %q, want mock synthesis of mock reply", body)
	}
}

func TestBuildInstallsStageTargets(t *testing.T) {
	res, err := Build(context.Background(), mockConfig(t), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	res.Metrics.ObserveStage("synthesized", 10*time.Millisecond)
	snap := res.Metrics.SnapshotStages()
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	if got := snap.Stages[0].TargetP95MS; got != 800 {
		t.Fatalf("TargetP95MS = %.2f, want 800", got)
	}
}

func TestBuildTwiceDoesNotCollideOnMetrics(t *testing.T) {
	for i := 0; i < 2; i++ {
		res, err := Build(context.Background(), mockConfig(t), nil)
		if err != nil {
			t.Fatalf("Build() #%d error = %v", i+1, err)
		}
		_ = res.Cleanup()
	}
}

func TestBuildFailsFastOnMissingSecrets(t *testing.T) {
	cfg := mockConfig(t)
	cfg.LiveKitAPISecret = ""

	_, err := Build(context.Background(), cfg, nil)
	var ce *faults.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Build() error = %v, want ConfigurationError", err)
	}
}

func TestBuildGoogleWithoutCredentialsFailsFast(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))
	cfg := mockConfig(t)
	cfg.VoiceProvider = config.ProviderGoogle

	_, err := Build(context.Background(), cfg, nil)
	var ce *faults.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Build() error = %v, want ConfigurationError", err)
	}
}

func TestBuildGoogleAndGroqWithKeys(t *testing.T) {
	cfg := mockConfig(t)
	cfg.VoiceProvider = config.ProviderGoogle
	cfg.GoogleAPIKey = "AIza-test"
	cfg.BrainProvider = config.ProviderGroq
	cfg.GroqAPIKey = "gsk-test"
	cfg.GroqBaseURL = "https://api.groq.com/openai/v1"

	res, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()
	if res.Providers.VoiceDetail != "google cloud (api key)" {
		t.Fatalf("VoiceDetail = %q, want api key detail", res.Providers.VoiceDetail)
	}
}

func TestCleanupSweepsLeftoverUploads(t *testing.T) {
	res, err := Build(context.Background(), mockConfig(t), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	f, err := res.Uploads.Save(strings.NewReader("webm"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Fatalf("upload still present after Cleanup (stat err = %v)", err)
	}
}
