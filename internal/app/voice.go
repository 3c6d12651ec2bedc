package app

import (
	"context"
	"strings"

	"golang.org/x/oauth2/google"

	"github.com/ent0n29/voicecall/internal/config"
	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/voice"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type voiceSetup struct {
	recognizer voice.Recognizer
	speech     voice.SpeechClient
	detail     string

	// mock is shared with the brain setup when both run in mock mode.
	mock *voice.MockProvider
}

type brainSetup struct {
	completer voice.ChatCompleter
	detail    string
}

func resolveVoiceProvider(ctx context.Context, cfg config.Config) (voiceSetup, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VoiceProvider)) {
	case config.ProviderGoogle:
		gcfg := voice.GoogleConfig{
			APIKey:         cfg.GoogleAPIKey,
			SpeechEndpoint: cfg.GoogleSpeechEndpoint,
			TTSEndpoint:    cfg.GoogleTTSEndpoint,
		}
		detail := "google cloud (api key)"
		if strings.TrimSpace(cfg.GoogleAPIKey) == "" {
			// Fail at startup rather than on the first call when no ambient
			// credentials are available.
			creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
			if err != nil {
				return voiceSetup{}, faults.Configuration("google application default credentials unavailable: %v", err)
			}
			gcfg.Credentials = creds
			detail = "google cloud (application default credentials)"
			if creds.ProjectID != "" {
				detail += ", project " + creds.ProjectID
			}
		}
		g, err := voice.NewGoogleSpeech(ctx, gcfg)
		if err != nil {
			return voiceSetup{}, faults.Configuration("google speech clients: %v", err)
		}
		return voiceSetup{recognizer: g, speech: g, detail: detail}, nil
	case config.ProviderMock:
		p := voice.NewMockProvider()
		return voiceSetup{recognizer: p, speech: p, detail: "mock", mock: p}, nil
	default:
		return voiceSetup{}, faults.Configuration("invalid VOICE_PROVIDER: %q (expected google|mock)", cfg.VoiceProvider)
	}
}

func resolveBrainProvider(cfg config.Config, shared *voice.MockProvider) (brainSetup, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.BrainProvider)) {
	case config.ProviderGroq:
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return brainSetup{}, faults.Configuration("GROQ_API_KEY must be set when BRAIN_PROVIDER=groq")
		}
		c := voice.NewGroqClient(voice.GroqConfig{APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL})
		return brainSetup{completer: c, detail: "groq (" + cfg.GroqBaseURL + ")"}, nil
	case config.ProviderMock:
		if shared == nil {
			shared = voice.NewMockProvider()
		}
		return brainSetup{completer: shared, detail: "mock"}, nil
	default:
		return brainSetup{}, faults.Configuration("invalid BRAIN_PROVIDER: %q (expected groq|mock)", cfg.BrainProvider)
	}
}
