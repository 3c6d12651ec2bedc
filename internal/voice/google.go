package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/ent0n29/voicecall/internal/faults"
)

const (
	ProviderGoogleSpeech = "google-speech"
	ProviderGoogleTTS    = "google-tts"
)

// GoogleConfig configures the Cloud Speech-to-Text and Text-to-Speech clients.
// With neither APIKey nor Credentials set the clients fall back to
// application default credentials.
type GoogleConfig struct {
	APIKey      string
	Credentials *google.Credentials

	// Endpoint overrides, mainly for emulators and tests.
	SpeechEndpoint string
	TTSEndpoint    string

	HTTPClient *http.Client
}

// GoogleSpeech implements Recognizer and SpeechClient on the Google Cloud REST APIs.
type GoogleSpeech struct {
	stt *speech.Service
	tts *texttospeech.Service
}

func NewGoogleSpeech(ctx context.Context, cfg GoogleConfig) (*GoogleSpeech, error) {
	stt, err := speech.NewService(ctx, googleOptions(cfg, cfg.SpeechEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	tts, err := texttospeech.NewService(ctx, googleOptions(cfg, cfg.TTSEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	return &GoogleSpeech{stt: stt, tts: tts}, nil
}

func googleOptions(cfg GoogleConfig, endpoint string) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case strings.TrimSpace(cfg.APIKey) != "":
		opts = append(opts, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	case cfg.Credentials != nil:
		opts = append(opts, option.WithCredentials(cfg.Credentials))
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(endpoint, "/")+"/"))
	}
	return opts
}

func (g *GoogleSpeech) Recognize(ctx context.Context, audioBase64 string, cfg RecognitionConfig) ([]RecognitionResult, error) {
	resp, err := g.stt.Speech.Recognize(&speech.RecognizeRequest{
		Audio: &speech.RecognitionAudio{Content: audioBase64},
		Config: &speech.RecognitionConfig{
			Encoding:        cfg.Encoding,
			SampleRateHertz: int64(cfg.SampleRateHertz),
			LanguageCode:    cfg.LanguageCode,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, faults.Upstream(ProviderGoogleSpeech, googleStatus(err), fmt.Errorf("recognize: %w", err))
	}

	out := make([]RecognitionResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil {
			continue
		}
		res := RecognitionResult{Alternatives: make([]string, 0, len(r.Alternatives))}
		for _, alt := range r.Alternatives {
			if alt == nil {
				continue
			}
			res.Alternatives = append(res.Alternatives, alt.Transcript)
		}
		out = append(out, res)
	}
	return out, nil
}

func (g *GoogleSpeech) Synthesize(ctx context.Context, text string, v VoiceSelection, audioEncoding string) ([]byte, error) {
	resp, err := g.tts.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: v.LanguageCode,
			SsmlGender:   v.SSMLGender,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: audioEncoding},
	}).Context(ctx).Do()
	if err != nil {
		return nil, faults.Upstream(ProviderGoogleTTS, googleStatus(err), fmt.Errorf("synthesize: %w", err))
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, faults.Upstream(ProviderGoogleTTS, resp.HTTPStatusCode, fmt.Errorf("decode audio content: %w", err))
	}
	return audio, nil
}

func googleStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
