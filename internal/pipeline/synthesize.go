package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/observability"
	"github.com/ent0n29/voicecall/internal/voice"
)

const AudioEncoding = "MP3"

var Voice = voice.VoiceSelection{LanguageCode: "en-US", SSMLGender: "NEUTRAL"}

// Speaker renders reply text as MP3 audio.
type Speaker struct {
	Client  voice.SpeechClient
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

func (s Speaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, faults.Validation("Missing text")
	}
	logger := componentLogger(s.Logger, "speaker")
	if s.Client == nil {
		return nil, faults.Configuration("speech synthesizer is not configured")
	}

	start := time.Now()
	audio, err := s.Client.Synthesize(ctx, text, Voice, AudioEncoding)
	if err != nil {
		return nil, upstreamFailure(s.Metrics, logger, voice.ProviderGoogleTTS, err)
	}
	s.Metrics.ObserveStage(string(StageSynthesized), time.Since(start))

	logger.Debug("synthesized", zap.Int("text_chars", len(text)), zap.Int("audio_bytes", len(audio)))
	return audio, nil
}
