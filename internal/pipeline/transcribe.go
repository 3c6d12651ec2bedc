package pipeline

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/observability"
	"github.com/ent0n29/voicecall/internal/voice"
)

// FallbackUtterance stands in for the caller when recognition yields nothing.
const FallbackUtterance = "I had an accident, what should I do?"

// DegradedTranscript is the metrics kind recorded when FallbackUtterance is used.
const DegradedTranscript = "transcript_fallback"

// RecognitionConfig is the fixed encoding of browser-recorded call audio.
var RecognitionConfig = voice.RecognitionConfig{
	Encoding:        "WEBM_OPUS",
	SampleRateHertz: 48000,
	LanguageCode:    "en-US",
}

// Transcriber turns call audio into an utterance.
type Transcriber struct {
	Recognizer voice.Recognizer
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Transcribe sends audio in one recognition request and returns the top
// alternative of the first result. An empty recognition is not an error: it
// returns FallbackUtterance.
func (t Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	logger := componentLogger(t.Logger, "transcriber")
	if t.Recognizer == nil {
		return "", faults.Configuration("speech recognizer is not configured")
	}

	start := time.Now()
	results, err := t.Recognizer.Recognize(ctx, base64.StdEncoding.EncodeToString(audio), RecognitionConfig)
	if err != nil {
		return "", upstreamFailure(t.Metrics, logger, voice.ProviderGoogleSpeech, err)
	}
	t.Metrics.ObserveStage(string(StageTranscribed), time.Since(start))

	transcript := firstTranscript(results)
	if transcript == "" {
		t.Metrics.ObserveDegraded(DegradedTranscript)
		logger.Warn("empty recognition, using fallback utterance",
			zap.Int("results", len(results)),
			zap.Int("audio_bytes", len(audio)),
		)
		return FallbackUtterance, nil
	}

	logger.Debug("transcribed", redacted("transcript", transcript))
	return transcript, nil
}

func firstTranscript(results []voice.RecognitionResult) string {
	if len(results) == 0 || len(results[0].Alternatives) == 0 {
		return ""
	}
	if strings.TrimSpace(results[0].Alternatives[0]) == "" {
		return ""
	}
	return results[0].Alternatives[0]
}
