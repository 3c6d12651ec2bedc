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

const (
	// PersonaPrompt is the system message sent ahead of every utterance.
	PersonaPrompt = "You are an insurance agent U.S. based."

	GenerationModel = "allam-2-7b"

	// NoReplyText is spoken back when the model returns no usable choice.
	NoReplyText = "No response from Groq."

	DegradedReply = "reply_placeholder"
)

// Responder produces the agent's reply to one utterance.
type Responder struct {
	Completer voice.ChatCompleter
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// Generate sends the persona prompt and the utterance, in that order, and
// returns the first choice. No choices, or a blank first choice, yields
// NoReplyText.
func (r Responder) Generate(ctx context.Context, utterance string) (string, error) {
	logger := componentLogger(r.Logger, "responder")
	if r.Completer == nil {
		return "", faults.Configuration("chat completer is not configured")
	}

	messages := []voice.ChatMessage{
		{Role: voice.RoleSystem, Content: PersonaPrompt},
		{Role: voice.RoleUser, Content: utterance},
	}

	start := time.Now()
	choices, err := r.Completer.Complete(ctx, GenerationModel, messages)
	if err != nil {
		return "", upstreamFailure(r.Metrics, logger, voice.ProviderGroq, err)
	}
	r.Metrics.ObserveStage(string(StageGenerated), time.Since(start))

	if len(choices) == 0 || strings.TrimSpace(choices[0]) == "" {
		r.Metrics.ObserveDegraded(DegradedReply)
		logger.Warn("no usable choice, using placeholder reply", zap.Int("choices", len(choices)))
		return NoReplyText, nil
	}

	logger.Debug("generated", redacted("reply", choices[0]))
	return choices[0], nil
}
