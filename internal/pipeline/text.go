package pipeline

import (
	"context"
	"strings"

	"github.com/ent0n29/voicecall/internal/faults"
)

// TextReplyPipeline answers typed text with a spoken reply.
type TextReplyPipeline struct {
	Responder Responder
	Speaker   Speaker
}

func (p *TextReplyPipeline) Run(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, faults.Validation("Missing text")
	}
	reply, err := p.Responder.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	return p.Speaker.Synthesize(ctx, reply)
}

// DirectSpeechPipeline speaks the given text as-is.
type DirectSpeechPipeline struct {
	Speaker Speaker
}

func (p *DirectSpeechPipeline) Run(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, faults.Validation("Missing text")
	}
	return p.Speaker.Synthesize(ctx, text)
}
