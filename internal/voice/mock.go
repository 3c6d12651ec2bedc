package voice

import (
	"context"
	"sync"
)

const (
	MockTranscript = "simulated voice input"
	MockReply      = "Thanks for calling. How can I help with your policy today?"
)

// mockAudioPrefix keeps mock audio recognisable as MP3 (ID3 tag) in players
// that sniff the header.
var mockAudioPrefix = []byte("ID3mock:")

// MockProvider is a local stand-in for the speech and chat providers. It
// implements Recognizer, ChatCompleter and SpeechClient with deterministic
// output and records what it was asked.
type MockProvider struct {
	mu sync.Mutex

	// Transcript and Reply are returned verbatim; an empty value yields no
	// results, which exercises the placeholder paths.
	Transcript string
	Reply      string

	RecognizeErr  error
	CompleteErr   error
	SynthesizeErr error

	recognized  []string
	completions [][]ChatMessage
	synthesized []string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Transcript: MockTranscript, Reply: MockReply}
}

func (p *MockProvider) Recognize(ctx context.Context, audioBase64 string, _ RecognitionConfig) ([]RecognitionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recognized = append(p.recognized, audioBase64)
	if p.RecognizeErr != nil {
		return nil, p.RecognizeErr
	}
	if p.Transcript == "" || audioBase64 == "" {
		return nil, nil
	}
	return []RecognitionResult{{Alternatives: []string{p.Transcript}}}, nil
}

func (p *MockProvider) Complete(ctx context.Context, _ string, messages []ChatMessage) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completions = append(p.completions, append([]ChatMessage(nil), messages...))
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if p.Reply == "" {
		return nil, nil
	}
	return []string{p.Reply}, nil
}

// Synthesize returns mockAudioPrefix followed by the text, so callers can
// check which text reached the synthesizer.
func (p *MockProvider) Synthesize(ctx context.Context, text string, _ VoiceSelection, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesized = append(p.synthesized, text)
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return MockAudio(text), nil
}

// MockAudio is the payload MockProvider.Synthesize produces for text.
func MockAudio(text string) []byte {
	out := make([]byte, 0, len(mockAudioPrefix)+len(text))
	out = append(out, mockAudioPrefix...)
	return append(out, text...)
}

func (p *MockProvider) Recognized() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.recognized...)
}

func (p *MockProvider) Completions() [][]ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]ChatMessage(nil), p.completions...)
}

func (p *MockProvider) Synthesized() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.synthesized...)
}
