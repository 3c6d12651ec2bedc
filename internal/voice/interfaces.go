package voice

import "context"

// RecognitionConfig describes how the uploaded audio is encoded.
type RecognitionConfig struct {
	Encoding        string
	SampleRateHertz int
	LanguageCode    string
}

// RecognitionResult holds the ranked transcript alternatives for one
// segment of audio, best first.
type RecognitionResult struct {
	Alternatives []string
}

// Recognizer turns base64 audio into zero or more recognition results.
type Recognizer interface {
	Recognize(ctx context.Context, audioBase64 string, cfg RecognitionConfig) ([]RecognitionResult, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string
	Content string
}

// ChatCompleter sends an ordered message list to a text-generation model and
// returns the content of each choice in rank order.
type ChatCompleter interface {
	Complete(ctx context.Context, model string, messages []ChatMessage) ([]string, error)
}

// VoiceSelection picks the synthesis voice.
type VoiceSelection struct {
	LanguageCode string
	SSMLGender   string
}

// SpeechClient renders text as encoded audio bytes.
type SpeechClient interface {
	Synthesize(ctx context.Context, text string, voice VoiceSelection, audioEncoding string) ([]byte, error)
}
