package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/ent0n29/voicecall/internal/credential"
	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/upload"
	"github.com/ent0n29/voicecall/internal/voice"
)

type stubIssuer struct {
	token string
	err   error

	identities []string
}

func (s *stubIssuer) Issue(identity string) (string, error) {
	s.identities = append(s.identities, identity)
	return s.token, s.err
}

func newCallPipeline(issuer CredentialIssuer, mock *voice.MockProvider) *CallPipeline {
	return &CallPipeline{
		Issuer:      issuer,
		Transcriber: Transcriber{Recognizer: mock},
		Responder:   Responder{Completer: mock},
		Speaker:     Speaker{Client: mock},
		Metrics:     newTestMetrics(),
	}
}

func saveUpload(t *testing.T) *upload.File {
	t.Helper()
	store, err := upload.NewStore(t.TempDir(), 1<<20, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	f, err := store.Save(strings.NewReader("webm-audio"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return f
}

func assertRemoved(t *testing.T, f *upload.File) {
	t.Helper()
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Fatalf("upload %q still on disk (stat err = %v)", f.Path(), err)
	}
}

func TestCallPipelineEndToEnd(t *testing.T) {
	mock := voice.NewMockProvider()
	mock.Transcript = "I was in an accident"
	mock.Reply = "Stay calm and call 911 if needed."
	issuer, err := credential.NewIssuer("api-key", "api-secret-with-enough-length", 0)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	p := newCallPipeline(issuer, mock)
	f := saveUpload(t)

	res, err := p.Run(context.Background(), CallRequest{CallerID: "alice", Audio: f})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(res.Audio) != string(voice.MockAudio(mock.Reply)) {
		t.Fatalf("Audio = %q, want synthesis of reply", res.Audio)
	}
	if res.Transcript != "I was in an accident" || res.Reply != mock.Reply {
		t.Fatalf("Transcript/Reply = %q/%q", res.Transcript, res.Reply)
	}
	if res.Credential == "" {
		t.Fatalf("Credential is empty")
	}
	if got := mock.Completions()[0][1].Content; got != "I was in an accident" {
		t.Fatalf("utterance sent to generation = %q, want transcript", got)
	}
	assertRemoved(t, f)
}

func TestCallPipelineUsesFallbackUtteranceOnEmptyRecognition(t *testing.T) {
	mock := voice.NewMockProvider()
	mock.Transcript = ""
	p := newCallPipeline(&stubIssuer{token: "tok"}, mock)

	res, err := p.Run(context.Background(), CallRequest{Audio: saveUpload(t)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Transcript != FallbackUtterance {
		t.Fatalf("Transcript = %q, want fallback", res.Transcript)
	}
	if got := mock.Completions()[0][1].Content; got != FallbackUtterance {
		t.Fatalf("utterance sent to generation = %q, want fallback", got)
	}
}

func TestCallPipelineDefaultsCallerID(t *testing.T) {
	issuer := &stubIssuer{token: "tok"}
	p := newCallPipeline(issuer, voice.NewMockProvider())

	if _, err := p.Run(context.Background(), CallRequest{CallerID: "  ", Audio: saveUpload(t)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(issuer.identities) != 1 || issuer.identities[0] != DefaultCallerID {
		t.Fatalf("identities = %v, want [%s]", issuer.identities, DefaultCallerID)
	}
}

func TestCallPipelineMissingAudio(t *testing.T) {
	issuer := &stubIssuer{token: "tok"}
	p := newCallPipeline(issuer, voice.NewMockProvider())

	_, err := p.Run(context.Background(), CallRequest{CallerID: "alice"})
	var ve *faults.ValidationError
	if !errors.As(err, &ve) || ve.Message != "Missing audio file" {
		t.Fatalf("Run() error = %v, want Missing audio file", err)
	}
	if len(issuer.identities) != 0 {
		t.Fatalf("issuer called %d times, want 0", len(issuer.identities))
	}
}

func TestCallPipelineReleasesUploadOnEveryFailure(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name     string
		issuer   CredentialIssuer
		setup    func(*voice.MockProvider)
		wantKind string
	}{
		{
			name:     "credential",
			issuer:   &credential.Issuer{},
			wantKind: "configuration",
		},
		{
			name:     "recognition",
			issuer:   &stubIssuer{token: "tok"},
			setup:    func(m *voice.MockProvider) { m.RecognizeErr = boom },
			wantKind: "upstream",
		},
		{
			name:     "generation",
			issuer:   &stubIssuer{token: "tok"},
			setup:    func(m *voice.MockProvider) { m.CompleteErr = boom },
			wantKind: "upstream",
		},
		{
			name:     "synthesis",
			issuer:   &stubIssuer{token: "tok"},
			setup:    func(m *voice.MockProvider) { m.SynthesizeErr = boom },
			wantKind: "upstream",
		},
	}
	for _, tc := range cases {
		mock := voice.NewMockProvider()
		if tc.setup != nil {
			tc.setup(mock)
		}
		p := newCallPipeline(tc.issuer, mock)
		f := saveUpload(t)

		_, err := p.Run(context.Background(), CallRequest{Audio: f})
		if got := faults.Kind(err); got != tc.wantKind {
			t.Fatalf("%s: Kind(err) = %q, want %q (err = %v)", tc.name, got, tc.wantKind, err)
		}
		assertRemoved(t, f)
	}
}

func TestCallPipelineStopsAtFirstFailure(t *testing.T) {
	mock := voice.NewMockProvider()
	mock.RecognizeErr = errors.New("down")
	p := newCallPipeline(&stubIssuer{token: "tok"}, mock)

	if _, err := p.Run(context.Background(), CallRequest{Audio: saveUpload(t)}); err == nil {
		t.Fatalf("Run() expected error")
	}
	if n := len(mock.Completions()); n != 0 {
		t.Fatalf("generation calls = %d, want 0", n)
	}
	if n := len(mock.Synthesized()); n != 0 {
		t.Fatalf("synthesis calls = %d, want 0", n)
	}
}

func TestCallPipelineRespondsBeforeRelease(t *testing.T) {
	p := newCallPipeline(&stubIssuer{token: "tok"}, voice.NewMockProvider())
	f := saveUpload(t)

	var stillOnDisk bool
	var got CallResult
	_, err := p.Run(context.Background(), CallRequest{
		Audio: f,
		Respond: func(res CallResult) error {
			_, statErr := os.Stat(f.Path())
			stillOnDisk = statErr == nil
			got = res
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !stillOnDisk {
		t.Fatalf("upload removed before Respond ran")
	}
	if got.Credential != "tok" || len(got.Audio) == 0 {
		t.Fatalf("Respond got %+v, want credential and audio", got)
	}
	assertRemoved(t, f)
}

func TestCallPipelineRespondErrorStillReleases(t *testing.T) {
	p := newCallPipeline(&stubIssuer{token: "tok"}, voice.NewMockProvider())
	f := saveUpload(t)
	writeErr := errors.New("client gone")

	_, err := p.Run(context.Background(), CallRequest{
		Audio:   f,
		Respond: func(CallResult) error { return writeErr },
	})
	if !errors.Is(err, writeErr) {
		t.Fatalf("Run() error = %v, want respond error", err)
	}
	assertRemoved(t, f)
}

func TestStageTargetsCoverTimedStages(t *testing.T) {
	targets := StageTargetsByName()
	for _, stage := range []Stage{StageTranscribed, StageGenerated, StageSynthesized, StageCallTotal} {
		if targets[string(stage)] <= 0 {
			t.Fatalf("target for %q = %v, want > 0", stage, targets[string(stage)])
		}
	}
	if _, ok := targets[string(StageResponded)]; ok {
		t.Fatalf("untimed stage %q has a target", StageResponded)
	}
}
