package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/observability"
	"github.com/ent0n29/voicecall/internal/upload"
)

// Stage names the progress of one call request. Stages are used as log
// fields and, for the timed ones, as latency window names.
type Stage string

const (
	StageReceivedUpload   Stage = "received_upload"
	StageCredentialIssued Stage = "credential_issued"
	StageTranscribed      Stage = "transcribed"
	StageGenerated        Stage = "generated"
	StageSynthesized      Stage = "synthesized"
	StageResponded        Stage = "responded"
	StageCleanedUp        Stage = "cleaned_up"
	StageFailed           Stage = "failed"

	// StageCallTotal is the latency window for a whole call, upload to reply.
	StageCallTotal Stage = "call_total"
)

// StageTargets are the p95 latency budgets of the timed stages.
var StageTargets = map[Stage]time.Duration{
	StageTranscribed: 1500 * time.Millisecond,
	StageGenerated:   1200 * time.Millisecond,
	StageSynthesized: 800 * time.Millisecond,
	StageCallTotal:   4 * time.Second,
}

// StageTargetsByName returns StageTargets keyed by latency window name.
func StageTargetsByName() map[string]time.Duration {
	out := make(map[string]time.Duration, len(StageTargets))
	for stage, d := range StageTargets {
		out[string(stage)] = d
	}
	return out
}

// DefaultCallerID is used when the caller does not identify itself.
const DefaultCallerID = "caller"

// CredentialIssuer signs a room credential for a caller identity.
type CredentialIssuer interface {
	Issue(identity string) (string, error)
}

type CallRequest struct {
	CallerID string
	Audio    *upload.File

	// Respond, when set, is handed the finished result before the upload is
	// released.
	Respond func(CallResult) error
}

type CallResult struct {
	Audio      []byte
	Credential string
	Transcript string
	Reply      string
}

// CallPipeline runs one voice call: credential, transcription, generation
// and synthesis, strictly in sequence.
type CallPipeline struct {
	Issuer      CredentialIssuer
	Transcriber Transcriber
	Responder   Responder
	Speaker     Speaker
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Run owns req.Audio from the moment it is called: the upload is released on
// every return path. A nil upload is a validation error.
func (p *CallPipeline) Run(ctx context.Context, req CallRequest) (CallResult, error) {
	if req.Audio == nil {
		return CallResult{}, faults.Validation("Missing audio file")
	}

	callerID := strings.TrimSpace(req.CallerID)
	if callerID == "" {
		callerID = DefaultCallerID
	}
	logger := componentLogger(p.Logger, "call").With(zap.String("caller_id", callerID))

	start := time.Now()
	stage := StageReceivedUpload
	defer func() {
		if err := req.Audio.Release(); err != nil {
			p.Metrics.ObserveCleanupFailure()
			return
		}
		logger.Debug("upload released", zap.String("stage", string(StageCleanedUp)), zap.String("after", string(stage)))
	}()

	fail := func(err error) (CallResult, error) {
		logger.Warn("call failed",
			zap.String("stage", string(StageFailed)),
			zap.String("after", string(stage)),
			zap.String("kind", faults.Kind(err)),
			zap.Error(err),
		)
		return CallResult{}, err
	}

	if p.Issuer == nil {
		return fail(faults.Configuration("credential issuer is not configured"))
	}
	credential, err := p.Issuer.Issue(callerID)
	if err != nil {
		return fail(err)
	}
	stage = StageCredentialIssued

	audio, err := req.Audio.ReadAll()
	if err != nil {
		return fail(err)
	}
	transcript, err := p.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return fail(err)
	}
	stage = StageTranscribed

	reply, err := p.Responder.Generate(ctx, transcript)
	if err != nil {
		return fail(err)
	}
	stage = StageGenerated

	speech, err := p.Speaker.Synthesize(ctx, reply)
	if err != nil {
		return fail(err)
	}
	stage = StageSynthesized

	result := CallResult{
		Audio:      speech,
		Credential: credential,
		Transcript: transcript,
		Reply:      reply,
	}
	p.Metrics.ObserveStage(string(StageCallTotal), time.Since(start))

	if req.Respond != nil {
		if err := req.Respond(result); err != nil {
			return fail(err)
		}
		stage = StageResponded
	}

	logger.Info("call completed",
		zap.String("stage", string(stage)),
		zap.Int("audio_bytes", len(speech)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
