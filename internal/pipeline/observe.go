// Package pipeline chains credential issuance, transcription, generation and
// synthesis into the three request flows the service exposes.
package pipeline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/observability"
	"github.com/ent0n29/voicecall/internal/policy"
	"github.com/ent0n29/voicecall/internal/reliability"
)

func componentLogger(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String("component", name))
}

// upstreamFailure wraps err for provider, records it and logs it once.
func upstreamFailure(m *observability.Metrics, logger *zap.Logger, provider string, err error) error {
	err = faults.Upstream(provider, 0, err)

	var ue *faults.UpstreamError
	if errors.As(err, &ue) {
		code := reliability.Classify(ue.StatusCode, err)
		m.ObserveUpstreamError(ue.Provider, code)
		logger.Warn("upstream call failed",
			zap.String("provider", ue.Provider),
			zap.Int("status", ue.StatusCode),
			zap.String("class", code),
			zap.Bool("retryable", reliability.IsRetryableHTTPStatus(ue.StatusCode)),
			zap.Error(err),
		)
	}
	return err
}

// redacted is a log field for caller-derived text.
func redacted(key, text string) zap.Field {
	out, _ := policy.RedactPII(text)
	return zap.String(key, out)
}
