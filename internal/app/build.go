package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/config"
	"github.com/ent0n29/voicecall/internal/credential"
	"github.com/ent0n29/voicecall/internal/httpapi"
	"github.com/ent0n29/voicecall/internal/observability"
	"github.com/ent0n29/voicecall/internal/pipeline"
	"github.com/ent0n29/voicecall/internal/upload"
)

type ProviderInfo struct {
	Voice       string
	VoiceDetail string
	Brain       string
	BrainDetail string
}

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Uploads   *upload.Store
	Issuer    *credential.Issuer
	Providers ProviderInfo

	// Cleanup should be called after the HTTP server has drained; it removes
	// uploads a request failed to release.
	Cleanup func() error
}

// Build validates cfg and constructs the process-wide state shared by every
// request. Nothing it returns is mutated afterwards.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetricsWithRegistry(cfg.MetricsNamespace, reg, reg)
	metrics.SetStageTargets(pipeline.StageTargetsByName())

	issuer, err := credential.NewIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitTokenTTL)
	if err != nil {
		return nil, err
	}

	uploads, err := upload.NewStore(cfg.UploadDir, cfg.MaxUploadBytes, logger)
	if err != nil {
		return nil, fmt.Errorf("upload store init failed: %w", err)
	}
	if n, err := uploads.Sweep(); err != nil {
		logger.Warn("stale upload sweep failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("removed stale uploads", zap.Int("count", n))
	}

	voiceSetup, err := resolveVoiceProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	brainSetup, err := resolveBrainProvider(cfg, voiceSetup.mock)
	if err != nil {
		return nil, err
	}

	transcriber := pipeline.Transcriber{Recognizer: voiceSetup.recognizer, Logger: logger, Metrics: metrics}
	responder := pipeline.Responder{Completer: brainSetup.completer, Logger: logger, Metrics: metrics}
	speaker := pipeline.Speaker{Client: voiceSetup.speech, Logger: logger, Metrics: metrics}

	api := httpapi.New(cfg, httpapi.Pipelines{
		Call: &pipeline.CallPipeline{
			Issuer:      issuer,
			Transcriber: transcriber,
			Responder:   responder,
			Speaker:     speaker,
			Logger:      logger,
			Metrics:     metrics,
		},
		SpeakReply: &pipeline.TextReplyPipeline{Responder: responder, Speaker: speaker},
		Speak:      &pipeline.DirectSpeechPipeline{Speaker: speaker},
	}, uploads, metrics, logger)

	cleanup := func() error {
		n, err := uploads.Sweep()
		if n > 0 {
			logger.Warn("removed unreleased uploads on shutdown", zap.Int("count", n))
		}
		if err != nil {
			return fmt.Errorf("sweep uploads: %w", err)
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Metrics:  metrics,
		Registry: reg,
		Uploads:  uploads,
		Issuer:   issuer,
		Providers: ProviderInfo{
			Voice:       cfg.VoiceProvider,
			VoiceDetail: voiceSetup.detail,
			Brain:       cfg.BrainProvider,
			BrainDetail: brainSetup.detail,
		},
		Cleanup: cleanup,
	}, nil
}
