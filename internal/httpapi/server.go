package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/config"
	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/observability"
	"github.com/ent0n29/voicecall/internal/pipeline"
	"github.com/ent0n29/voicecall/internal/upload"
)

// RoomTokenHeader carries the issued room credential when
// CALL_CREDENTIAL_MODE=header.
const RoomTokenHeader = "X-Room-Token"

const maxJSONBodyBytes = 1 << 20

type CallRunner interface {
	Run(ctx context.Context, req pipeline.CallRequest) (pipeline.CallResult, error)
}

type TextRunner interface {
	Run(ctx context.Context, text string) ([]byte, error)
}

// Pipelines holds the flow behind each audio endpoint.
type Pipelines struct {
	Call       CallRunner
	SpeakReply TextRunner
	Speak      TextRunner
}

type Server struct {
	cfg       config.Config
	pipelines Pipelines
	uploads   *upload.Store
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func New(cfg config.Config, pipelines Pipelines, uploads *upload.Store, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		pipelines: pipelines,
		uploads:   uploads,
		metrics:   metrics,
		logger:    logger.With(zap.String("component", "http")),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/call", s.handleCall)
	r.Post("/speak", s.handleSpeak)
	r.Post("/speak-reply", s.handleSpeakReply)

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := s.cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}
	if s.cfg.CallCredentialMode == config.CredentialModeHeader {
		opts.ExposedHeaders = []string{RoomTokenHeader}
	}
	return opts
}

// logRequests tags every request with a fresh id and logs its outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"voice_provider":  s.cfg.VoiceProvider,
		"brain_provider":  s.cfg.BrainProvider,
		"credential_mode": s.cfg.CallCredentialMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.uploads == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": "upload store not configured"})
		return
	}
	if _, err := os.Stat(s.uploads.Dir()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "reason": "upload dir unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// fail writes err as a plain-text response. Validation errors carry their
// message; everything else is reported as a bare 500.
func (s *Server) fail(w http.ResponseWriter, endpoint string, err error) {
	status := faults.HTTPStatus(err)
	message := http.StatusText(status)
	var ve *faults.ValidationError
	if errors.As(err, &ve) {
		message = ve.Message
	}

	kind := faults.Kind(err)
	s.metrics.ObserveRequest(endpoint, kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("endpoint", endpoint), zap.String("kind", kind), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("endpoint", endpoint), zap.String("reason", message))
	}
	respondText(w, status, message)
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}

// respondAudio sends MP3 bytes as a download named filename.
func respondAudio(w http.ResponseWriter, filename string, audio []byte) error {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(filename, `"`, "")+`"`)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(audio)
	return err
}
