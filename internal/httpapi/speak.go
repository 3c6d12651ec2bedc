package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/ent0n29/voicecall/internal/faults"
)

type speakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	s.serveText(w, r, "speak", s.pipelines.Speak, "speech.mp3")
}

func (s *Server) handleSpeakReply(w http.ResponseWriter, r *http.Request) {
	s.serveText(w, r, "speak_reply", s.pipelines.SpeakReply, "reply.mp3")
}

func (s *Server) serveText(w http.ResponseWriter, r *http.Request, endpoint string, run TextRunner, filename string) {
	if run == nil {
		s.fail(w, endpoint, faults.Configuration("%s pipeline is not configured", endpoint))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var req speakRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			s.fail(w, endpoint, faults.Validation("Invalid request body"))
			return
		}
	}

	audio, err := run.Run(r.Context(), req.Text)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}
	if err := respondAudio(w, filename, audio); err != nil {
		s.metrics.ObserveRequest(endpoint, "write_failed")
		return
	}
	s.metrics.ObserveRequest(endpoint, "ok")
}

// isJSON reports whether r declares a JSON body. Other bodies are ignored and
// the request is treated as carrying no text.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
