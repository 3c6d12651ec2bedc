package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/voicecall/internal/config"
	"github.com/ent0n29/voicecall/internal/faults"
	"github.com/ent0n29/voicecall/internal/pipeline"
	"github.com/ent0n29/voicecall/internal/upload"
)

const (
	audioField    = "audio"
	callerIDField = "callerId"

	maxCallerIDBytes = 256
)

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	const endpoint = "call"
	if s.pipelines.Call == nil || s.uploads == nil {
		s.fail(w, endpoint, faults.Configuration("call pipeline is not configured"))
		return
	}

	callerID, audio, err := s.readCallUpload(r)
	if err != nil {
		s.fail(w, endpoint, err)
		return
	}

	responded := false
	_, err = s.pipelines.Call.Run(r.Context(), pipeline.CallRequest{
		CallerID: callerID,
		Audio:    audio,
		Respond: func(res pipeline.CallResult) error {
			responded = true
			if s.cfg.CallCredentialMode == config.CredentialModeHeader {
				w.Header().Set(RoomTokenHeader, res.Credential)
			}
			return respondAudio(w, "reply.mp3", res.Audio)
		},
	})
	switch {
	case err == nil:
		s.metrics.ObserveRequest(endpoint, "ok")
	case responded:
		s.metrics.ObserveRequest(endpoint, "write_failed")
		s.logger.Warn("call reply write failed", zap.Error(err))
	default:
		s.fail(w, endpoint, err)
	}
}

// readCallUpload streams the multipart form, saving the audio part to the
// upload store. On error any saved file has already been released.
func (s *Server) readCallUpload(r *http.Request) (string, *upload.File, error) {
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return "", nil, faults.Validation("Missing audio file")
	}
	if err != nil {
		return "", nil, faults.Validation("Invalid request body")
	}

	var (
		callerID string
		audio    *upload.File
	)
	abort := func(err error) (string, *upload.File, error) {
		_ = audio.Release()
		return "", nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return abort(faults.Validation("Invalid request body"))
		}

		switch {
		case part.FormName() == audioField && part.FileName() != "" && audio == nil:
			audio, err = s.uploads.Save(part)
			if err != nil {
				return abort(err)
			}
		case part.FormName() == callerIDField:
			callerID, err = readField(part)
			if err != nil {
				return abort(faults.Validation("Invalid request body"))
			}
		}
		_ = part.Close()
	}

	if audio == nil {
		return "", nil, faults.Validation("Missing audio file")
	}
	return callerID, audio, nil
}

var errFieldTooLong = errors.New("form field too long")

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxCallerIDBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxCallerIDBytes {
		return "", errFieldTooLong
	}
	return strings.TrimSpace(string(b)), nil
}
