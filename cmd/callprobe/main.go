package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type options struct {
	baseURL  string
	mode     string
	audio    string
	text     string
	callerID string
	runs     int
	out      string
	timeout  time.Duration
	verbose  bool
}

const (
	modeCall       = "call"
	modeSpeak      = "speak"
	modeSpeakReply = "speak-reply"
)

type reply struct {
	audio     []byte
	roomToken string
	elapsed   time.Duration
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "callprobe: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), http.DefaultClient, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "callprobe: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	fs := flag.NewFlagSet("callprobe", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "voicecall base URL")
	fs.StringVar(&cfg.mode, "mode", modeSpeakReply, "endpoint to probe: call|speak|speak-reply")
	fs.StringVar(&cfg.audio, "audio", "", "audio clip uploaded in call mode (webm/opus)")
	fs.StringVar(&cfg.text, "text", "My car was hit from behind, what do I do?", "text sent in speak and speak-reply modes")
	fs.StringVar(&cfg.callerID, "caller-id", "", "callerId form value (default: probe-<uuid>)")
	fs.IntVar(&cfg.runs, "runs", 5, "number of requests to send")
	fs.StringVar(&cfg.out, "out", "reply.mp3", "where to write the last reply audio (empty to skip)")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "per-request timeout")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print each request")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	cfg.mode = strings.ToLower(strings.TrimSpace(cfg.mode))
	switch cfg.mode {
	case modeCall:
		if strings.TrimSpace(cfg.audio) == "" {
			return options{}, fmt.Errorf("audio is required in call mode")
		}
	case modeSpeak, modeSpeakReply:
		if strings.TrimSpace(cfg.text) == "" {
			return options{}, fmt.Errorf("text is required in %s mode", cfg.mode)
		}
	default:
		return options{}, fmt.Errorf("invalid mode %q (expected call|speak|speak-reply)", cfg.mode)
	}
	if cfg.runs <= 0 {
		return options{}, fmt.Errorf("runs must be > 0")
	}
	if cfg.timeout < time.Second {
		cfg.timeout = time.Second
	}
	if strings.TrimSpace(cfg.callerID) == "" {
		cfg.callerID = "probe-" + uuid.NewString()[:8]
	}
	return cfg, nil
}

func run(ctx context.Context, client *http.Client, cfg options, stdout io.Writer) error {
	var clip []byte
	if cfg.mode == modeCall {
		b, err := os.ReadFile(cfg.audio)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		clip = b
	}

	latencies := make([]time.Duration, 0, cfg.runs)
	var last reply
	for i := 0; i < cfg.runs; i++ {
		reqCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
		r, err := probeOnce(reqCtx, client, cfg, clip)
		cancel()
		if err != nil {
			return fmt.Errorf("run %d/%d: %w", i+1, cfg.runs, err)
		}
		latencies = append(latencies, r.elapsed)
		last = r
		if cfg.verbose {
			fmt.Fprintf(stdout, "callprobe: run %d/%d mode=%s bytes=%d elapsed=%s room_token=%t\n",
				i+1, cfg.runs, cfg.mode, len(r.audio), r.elapsed.Round(time.Millisecond), r.roomToken != "")
		}
	}

	if cfg.out != "" {
		if err := os.WriteFile(cfg.out, last.audio, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", cfg.out, err)
		}
	}

	fmt.Fprintf(stdout, "callprobe: mode=%s runs=%d p50=%s p95=%s\n",
		cfg.mode, len(latencies),
		percentile(latencies, 50).Round(time.Millisecond),
		percentile(latencies, 95).Round(time.Millisecond))
	return nil
}

func probeOnce(ctx context.Context, client *http.Client, cfg options, clip []byte) (reply, error) {
	req, err := buildRequest(ctx, cfg, clip)
	if err != nil {
		return reply{}, err
	}

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	elapsed := time.Since(start)
	if err != nil {
		return reply{}, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return reply{}, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if ct := res.Header.Get("Content-Type"); ct != "audio/mpeg" {
		return reply{}, fmt.Errorf("unexpected content type %q", ct)
	}
	if len(body) == 0 {
		return reply{}, fmt.Errorf("empty audio body")
	}
	return reply{audio: body, roomToken: res.Header.Get("X-Room-Token"), elapsed: elapsed}, nil
}

func buildRequest(ctx context.Context, cfg options, clip []byte) (*http.Request, error) {
	if cfg.mode != modeCall {
		payload, err := json.Marshal(map[string]string{"text": cfg.text})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/"+cfg.mode, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("callerId", cfg.callerID); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("audio", filepath.Base(cfg.audio))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(clip); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/call", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

// percentile uses nearest-rank on a sorted copy.
func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(float64(len(sorted))*p/100+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
