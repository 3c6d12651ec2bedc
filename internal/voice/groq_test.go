package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ent0n29/voicecall/internal/faults"
)

func TestGroqClientCompleteSendsMessagesInOrder(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer gsk-test" {
			t.Errorf("Authorization = %q, want bearer key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"allam-2-7b","choices":[{"index":0,"message":{"role":"assistant","content":"first"}},{"index":1,"message":{"role":"assistant","content":"second"}}]}`))
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "gsk-test", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	out, err := c.Complete(context.Background(), "allam-2-7b", []ChatMessage{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(out) != 2 || out[0] != "first" || out[1] != "second" {
		t.Fatalf("Complete() = %v, want [first second]", out)
	}
	if got.Model != "allam-2-7b" {
		t.Fatalf("model = %q, want allam-2-7b", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hello" {
		t.Fatalf("messages = %+v, want system then user", got.Messages)
	}
}

func TestGroqClientMapsAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	c := NewGroqClient(GroqConfig{APIKey: "gsk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), "allam-2-7b", []ChatMessage{{Role: RoleUser, Content: "hi"}})

	var upstream *faults.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Complete() error = %v, want UpstreamError", err)
	}
	if upstream.Provider != ProviderGroq || upstream.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("upstream = %s/%d, want groq/429", upstream.Provider, upstream.StatusCode)
	}
}
