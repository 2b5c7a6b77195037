package captioner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func chatCompletionServer(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		raw, _ := json.Marshal(body)
		if !strings.Contains(string(raw), "data:image/jpeg;base64,") {
			t.Error("request does not carry a JPEG data URL")
		}
		if !strings.Contains(string(raw), "Describe this image in a single, concise sentence.") {
			t.Error("request does not carry the caption instruction")
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"denied","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gemini-2.5-flash",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		})
	}))
}

func TestNewRemoteModelRequiresKey(t *testing.T) {
	_, err := NewRemoteModel(&RemoteConfig{Model: "gemini-2.5-flash"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestRemoteModelCaption(t *testing.T) {
	var calls atomic.Int32
	srv := chatCompletionServer(t, http.StatusOK, " A bowl of ramen. ", &calls)
	defer srv.Close()

	m, err := NewRemoteModel(&RemoteConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("NewRemoteModel() error = %v", err)
	}
	got, err := m.Caption(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Caption() error = %v", err)
	}
	if got != "A bowl of ramen." {
		t.Errorf("Caption() = %q", got)
	}
	if m.Name() != "gemini-2.5-flash" {
		t.Errorf("Name() = %s", m.Name())
	}
}

func TestRemoteModelErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{name: "auth failure", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "empty content", status: http.StatusOK, content: "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := chatCompletionServer(t, tt.status, tt.content, &calls)
			defer srv.Close()

			m, err := NewRemoteModel(&RemoteConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gemini-2.5-flash"})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := m.Caption(context.Background(), testImage()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRemoteFailureFallsBackToLocalEndToEnd(t *testing.T) {
	var remoteCalls atomic.Int32
	remoteSrv := chatCompletionServer(t, http.StatusUnauthorized, "", &remoteCalls)
	defer remoteSrv.Close()

	fake := &fakeOllama{response: "a lighthouse at dusk"}
	localSrv := httptest.NewServer(fake.handler(t))
	defer localSrv.Close()

	remote, err := NewRemoteModel(&RemoteConfig{APIKey: "test-key", BaseURL: remoteSrv.URL, Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatal(err)
	}
	local := NewLocalModel(&LocalConfig{BaseURL: localSrv.URL, Model: "llava:7b"})
	c := New(local, remote, &Config{}, nil)

	for i := 0; i < 3; i++ {
		res := c.Generate(context.Background(), testImage())
		if res.Caption != "a lighthouse at dusk" || res.Provider != "llava:7b" {
			t.Fatalf("request %d: %+v", i, res)
		}
	}
	if got := remoteCalls.Load(); got != 1 {
		t.Errorf("remote called %d times, want 1", got)
	}
}
