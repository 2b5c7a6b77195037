package captioner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeOllama struct {
	shows     atomic.Int32
	warmups   atomic.Int32
	generates atomic.Int32
	failShow  atomic.Bool
	response  string
	loadDelay time.Duration
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		f.shows.Add(1)
		if f.failShow.Load() {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
			return
		}
		time.Sleep(f.loadDelay)
		_, _ = w.Write([]byte(`{"modelfile":""}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.KeepAlive != -1 {
			t.Errorf("keep_alive = %d, want -1", req.KeepAlive)
		}
		if req.Prompt == "" {
			f.warmups.Add(1)
			_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Model: req.Model, Done: true})
			return
		}
		f.generates.Add(1)
		if len(req.Images) != 1 || req.Images[0] == "" {
			t.Errorf("expected one base64 image, got %d", len(req.Images))
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Model: req.Model, Response: f.response, Done: true})
	})
	return mux
}

func TestLocalModelCaption(t *testing.T) {
	fake := &fakeOllama{response: "  \"A red square on a white table.\"\n"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "llava:7b"})
	if m.Loaded() {
		t.Fatal("model loaded before first use")
	}

	got, err := m.Caption(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Caption() error = %v", err)
	}
	if got != "A red square on a white table." {
		t.Errorf("Caption() = %q", got)
	}
	if !m.Loaded() {
		t.Error("model not marked loaded")
	}
	if fake.warmups.Load() != 1 || fake.generates.Load() != 1 {
		t.Errorf("warmups=%d generates=%d", fake.warmups.Load(), fake.generates.Load())
	}
}

func TestLocalModelLoadsOnceUnderConcurrency(t *testing.T) {
	fake := &fakeOllama{response: "a cat", loadDelay: 50 * time.Millisecond}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "llava:7b"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Caption(context.Background(), testImage()); err != nil {
				t.Errorf("Caption() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fake.shows.Load(); got != 1 {
		t.Errorf("model verified %d times, want 1", got)
	}
	if got := fake.warmups.Load(); got != 1 {
		t.Errorf("model loaded %d times, want 1", got)
	}
	if m.loads != 1 {
		t.Errorf("loads = %d, want 1", m.loads)
	}
	if got := fake.generates.Load(); got != 10 {
		t.Errorf("generate calls = %d, want 10", got)
	}
}

func TestLocalModelRetriesFailedLoad(t *testing.T) {
	fake := &fakeOllama{response: "a dog"}
	fake.failShow.Store(true)
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "missing"})
	if _, err := m.Caption(context.Background(), testImage()); err == nil {
		t.Fatal("expected error for unavailable model")
	}
	if m.Loaded() {
		t.Fatal("failed load marked model as loaded")
	}

	fake.failShow.Store(false)
	if _, err := m.Caption(context.Background(), testImage()); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if m.loads != 1 {
		t.Errorf("loads = %d, want 1", m.loads)
	}
}

func TestLocalModelEmptyResponse(t *testing.T) {
	fake := &fakeOllama{response: "   "}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "llava:7b"})
	if _, err := m.Caption(context.Background(), testImage()); err == nil {
		t.Error("expected error for empty caption")
	}
}

func TestLocalModelUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: url, Model: "llava:7b"})
	c := New(m, nil, &Config{InferenceTimeout: time.Second}, nil)
	if res := c.Generate(context.Background(), testImage()); res.Caption != FallbackCaption {
		t.Errorf("Caption = %q, want fallback", res.Caption)
	}
}

func TestSlowLoadOutlivesInferenceTimeout(t *testing.T) {
	fake := &fakeOllama{response: "a cat", loadDelay: 300 * time.Millisecond}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "llava:7b", LoadTimeout: 5 * time.Second})
	c := New(m, nil, &Config{InferenceTimeout: 100 * time.Millisecond}, nil)

	if res := c.Generate(context.Background(), testImage()); res.Caption != "a cat" {
		t.Fatalf("Caption = %q, want a cat", res.Caption)
	}
	if !m.Loaded() {
		t.Error("model not marked loaded")
	}
}

func TestLoadTimeout(t *testing.T) {
	fake := &fakeOllama{response: "a cat", loadDelay: 300 * time.Millisecond}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "llava:7b", LoadTimeout: 50 * time.Millisecond})
	c := New(m, nil, &Config{InferenceTimeout: 5 * time.Second}, nil)

	if res := c.Generate(context.Background(), testImage()); res.Caption != FallbackCaption {
		t.Errorf("Caption = %q, want fallback", res.Caption)
	}
	if m.Loaded() {
		t.Error("timed out load marked model as loaded")
	}
}

func TestLoadSurvivesCanceledCaller(t *testing.T) {
	fake := &fakeOllama{response: "a cat", loadDelay: 50 * time.Millisecond}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	m := NewLocalModel(&LocalConfig{BaseURL: srv.URL, Model: "llava:7b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !m.Loaded() || fake.warmups.Load() != 1 {
		t.Errorf("loaded = %v, warmups = %d", m.Loaded(), fake.warmups.Load())
	}
}
