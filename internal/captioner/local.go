package captioner

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/snapcaption/internal/imaging"
	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/prompts"
)

// LocalModel captions images with a vision-language model served by a
// local Ollama-compatible runtime.
//
// The model is loaded on first use, not at construction. Loading pins the
// model in the runtime's memory (keep_alive -1) for the rest of the process.
type LocalModel struct {
	client    *resty.Client
	model     string
	prompt    string
	maxTokens int

	loadTimeout time.Duration

	mu     sync.Mutex
	loaded atomic.Bool
	loads  int
}

// LocalConfig holds configuration for LocalModel.
type LocalConfig struct {
	BaseURL   string
	Model     string
	Prompt    string
	MaxTokens int
	// LoadTimeout bounds model loading separately from inference.
	LoadTimeout time.Duration
}

// NewLocalModel creates a LocalModel. It performs no I/O.
// Parameters:
//   - cfg: runtime address and model settings.
// Returns:
//   - *LocalModel: unloaded local model handle.
func NewLocalModel(cfg *LocalConfig) *LocalModel {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = prompts.LocalCaptionPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 50
	}
	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = 5 * time.Minute
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(loadTimeout)

	return &LocalModel{
		client:      client,
		model:       cfg.Model,
		prompt:      prompt,
		maxTokens:   maxTokens,
		loadTimeout: loadTimeout,
	}
}

// Name returns the model identifier.
func (m *LocalModel) Name() string {
	return m.model
}

// Loaded reports whether the model has been initialized.
func (m *LocalModel) Loaded() bool {
	return m.loaded.Load()
}

type ollamaShowRequest struct {
	Model string `json:"model"`
}

type ollamaGenerateRequest struct {
	Model     string                 `json:"model"`
	Prompt    string                 `json:"prompt,omitempty"`
	Images    []string               `json:"images,omitempty"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// Load loads the model if it is not loaded yet. The load runs under its own
// LoadTimeout deadline and is not aborted when ctx is canceled, so a slow
// cold start completes for the benefit of later requests.
func (m *LocalModel) Load(ctx context.Context) error {
	return m.ensureLoaded(ctx)
}

// ensureLoaded loads the model exactly once. Callers arriving during a load
// wait for it; a failed load is retried by the next caller.
func (m *LocalModel) ensureLoaded(ctx context.Context) error {
	if m.loaded.Load() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
	defer cancel()

	start := time.Now()
	logger.CtxInfo(ctx, "Loading local caption model: %s", m.model)

	var apiErr ollamaError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(ollamaShowRequest{Model: m.model}).
		SetError(&apiErr).
		Post("/api/show")
	if err != nil {
		return fmt.Errorf("failed to reach local model runtime: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("local model %s unavailable: HTTP %d: %s", m.model, resp.StatusCode(), apiErr.Error)
	}

	// An empty prompt makes the runtime load the weights without generating.
	resp, err = m.client.R().
		SetContext(ctx).
		SetBody(ollamaGenerateRequest{Model: m.model, KeepAlive: -1}).
		SetError(&apiErr).
		Post("/api/generate")
	if err != nil {
		return fmt.Errorf("failed to load local model: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to load local model %s: HTTP %d: %s", m.model, resp.StatusCode(), apiErr.Error)
	}

	m.loads++
	m.loaded.Store(true)
	logger.With(logger.Fields{logger.FieldProvider: m.model}).
		WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Local caption model loaded")
	return nil
}

// Caption runs synchronous inference against the local runtime.
// Parameters:
//   - ctx: context carrying the inference deadline.
//   - img: normalized image; its canonical JPEG bytes are sent.
// Returns:
//   - string: trimmed caption.
//   - error: non-nil if loading or inference fails.
func (m *LocalModel) Caption(ctx context.Context, img *imaging.NormalizedImage) (string, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return "", err
	}

	req := ollamaGenerateRequest{
		Model:     m.model,
		Prompt:    m.prompt,
		Images:    []string{base64.StdEncoding.EncodeToString(img.Data)},
		Stream:    false,
		KeepAlive: -1,
		Options: map[string]interface{}{
			"num_predict": m.maxTokens,
		},
	}

	var result ollamaGenerateResponse
	var apiErr ollamaError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("failed to call local model: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("local model returned HTTP %d: %s", resp.StatusCode(), apiErr.Error)
	}
	if result.Error != "" {
		return "", fmt.Errorf("local model error: %s", result.Error)
	}

	caption := cleanCaption(result.Response)
	if caption == "" {
		return "", fmt.Errorf("local model returned an empty caption")
	}
	return caption, nil
}

// cleanCaption trims whitespace and wrapping quotes models like to add.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}
