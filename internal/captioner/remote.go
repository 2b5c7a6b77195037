package captioner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/timmy/snapcaption/internal/imaging"
	"github.com/timmy/snapcaption/internal/prompts"
)

// RemoteModel captions images through an OpenAI-compatible chat completion
// API. The default endpoint is Gemini's OpenAI compatibility layer.
type RemoteModel struct {
	client      *openai.Client
	model       string
	instruction string
	maxTokens   int
}

// RemoteConfig holds configuration for RemoteModel.
type RemoteConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Instruction string
	MaxTokens   int
}

// ErrMissingAPIKey is returned by NewRemoteModel without credentials.
var ErrMissingAPIKey = errors.New("remote caption provider requires an API key")

// NewRemoteModel creates a RemoteModel.
// Parameters:
//   - cfg: API credentials, endpoint and model.
// Returns:
//   - *RemoteModel: configured client.
//   - error: ErrMissingAPIKey when cfg.APIKey is empty.
func NewRemoteModel(cfg *RemoteConfig) (*RemoteModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	instruction := cfg.Instruction
	if instruction == "" {
		instruction = prompts.CaptionInstruction
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 50
	}

	return &RemoteModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		instruction: instruction,
		maxTokens:   maxTokens,
	}, nil
}

// Name returns the remote model identifier.
func (m *RemoteModel) Name() string {
	return m.model
}

// Caption sends img with the fixed instruction and returns the reply text.
// Parameters:
//   - ctx: context carrying the inference deadline.
//   - img: normalized image, sent as a base64 JPEG data URL.
// Returns:
//   - string: trimmed caption.
//   - error: non-nil on transport, auth, status or empty-response failures.
func (m *RemoteModel) Caption(ctx context.Context, img *imaging.NormalizedImage) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img.Data)

	req := openai.ChatCompletionRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompts.CaptionSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: m.instruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to call remote caption API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("remote caption API returned no choices")
	}

	caption := cleanCaption(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", fmt.Errorf("remote caption API returned an empty caption")
	}
	return caption, nil
}
