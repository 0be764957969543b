package ai

import (
	"context"
	"errors"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type ChatRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  *float64
	MaxTokens    int
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// ChatProvider is a single-turn completion backend.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

type ImageRequest struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
	Count   int
}

type GeneratedImage struct {
	Data          []byte
	MimeType      string
	RevisedPrompt string
}

type ImageProvider interface {
	GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)
}
