package ai

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider creates its client on first use; genai.NewClient needs a
// context and rejects an empty key.
type GeminiProvider struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

type GeminiConfig struct {
	APIKey string
}

func NewGeminiProvider(config GeminiConfig) *GeminiProvider {
	return &GeminiProvider{
		apiKey: config.APIKey,
	}
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	p.client = client

	return client, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return ChatResponse{}, err
	}

	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	config := &genai.GenerateContentConfig{}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.SystemPrompt)},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("gemini api error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ChatResponse{}, ErrEmptyResponse
	}

	response := ChatResponse{Model: model}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			response.Content += part.Text
		}
	}

	if resp.UsageMetadata != nil {
		response.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return response, nil
}
