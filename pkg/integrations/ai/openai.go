package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIChatModel  = openai.GPT4oMini
	DefaultOpenAIImageModel = openai.CreateImageModelDallE3
)

type OpenAIProvider struct {
	client *openai.Client
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultOpenAIChatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}

	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return ChatResponse{}, ErrEmptyResponse
	}

	return ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error) {
	model := req.Model
	if model == "" {
		model = DefaultOpenAIImageModel
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}

	size := req.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          model,
		N:              count,
		Size:           size,
		Quality:        req.Quality,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image api error: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	images := make([]GeneratedImage, 0, len(resp.Data))
	for i, item := range resp.Data {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("image %d: invalid base64 payload: %w", i, err)
		}

		images = append(images, GeneratedImage{
			Data:          data,
			MimeType:      "image/png",
			RevisedPrompt: item.RevisedPrompt,
		})
	}

	return images, nil
}
