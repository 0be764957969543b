package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultImageTimeout = 120 * time.Second
	maxImageCount       = 4
	maxSlugLength       = 48
)

type ImageParams struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Size      string `json:"size"`
	Quality   string `json:"quality"`
	Count     int    `json:"count"`
	TimeoutMs int    `json:"timeoutMs"`
}

// ImageExecutor generates images and registers each one as a run artifact.
type ImageExecutor struct {
	provider        ImageProvider
	artifactManager domain.ArtifactManager
	timeout         time.Duration
}

type ImageExecutorDependencies struct {
	Provider        ImageProvider
	ArtifactManager domain.ArtifactManager
	Timeout         time.Duration
}

func NewImageExecutor(deps ImageExecutorDependencies) *ImageExecutor {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}

	return &ImageExecutor{
		provider:        deps.Provider,
		artifactManager: deps.ArtifactManager,
		timeout:         timeout,
	}
}

func (e *ImageExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params ImageParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	if e.provider == nil {
		return nil, fmt.Errorf("image provider is not configured")
	}

	if params.Count > maxImageCount {
		return nil, fmt.Errorf("count %d exceeds maximum %d", params.Count, maxImageCount)
	}

	timeout := e.timeout
	if params.TimeoutMs > 0 {
		timeout = time.Duration(params.TimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	images, err := e.provider.GenerateImages(ctx, ImageRequest{
		Model:   params.Model,
		Prompt:  params.Prompt,
		Size:    params.Size,
		Quality: params.Quality,
		Count:   params.Count,
	})
	if err != nil {
		return nil, err
	}

	baseName := artifactBaseName(params.Prompt)
	artifacts := make([]any, 0, len(images))

	for i, image := range images {
		metadata := map[string]string{
			"prompt": params.Prompt,
		}
		if params.Model != "" {
			metadata["model"] = params.Model
		}
		if image.RevisedPrompt != "" {
			metadata["revisedPrompt"] = image.RevisedPrompt
		}

		artifact, err := e.artifactManager.CreateArtifact(ctx, domain.CreateArtifactParams{
			ExecutionID: input.ExecutionID(),
			NodeID:      input.NodeID,
			Name:        fmt.Sprintf("%s-%d.png", baseName, i+1),
			MimeType:    image.MimeType,
			Metadata:    metadata,
			Data:        image.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store image %d: %w", i+1, err)
		}

		artifacts = append(artifacts, map[string]any{
			"id":           artifact.ID,
			"fileId":       artifact.FileID,
			"name":         artifact.Name,
			"mimeType":     artifact.MimeType,
			"size":         artifact.Size,
			"artifactType": string(artifact.ArtifactType),
		})
	}

	return map[string]any{
		"artifacts": artifacts,
		"count":     len(artifacts),
	}, nil
}

func artifactBaseName(prompt string) string {
	name := slug.Make(prompt)
	if len(name) > maxSlugLength {
		name = strings.TrimRight(name[:maxSlugLength], "-")
	}
	if name == "" {
		name = "image"
	}
	return name
}
