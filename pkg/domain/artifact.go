package domain

import (
	"context"
	"strings"
	"time"
)

type ArtifactType string

const (
	ArtifactTypeImage    ArtifactType = "image"
	ArtifactTypeVideo    ArtifactType = "video"
	ArtifactTypeAudio    ArtifactType = "audio"
	ArtifactTypeDocument ArtifactType = "document"
	ArtifactTypeText     ArtifactType = "text"
	ArtifactTypeOther    ArtifactType = "other"
)

// ArtifactTypeFromMimeType maps a content type onto the artifact categories.
func ArtifactTypeFromMimeType(mimeType string) ArtifactType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return ArtifactTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return ArtifactTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return ArtifactTypeAudio
	case strings.HasPrefix(mimeType, "text/"):
		return ArtifactTypeText
	case mimeType == "application/pdf",
		strings.HasPrefix(mimeType, "application/msword"),
		strings.HasPrefix(mimeType, "application/vnd.openxmlformats-officedocument"):
		return ArtifactTypeDocument
	default:
		return ArtifactTypeOther
	}
}

type Artifact struct {
	ID           string            `json:"id"`
	ExecutionID  string            `json:"executionId"`
	NodeID       string            `json:"nodeId,omitempty"`
	FileID       string            `json:"fileId"`
	ArtifactType ArtifactType      `json:"artifactType"`
	Name         string            `json:"name"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Size         int64             `json:"size"`
	MimeType     string            `json:"mimeType"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// ArtifactStore holds the bytes behind artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, params PutArtifactFileParams) (string, error)
	Delete(ctx context.Context, fileID string) error
}

type PutArtifactFileParams struct {
	ExecutionID string
	Name        string
	MimeType    string
	Metadata    map[string]string
	Data        []byte
}

// ArtifactManager links stored files to the runs that produced them.
type ArtifactManager interface {
	CreateArtifact(ctx context.Context, params CreateArtifactParams) (Artifact, error)
	ListArtifacts(ctx context.Context, executionID string) ([]Artifact, error)
	DeleteArtifact(ctx context.Context, artifactID string) error
}

type CreateArtifactParams struct {
	ExecutionID string
	NodeID      string
	Name        string
	MimeType    string
	Metadata    map[string]string
	Data        []byte
}
