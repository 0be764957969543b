package managers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const defaultArtifactMimeType = "application/octet-stream"

// ArtifactManager stores artifact bytes through an ArtifactStore and keeps the
// artifact records indexed by run.
type ArtifactManager struct {
	store domain.ArtifactStore
	now   func() time.Time

	mtx         sync.RWMutex
	artifacts   map[string]domain.Artifact
	byExecution map[string][]string
}

type ArtifactManagerDependencies struct {
	Store domain.ArtifactStore
	Clock func() time.Time
}

func NewArtifactManager(deps ArtifactManagerDependencies) *ArtifactManager {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &ArtifactManager{
		store:       deps.Store,
		now:         clock,
		artifacts:   make(map[string]domain.Artifact),
		byExecution: make(map[string][]string),
	}
}

func (m *ArtifactManager) CreateArtifact(ctx context.Context, params domain.CreateArtifactParams) (domain.Artifact, error) {
	if params.ExecutionID == "" {
		return domain.Artifact{}, fmt.Errorf("execution id is required")
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = defaultArtifactMimeType
	}

	name := params.Name
	if name == "" {
		name = uuid.NewString()
	}

	fileID, err := m.store.Put(ctx, domain.PutArtifactFileParams{
		ExecutionID: params.ExecutionID,
		Name:        name,
		MimeType:    mimeType,
		Metadata:    params.Metadata,
		Data:        params.Data,
	})
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to store artifact %s: %w", name, err)
	}

	artifact := domain.Artifact{
		ID:           uuid.NewString(),
		ExecutionID:  params.ExecutionID,
		NodeID:       params.NodeID,
		FileID:       fileID,
		ArtifactType: domain.ArtifactTypeFromMimeType(mimeType),
		Name:         name,
		Metadata:     params.Metadata,
		Size:         int64(len(params.Data)),
		MimeType:     mimeType,
		CreatedAt:    m.now().UTC(),
	}

	m.mtx.Lock()
	m.artifacts[artifact.ID] = artifact
	m.byExecution[artifact.ExecutionID] = append(m.byExecution[artifact.ExecutionID], artifact.ID)
	m.mtx.Unlock()

	log.Debug().
		Str("artifact_id", artifact.ID).
		Str("run_id", artifact.ExecutionID).
		Int64("size", artifact.Size).
		Msg("Artifact created")

	return artifact, nil
}

func (m *ArtifactManager) ListArtifacts(ctx context.Context, executionID string) ([]domain.Artifact, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	ids := m.byExecution[executionID]
	artifacts := make([]domain.Artifact, 0, len(ids))
	for _, id := range ids {
		artifacts = append(artifacts, m.artifacts[id])
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// DeleteArtifact removes the stored file first and forgets the record only
// once the file is gone.
func (m *ArtifactManager) DeleteArtifact(ctx context.Context, artifactID string) error {
	m.mtx.RLock()
	artifact, ok := m.artifacts[artifactID]
	m.mtx.RUnlock()

	if !ok {
		return domain.ErrArtifactNotFound
	}

	if err := m.store.Delete(ctx, artifact.FileID); err != nil {
		return fmt.Errorf("failed to delete artifact file %s: %w", artifact.FileID, err)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.artifacts, artifactID)

	ids := m.byExecution[artifact.ExecutionID]
	for i, id := range ids {
		if id == artifactID {
			m.byExecution[artifact.ExecutionID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	if len(m.byExecution[artifact.ExecutionID]) == 0 {
		delete(m.byExecution, artifact.ExecutionID)
	}

	return nil
}
