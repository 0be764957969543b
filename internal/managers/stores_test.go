package managers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func TestMemoryTraceStore(t *testing.T) {
	store := NewMemoryTraceStore()
	ctx := context.Background()

	run := testRun("run-1", domain.RunStatusCompleted, time.Now())
	require.NoError(t, store.PersistRun(ctx, run))
	require.NoError(t, store.PersistNodeRuns(ctx, "run-1", run.NodeRuns))

	stored, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)
	assert.Nil(t, stored.NodeRuns)

	nodeRuns, err := store.ListNodeRuns(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, nodeRuns, 1)
	assert.Equal(t, "a", nodeRuns[0].NodeID)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	nodeRuns, err = store.ListNodeRuns(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, nodeRuns)
}

func TestArtifactManager_Lifecycle(t *testing.T) {
	store := NewMemoryArtifactStore()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	manager := NewArtifactManager(ArtifactManagerDependencies{Store: store, Clock: clock.Now})

	ctx := context.Background()

	image, err := manager.CreateArtifact(ctx, domain.CreateArtifactParams{
		ExecutionID: "run-1",
		NodeID:      "img",
		Name:        "cat.png",
		MimeType:    "image/png",
		Data:        []byte{1, 2, 3},
	})
	require.NoError(t, err)

	clock.Advance(time.Second)

	blob, err := manager.CreateArtifact(ctx, domain.CreateArtifactParams{
		ExecutionID: "run-1",
		Data:        []byte("raw"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, image.ID)
	assert.Equal(t, domain.ArtifactTypeImage, image.ArtifactType)
	assert.EqualValues(t, 3, image.Size)
	assert.Equal(t, defaultArtifactMimeType, blob.MimeType)
	assert.Equal(t, domain.ArtifactTypeOther, blob.ArtifactType)
	assert.NotEmpty(t, blob.Name)

	data, ok := store.Get(image.FileID)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	artifacts, err := manager.ListArtifacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, image.ID, artifacts[0].ID)

	require.NoError(t, manager.DeleteArtifact(ctx, image.ID))

	_, ok = store.Get(image.FileID)
	assert.False(t, ok)

	artifacts, err = manager.ListArtifacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, blob.ID, artifacts[0].ID)

	assert.ErrorIs(t, manager.DeleteArtifact(ctx, image.ID), domain.ErrArtifactNotFound)

	_, err = manager.CreateArtifact(ctx, domain.CreateArtifactParams{Data: []byte("x")})
	assert.ErrorContains(t, err, "execution id is required")
}

type fakeS3 struct {
	mtx     sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3ArtifactStore_PutDelete(t *testing.T) {
	backend := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(backend)
	defer server.Close()

	store, err := NewS3ArtifactStore(S3ArtifactStoreConfig{
		Region:          "us-east-1",
		Bucket:          "artifacts",
		Prefix:          "flows",
		Endpoint:        server.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)

	ctx := context.Background()

	fileID, err := store.Put(ctx, domain.PutArtifactFileParams{
		ExecutionID: "run-1",
		Name:        "report.txt",
		MimeType:    "text/plain",
		Data:        []byte("hello"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(fileID, "flows/run-1/"))
	assert.True(t, strings.HasSuffix(fileID, "-report.txt"))

	objectPath := "/artifacts/" + fileID
	assert.Equal(t, []byte("hello"), backend.objects[objectPath])
	assert.Equal(t, "text/plain", backend.types[objectPath])

	require.NoError(t, store.Delete(ctx, fileID))
	assert.NotContains(t, backend.objects, objectPath)

	_, err = NewS3ArtifactStore(S3ArtifactStoreConfig{Region: "us-east-1"})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestKnowledgeClient_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, knowledgeSearchPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var query domain.KnowledgeQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		assert.Equal(t, "refund policy", query.Text)
		assert.Equal(t, 3, query.Limit)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[{"documentId":"d1","content":"Refunds within 30 days","score":0.91}]}`))
	}))
	defer server.Close()

	client := NewKnowledgeClient(KnowledgeClientDependencies{BaseURL: server.URL + "/", APIKey: "secret"})

	hits, err := client.Query(context.Background(), domain.KnowledgeQuery{Text: "refund policy", Limit: 3})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocumentID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
}

func TestKnowledgeClient_QueryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewKnowledgeClient(KnowledgeClientDependencies{BaseURL: server.URL})

	_, err := client.Query(context.Background(), domain.KnowledgeQuery{Text: "x"})
	assert.ErrorContains(t, err, "status 503")
}
