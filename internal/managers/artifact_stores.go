package managers

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/xid"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// MemoryArtifactStore keeps artifact bytes in process.
type MemoryArtifactStore struct {
	mtx   sync.RWMutex
	files map[string][]byte
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		files: make(map[string][]byte),
	}
}

func (s *MemoryArtifactStore) Put(ctx context.Context, params domain.PutArtifactFileParams) (string, error) {
	fileID := path.Join(params.ExecutionID, xid.New().String()+"-"+params.Name)

	data := make([]byte, len(params.Data))
	copy(data, params.Data)

	s.mtx.Lock()
	s.files[fileID] = data
	s.mtx.Unlock()

	return fileID, nil
}

func (s *MemoryArtifactStore) Get(fileID string) ([]byte, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	data, ok := s.files[fileID]
	return data, ok
}

func (s *MemoryArtifactStore) Delete(ctx context.Context, fileID string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.files[fileID]; !ok {
		return domain.ErrArtifactNotFound
	}

	delete(s.files, fileID)
	return nil
}

type S3ArtifactStoreConfig struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3ArtifactStore uploads artifacts under "<prefix>/<executionID>/<xid>-<name>"
// and uses the object key as the file id.
type S3ArtifactStore struct {
	client   s3iface.S3API
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

func NewS3ArtifactStore(config S3ArtifactStoreConfig) (*S3ArtifactStore, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.ForcePathStyle),
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return NewS3ArtifactStoreWithClient(s3.New(sess), config.Bucket, config.Prefix), nil
}

func NewS3ArtifactStoreWithClient(client s3iface.S3API, bucket, prefix string) *S3ArtifactStore {
	return &S3ArtifactStore{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (s *S3ArtifactStore) Put(ctx context.Context, params domain.PutArtifactFileParams) (string, error) {
	key := path.Join(s.prefix, params.ExecutionID, xid.New().String()+"-"+params.Name)

	metadata := make(map[string]*string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = aws.String(v)
	}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(params.Data),
		ContentType: aws.String(params.MimeType),
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact to s3: %w", err)
	}

	return key, nil
}

func (s *S3ArtifactStore) Delete(ctx context.Context, fileID string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact from s3: %w", err)
	}

	return nil
}
