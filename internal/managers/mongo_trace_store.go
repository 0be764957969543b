package managers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultMongoRunCollection     = "flow_runs"
	DefaultMongoNodeRunCollection = "flow_node_runs"
)

type nodeRunDocument struct {
	Position       int `bson:"position"`
	domain.NodeRun `bson:",inline"`
}

// MongoTraceStore keeps runs and node runs in two collections. Node runs carry
// their position in the run so they can be read back in execution order.
type MongoTraceStore struct {
	runs     *mongo.Collection
	nodeRuns *mongo.Collection
}

type MongoTraceStoreDependencies struct {
	Database              *mongo.Database
	RunCollectionName     string
	NodeRunCollectionName string
}

func NewMongoTraceStore(deps MongoTraceStoreDependencies) *MongoTraceStore {
	runCollection := deps.RunCollectionName
	if runCollection == "" {
		runCollection = DefaultMongoRunCollection
	}

	nodeRunCollection := deps.NodeRunCollectionName
	if nodeRunCollection == "" {
		nodeRunCollection = DefaultMongoNodeRunCollection
	}

	store := &MongoTraceStore{
		runs:     deps.Database.Collection(runCollection),
		nodeRuns: deps.Database.Collection(nodeRunCollection),
	}

	store.ensureIndexes()

	return store
}

// ConnectMongo connects and pings the deployment behind uri.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

func (s *MongoTraceStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "execution_id", Value: 1},
				{Key: "position", Value: 1},
			},
		},
	}

	if _, err := s.nodeRuns.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn().Err(err).Msg("Failed to create node run indexes")
	}

	_, err := s.runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "start_time", Value: -1}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create run indexes")
	}
}

func (s *MongoTraceStore) PersistRun(ctx context.Context, run domain.ExecutionRun) error {
	opts := options.Replace().SetUpsert(true)

	_, err := s.runs.ReplaceOne(ctx, bson.M{"_id": run.ExecutionID}, run, opts)
	if err != nil {
		return fmt.Errorf("failed to persist run %s: %w", run.ExecutionID, err)
	}

	return nil
}

func (s *MongoTraceStore) PersistNodeRuns(ctx context.Context, runID string, nodeRuns []domain.NodeRun) error {
	if _, err := s.nodeRuns.DeleteMany(ctx, bson.M{"execution_id": runID}); err != nil {
		return fmt.Errorf("failed to clear node runs of %s: %w", runID, err)
	}

	if len(nodeRuns) == 0 {
		return nil
	}

	documents := make([]any, len(nodeRuns))
	for i, nodeRun := range nodeRuns {
		nodeRun.ExecutionID = runID
		documents[i] = nodeRunDocument{Position: i, NodeRun: nodeRun}
	}

	if _, err := s.nodeRuns.InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("failed to persist node runs of %s: %w", runID, err)
	}

	return nil
}

func (s *MongoTraceStore) GetRun(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	var run domain.ExecutionRun

	err := s.runs.FindOne(ctx, bson.M{"_id": runID}).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ExecutionRun{}, domain.ErrRunNotFound
		}
		return domain.ExecutionRun{}, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	return run, nil
}

func (s *MongoTraceStore) ListNodeRuns(ctx context.Context, runID string) ([]domain.NodeRun, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})

	cursor, err := s.nodeRuns.Find(ctx, bson.M{"execution_id": runID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find node runs of %s: %w", runID, err)
	}
	defer cursor.Close(ctx)

	var documents []nodeRunDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode node runs: %w", err)
	}

	nodeRuns := make([]domain.NodeRun, len(documents))
	for i, document := range documents {
		nodeRuns[i] = document.NodeRun
	}

	return nodeRuns, nil
}
