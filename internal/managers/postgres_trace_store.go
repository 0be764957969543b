package managers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresTraceStore writes runs and node runs to two tables. Node inputs,
// outputs and run results are stored as JSONB.
type PostgresTraceStore struct {
	conn        pgxConn
	tablePrefix string
}

type PostgresTraceStoreDependencies struct {
	Conn        pgxConn
	TablePrefix string
}

func NewPostgresTraceStore(ctx context.Context, deps PostgresTraceStoreDependencies) (*PostgresTraceStore, error) {
	store := &PostgresTraceStore{
		conn:        deps.Conn,
		tablePrefix: deps.TablePrefix,
	}

	if err := store.ensureTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure trace tables: %w", err)
	}

	return store, nil
}

// ConnectPostgres opens a connection pool and verifies it.
func ConnectPostgres(ctx context.Context, uri string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return pool, nil
}

func (s *PostgresTraceStore) runTable() string {
	if s.tablePrefix != "" {
		return fmt.Sprintf("%s_runs", s.tablePrefix)
	}
	return "flow_runs"
}

func (s *PostgresTraceStore) nodeRunTable() string {
	if s.tablePrefix != "" {
		return fmt.Sprintf("%s_node_runs", s.tablePrefix)
	}
	return "flow_node_runs"
}

func (s *PostgresTraceStore) ensureTables(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				flow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				result JSONB,
				error TEXT
			)
		`, s.runTable()),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id SERIAL PRIMARY KEY,
				execution_id TEXT NOT NULL,
				position INT NOT NULL,
				node_id TEXT NOT NULL,
				type TEXT NOT NULL,
				input JSONB,
				output JSONB,
				error TEXT,
				status TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ
			)
		`, s.nodeRunTable()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_execution ON %s(execution_id, position)`,
			s.nodeRunTable(), s.nodeRunTable()),
	}

	for _, statement := range statements {
		if _, err := s.conn.Exec(ctx, statement); err != nil {
			return err
		}
	}

	return nil
}

func (s *PostgresTraceStore) PersistRun(ctx context.Context, run domain.ExecutionRun) error {
	resultJSON, err := marshalNullableJSON(run.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	upsertSQL := fmt.Sprintf(`
		INSERT INTO %s (id, flow_id, status, start_time, end_time, result, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			result = EXCLUDED.result,
			error = EXCLUDED.error
	`, s.runTable())

	_, err = s.conn.Exec(ctx, upsertSQL,
		run.ExecutionID,
		run.FlowID,
		string(run.Status),
		run.StartTime,
		run.EndTime,
		resultJSON,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to persist run %s: %w", run.ExecutionID, err)
	}

	return nil
}

func (s *PostgresTraceStore) PersistNodeRuns(ctx context.Context, runID string, nodeRuns []domain.NodeRun) error {
	batch := &pgx.Batch{}
	batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE execution_id = $1`, s.nodeRunTable()), runID)

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (execution_id, position, node_id, type, input, output, error, status, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.nodeRunTable())

	for i, nodeRun := range nodeRuns {
		inputJSON, err := marshalNullableJSON(nodeRun.Input)
		if err != nil {
			return fmt.Errorf("failed to marshal input of node %s: %w", nodeRun.NodeID, err)
		}

		outputJSON, err := marshalNullableJSON(nodeRun.Output)
		if err != nil {
			return fmt.Errorf("failed to marshal output of node %s: %w", nodeRun.NodeID, err)
		}

		batch.Queue(insertSQL,
			runID,
			i,
			nodeRun.NodeID,
			string(nodeRun.Type),
			inputJSON,
			outputJSON,
			nodeRun.Error,
			string(nodeRun.Status),
			nodeRun.StartTime,
			nodeRun.EndTime,
		)
	}

	results := s.conn.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to persist node runs of %s: %w", runID, err)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to persist node runs of %s: %w", runID, err)
	}

	return nil
}

func (s *PostgresTraceStore) GetRun(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	selectSQL := fmt.Sprintf(`
		SELECT id, flow_id, status, start_time, end_time, result, error
		FROM %s WHERE id = $1
	`, s.runTable())

	var (
		run        domain.ExecutionRun
		status     string
		resultJSON []byte
		errorText  *string
	)

	err := s.conn.QueryRow(ctx, selectSQL, runID).Scan(
		&run.ExecutionID,
		&run.FlowID,
		&status,
		&run.StartTime,
		&run.EndTime,
		&resultJSON,
		&errorText,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionRun{}, domain.ErrRunNotFound
		}
		return domain.ExecutionRun{}, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	run.Status = domain.RunStatus(status)
	if errorText != nil {
		run.Error = *errorText
	}

	if run.Result, err = unmarshalNullableJSON(resultJSON); err != nil {
		return domain.ExecutionRun{}, fmt.Errorf("failed to unmarshal run result: %w", err)
	}

	return run, nil
}

func (s *PostgresTraceStore) ListNodeRuns(ctx context.Context, runID string) ([]domain.NodeRun, error) {
	selectSQL := fmt.Sprintf(`
		SELECT node_id, type, input, output, error, status, start_time, end_time
		FROM %s WHERE execution_id = $1 ORDER BY position
	`, s.nodeRunTable())

	rows, err := s.conn.Query(ctx, selectSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node runs of %s: %w", runID, err)
	}
	defer rows.Close()

	nodeRuns := []domain.NodeRun{}
	for rows.Next() {
		var (
			nodeRun               domain.NodeRun
			nodeType, status      string
			inputJSON, outputJSON []byte
			errorText             *string
			endTime               *time.Time
		)

		err := rows.Scan(
			&nodeRun.NodeID,
			&nodeType,
			&inputJSON,
			&outputJSON,
			&errorText,
			&status,
			&nodeRun.StartTime,
			&endTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}

		nodeRun.ExecutionID = runID
		nodeRun.Type = domain.NodeType(nodeType)
		nodeRun.Status = domain.NodeRunStatus(status)
		nodeRun.EndTime = endTime
		if errorText != nil {
			nodeRun.Error = *errorText
		}

		if nodeRun.Input, err = unmarshalNullableJSON(inputJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node input: %w", err)
		}

		if nodeRun.Output, err = unmarshalNullableJSON(outputJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node output: %w", err)
		}

		nodeRuns = append(nodeRuns, nodeRun)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node runs: %w", err)
	}

	return nodeRuns, nil
}

func marshalNullableJSON(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}

func unmarshalNullableJSON(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}

	return value, nil
}
