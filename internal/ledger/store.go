// Package ledger persists run history in PostgreSQL: one row per run, one
// per submitted chunk, and one per failed record.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/crmimport/internal/core"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DefaultListLimit caps list queries without an explicit limit.
const DefaultListLimit = 50

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx used by Store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Store implements core.Recorder and the read queries behind the HTTP API.
type Store struct {
	db  DBTX
	now func() time.Time
}

var _ core.Recorder = (*Store)(nil)

// New creates a store on db.
func New(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the ledger tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

// Run is one recorded run.
type Run struct {
	ID         string        `json:"id"`
	Entity     string        `json:"entity"`
	Object     string        `json:"object"`
	Source     string        `json:"source,omitempty"`
	Rows       int           `json:"rows"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	Summary    *core.Summary `json:"summary,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Chunk is one recorded chunk outcome.
type Chunk struct {
	Index      int    `json:"index"`
	Offset     int    `json:"offset"`
	Size       int    `json:"size"`
	Succeeded  int    `json:"succeeded"`
	Updated    int    `json:"updated"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Failure is one recorded failed record.
type Failure struct {
	Position int             `json:"position"`
	ImportID string          `json:"importId,omitempty"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Entity string
	Status string
	Since  time.Time
	Limit  int
	Offset int
}

// ----------------------------------------------------------------------------
// core.Recorder
// ----------------------------------------------------------------------------

// StartRun inserts a running run.
func (s *Store) StartRun(ctx context.Context, info core.RunInfo) error {
	started := info.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO import_run (id, entity, object, source, row_count, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		toPgUUID(info.ID), info.Entity, info.Object, toPgText(info.Source),
		int32(info.Rows), StatusRunning, toPgTimestamptz(started),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordChunk inserts a chunk outcome.
func (s *Store) RecordChunk(ctx context.Context, runID string, c core.ChunkReport) error {
	_, err := s.db.Exec(ctx, `INSERT INTO import_chunk
		(run_id, chunk_index, record_offset, size, succeeded, updated, failed, duration_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		toPgUUID(runID), int32(c.Index), int32(c.Offset), int32(c.Size),
		int32(c.Succeeded), int32(c.Updated), int32(c.Failed),
		c.Duration.Milliseconds(), toPgText(c.Err),
	)
	if err != nil {
		return fmt.Errorf("insert chunk %d: %w", c.Index, err)
	}
	return nil
}

// RecordFailures bulk-copies failed records.
func (s *Store) RecordFailures(ctx context.Context, runID string, rows []core.FailureRow) error {
	if len(rows) == 0 {
		return nil
	}
	id := toPgUUID(runID)

	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		rec, err := json.Marshal(r.Record)
		if err != nil {
			rec = nil
		}
		data = append(data, []any{
			id, int32(r.Position), toPgText(r.ImportID), toPgText(r.Code), toPgText(r.Message), rec,
		})
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"import_failure"},
		[]string{"run_id", "position", "import_id", "error_code", "error_message", "record"},
		pgx.CopyFromRows(data),
	)
	if err != nil {
		return fmt.Errorf("copy failures: %w", err)
	}
	return nil
}

// FinishRun stores the final status and summary.
func (s *Store) FinishRun(ctx context.Context, runID string, summary core.Summary, runErr error) error {
	status := StatusSucceeded
	var errText string
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
	}
	sum, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tag, err := s.db.Exec(ctx, `UPDATE import_run
		SET status = $2, finished_at = $3, summary = $4, error = $5
		WHERE id = $1`,
		toPgUUID(runID), status, toPgTimestamptz(s.now()), sum, toPgText(errText),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

const runColumns = `id, entity, object, source, row_count, status, started_at, finished_at, summary, error`

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}

	wb := newWhereBuilder()
	wb.Add("entity", f.Entity)
	wb.Add("status", f.Status)
	wb.AddSince("started_at", f.Since)
	whereClause, args := wb.Build()

	query := `SELECT ` + runColumns + ` FROM import_run` + whereClause +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM import_run WHERE id = $1`, pgID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListChunks returns a run's chunks in submission order.
func (s *Store) ListChunks(ctx context.Context, runID string) ([]Chunk, error) {
	rows, err := s.db.Query(ctx, `SELECT chunk_index, record_offset, size, succeeded, updated, failed, duration_ms, error
		FROM import_chunk WHERE run_id = $1 ORDER BY chunk_index`, toPgUUID(runID))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]Chunk, 0)
	for rows.Next() {
		var (
			c       Chunk
			cols    [6]int32
			errText pgtype.Text
		)
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &c.DurationMs, &errText); err != nil {
			return nil, err
		}
		c.Index, c.Offset, c.Size = int(cols[0]), int(cols[1]), int(cols[2])
		c.Succeeded, c.Updated, c.Failed = int(cols[3]), int(cols[4]), int(cols[5])
		c.Error = errText.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListFailures returns a run's failed records by position.
func (s *Store) ListFailures(ctx context.Context, runID string, limit, offset int) ([]Failure, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(ctx, `SELECT position, import_id, error_code, error_message, record
		FROM import_failure WHERE run_id = $1 ORDER BY position LIMIT $2 OFFSET $3`,
		toPgUUID(runID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	failures := make([]Failure, 0)
	for rows.Next() {
		var (
			f        Failure
			position int32
			importID pgtype.Text
			code     pgtype.Text
			message  pgtype.Text
			record   []byte
		)
		if err := rows.Scan(&position, &importID, &code, &message, &record); err != nil {
			return nil, err
		}
		f.Position = int(position)
		f.ImportID = importID.String
		f.Code = code.String
		f.Message = message.String
		if len(record) > 0 {
			f.Record = json.RawMessage(record)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// scanRun scans a single import_run row.
func scanRun(row pgx.Row) (*Run, error) {
	var (
		id         pgtype.UUID
		entity     string
		object     string
		source     pgtype.Text
		rowCount   int32
		status     string
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
		summary    []byte
		errText    pgtype.Text
	)
	if err := row.Scan(&id, &entity, &object, &source, &rowCount, &status,
		&startedAt, &finishedAt, &summary, &errText); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        pgUUIDToString(id),
		Entity:    entity,
		Object:    object,
		Rows:      int(rowCount),
		Status:    status,
		StartedAt: startedAt.Time,
	}
	if source.Valid {
		run.Source = source.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if len(summary) > 0 {
		var sum core.Summary
		if err := json.Unmarshal(summary, &sum); err != nil {
			return nil, fmt.Errorf("decode summary of run %s: %w", run.ID, err)
		}
		run.Summary = &sum
	}
	if errText.Valid {
		run.Error = errText.String
	}
	return run, nil
}
