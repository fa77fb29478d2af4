package core

// batch.go submits records to the remote system in fixed-size chunks.
//
// Chunks are submitted strictly one after another. A record rejected by
// the remote system is not an error here: it surfaces as an unsuccessful
// UpsertResult. A chunk-level failure (transport error, non-2xx response,
// or a result count that does not match the chunk) stops the run; chunks
// not yet attempted are listed in Outcome.Skipped. Records the remote
// system committed before a failure (reported through *PartialError) keep
// their results.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultChunkSize is the number of records per remote call.
const DefaultChunkSize = 10000

// ErrMissingExternalID is returned when a record reaches submission without
// an external identifier.
var ErrMissingExternalID = errors.New("record has no external id")

// Batch is one chunk of records submitted together.
type Batch struct {
	Index           int
	Offset          int
	Records         []Record
	ExternalIDField string
}

// Chunk splits records into ceil(len/size) order-preserving batches.
func Chunk(records []Record, size int, externalIDField string) []Batch {
	if size <= 0 {
		size = DefaultChunkSize
	}
	batches := make([]Batch, 0, (len(records)+size-1)/size)
	for off := 0; off < len(records); off += size {
		end := min(off+size, len(records))
		batches = append(batches, Batch{
			Index:           len(batches),
			Offset:          off,
			Records:         records[off:end],
			ExternalIDField: externalIDField,
		})
	}
	return batches
}

// ChunkReport describes one submitted chunk.
type ChunkReport struct {
	Index     int           `json:"index"`
	Offset    int           `json:"offset"`
	Size      int           `json:"size"`
	Succeeded int           `json:"succeeded"`
	Updated   int           `json:"updated"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Err       string        `json:"error,omitempty"`
}

// ChunkRef identifies a chunk that was not completed.
type ChunkRef struct {
	Index  int `json:"index"`
	Offset int `json:"offset"`
	Size   int `json:"size"`
}

// ChunkError is a chunk-level failure.
type ChunkError struct {
	Index  int
	Total  int
	Offset int
	Size   int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d (records %d-%d): %v",
		e.Index+1, e.Total, e.Offset+1, e.Offset+e.Size, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// PartialError is returned by an Upserter that committed a leading part of
// the records before failing. Results holds one entry per committed record,
// aligned with the start of the input.
type PartialError struct {
	Results []UpsertResult
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d records committed before failure: %v", len(e.Results), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Totals aggregates record outcomes across chunks.
type Totals struct {
	Submitted    int
	Succeeded    int
	Updated      int
	Failed       int
	NotSubmitted int
}

// Outcome is the result of an execution. Results holds one entry per record
// of every completed chunk, in submission order.
type Outcome struct {
	Results []UpsertResult
	Chunks  []ChunkReport
	Failed  *ChunkRef
	Skipped []ChunkRef
	Totals  Totals
}

// Executor submits records through an Upserter.
type Executor struct {
	Upserter  Upserter
	ChunkSize int
	Logger    *slog.Logger

	// OnChunk, if set, is called after every attempted chunk.
	OnChunk func(ChunkReport)
}

// Execute upserts records keyed by externalIDField. The returned Outcome is
// never nil; on a chunk-level failure it describes the work done so far and
// the error is a *ChunkError.
func (e *Executor) Execute(ctx context.Context, records []Record, externalIDField string) (*Outcome, error) {
	out := &Outcome{Results: make([]UpsertResult, 0, len(records))}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if e.Upserter == nil {
		return out, errors.New("executor has no upserter")
	}
	for i, rec := range records {
		if rec.Text(externalIDField) == "" {
			return out, fmt.Errorf("record %d: %w (%s)", i+1, ErrMissingExternalID, externalIDField)
		}
	}

	batches := Chunk(records, e.ChunkSize, externalIDField)
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			e.abort(out, batches[i:], len(records))
			return out, &ChunkError{Index: b.Index, Total: len(batches), Offset: b.Offset, Size: len(b.Records), Err: err}
		}

		start := time.Now()
		results, err := e.Upserter.Upsert(ctx, b.Records, externalIDField)
		if err == nil && len(results) != len(b.Records) {
			err = fmt.Errorf("remote returned %d results for %d records", len(results), len(b.Records))
		}
		report := ChunkReport{
			Index:    b.Index,
			Offset:   b.Offset,
			Size:     len(b.Records),
			Duration: time.Since(start),
		}

		if err != nil {
			var partial *PartialError
			if errors.As(err, &partial) && len(partial.Results) < len(b.Records) {
				e.accept(out, &report, partial.Results)
			}
			committed := len(out.Results) - b.Offset
			report.Err = err.Error()
			e.notify(report)
			logger.Error("chunk failed",
				"chunk", b.Index+1,
				"chunks", len(batches),
				"offset", b.Offset,
				"size", len(b.Records),
				"committed", committed,
				"error", err,
			)
			out.Failed = &ChunkRef{Index: b.Index, Offset: b.Offset + committed, Size: len(b.Records) - committed}
			e.abort(out, batches[i+1:], len(records))
			return out, &ChunkError{Index: b.Index, Total: len(batches), Offset: b.Offset, Size: len(b.Records), Err: err}
		}

		e.accept(out, &report, results)
		out.Chunks = append(out.Chunks, report)
		e.notify(report)

		logger.Info("chunk submitted",
			"chunk", b.Index+1,
			"chunks", len(batches),
			"size", report.Size,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"duration_ms", report.Duration.Milliseconds(),
		)
	}

	return out, nil
}

// accept adds results for the leading records of a chunk to the outcome.
func (e *Executor) accept(out *Outcome, report *ChunkReport, results []UpsertResult) {
	for _, r := range results {
		switch {
		case !r.Success:
			report.Failed++
		case r.Created:
			report.Succeeded++
		default:
			report.Succeeded++
			report.Updated++
		}
	}
	out.Results = append(out.Results, results...)
	out.Totals.Submitted += len(results)
	out.Totals.Succeeded += report.Succeeded
	out.Totals.Updated += report.Updated
	out.Totals.Failed += report.Failed
}

// abort lists the remaining batches as skipped and accounts for every
// record that never got a result.
func (e *Executor) abort(out *Outcome, remaining []Batch, total int) {
	for _, b := range remaining {
		out.Skipped = append(out.Skipped, ChunkRef{Index: b.Index, Offset: b.Offset, Size: len(b.Records)})
	}
	out.Totals.NotSubmitted = total - len(out.Results)
}

func (e *Executor) notify(r ChunkReport) {
	if e.OnChunk != nil {
		e.OnChunk(r)
	}
}
