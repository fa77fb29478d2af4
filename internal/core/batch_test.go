package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			"Import_ID__c": TextValue(fmt.Sprintf("R%03d", i+1)),
			"Name":         TextValue(fmt.Sprintf("record %d", i+1)),
		}
	}
	return records
}

// echoUpserter succeeds for every record and remembers chunk sizes.
type echoUpserter struct {
	sizes  []int
	failAt int // 1-based call number that returns an error; 0 never
	short  int // 1-based call number that returns one result too few
	reject map[string]bool
}

func (u *echoUpserter) Upsert(_ context.Context, records []Record, field string) ([]UpsertResult, error) {
	u.sizes = append(u.sizes, len(records))
	call := len(u.sizes)
	if call == u.failAt {
		return nil, errors.New("status 503: service unavailable")
	}
	out := make([]UpsertResult, 0, len(records))
	for i, rec := range records {
		id := rec.Text(field)
		if u.reject[id] {
			out = append(out, UpsertResult{Errors: []UpsertError{{StatusCode: "REQUIRED_FIELD_MISSING", Message: "Required fields are missing: [Name]"}}})
			continue
		}
		out = append(out, UpsertResult{Success: true, Created: i%2 == 0, ID: "a0X" + id})
	}
	if call == u.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestChunk(t *testing.T) {
	tests := []struct {
		n, size   int
		wantSizes []int
	}{
		{n: 0, size: 10, wantSizes: nil},
		{n: 12, size: 10, wantSizes: []int{10, 2}},
		{n: 10, size: 10, wantSizes: []int{10}},
		{n: 21, size: 7, wantSizes: []int{7, 7, 7}},
		{n: 3, size: 0, wantSizes: []int{3}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			batches := Chunk(numberedRecords(tt.n), tt.size, "Import_ID__c")
			var sizes []int
			for i, b := range batches {
				assert.Equal(t, i, b.Index)
				sizes = append(sizes, len(b.Records))
			}
			assert.Equal(t, tt.wantSizes, sizes)
		})
	}
}

func TestChunkPreservesOrder(t *testing.T) {
	records := numberedRecords(25)
	var flat []Record
	for _, b := range Chunk(records, 4, "Import_ID__c") {
		assert.Equal(t, len(flat), b.Offset)
		flat = append(flat, b.Records...)
	}
	require.Len(t, flat, 25)
	for i := range records {
		assert.Equal(t, records[i].Text("Import_ID__c"), flat[i].Text("Import_ID__c"))
	}
}

func TestExecuteTwelveRecordsInChunksOfTen(t *testing.T) {
	up := &echoUpserter{}
	exec := &Executor{Upserter: up, ChunkSize: 10}

	records := numberedRecords(12)
	out, err := exec.Execute(context.Background(), records, "Import_ID__c")
	require.NoError(t, err)

	assert.Equal(t, []int{10, 2}, up.sizes)
	require.Len(t, out.Results, 12)
	for i, r := range out.Results {
		assert.Equal(t, "a0X"+records[i].Text("Import_ID__c"), r.ID, "result %d out of order", i)
	}
	assert.Len(t, out.Chunks, 2)
	assert.Empty(t, out.Skipped)
	assert.Equal(t, Totals{Submitted: 12, Succeeded: 12, Updated: 6}, out.Totals)
}

func TestExecutePerRecordFailuresDoNotStopTheRun(t *testing.T) {
	up := &echoUpserter{reject: map[string]bool{"R002": true, "R011": true}}
	exec := &Executor{Upserter: up, ChunkSize: 5}

	var reports []ChunkReport
	exec.OnChunk = func(r ChunkReport) { reports = append(reports, r) }

	out, err := exec.Execute(context.Background(), numberedRecords(12), "Import_ID__c")
	require.NoError(t, err)

	assert.Equal(t, 2, out.Totals.Failed)
	assert.Equal(t, 10, out.Totals.Succeeded)
	assert.False(t, out.Results[1].Success)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", out.Results[1].FirstError().StatusCode)
	require.Len(t, reports, 3)
	assert.Equal(t, 1, reports[0].Failed)
	assert.Equal(t, 0, reports[1].Failed)
	assert.Equal(t, 1, reports[2].Failed)
}

func TestExecuteAbortsAfterChunkFailure(t *testing.T) {
	up := &echoUpserter{failAt: 2}
	exec := &Executor{Upserter: up, ChunkSize: 10}

	out, err := exec.Execute(context.Background(), numberedRecords(35), "Import_ID__c")

	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, 4, ce.Total)
	assert.Equal(t, 10, ce.Offset)
	assert.Contains(t, err.Error(), "chunk 2/4")

	assert.Equal(t, []int{10, 10}, up.sizes, "no chunk is attempted after a failure")
	assert.Len(t, out.Results, 10)
	require.NotNil(t, out.Failed)
	assert.Equal(t, 1, out.Failed.Index)
	assert.Equal(t, []ChunkRef{{Index: 2, Offset: 20, Size: 10}, {Index: 3, Offset: 30, Size: 5}}, out.Skipped)
	assert.Equal(t, 25, out.Totals.NotSubmitted)
}

// partialUpserter commits the first n records of every call and then fails.
type partialUpserter struct{ n int }

func (u partialUpserter) Upsert(_ context.Context, records []Record, field string) ([]UpsertResult, error) {
	done := make([]UpsertResult, 0, u.n)
	for _, rec := range records[:u.n] {
		done = append(done, UpsertResult{Success: true, Created: true, ID: "a0X" + rec.Text(field)})
	}
	return nil, &PartialError{Results: done, Err: errors.New("status 503: service unavailable")}
}

func TestExecuteKeepsCommittedPartOfFailedChunk(t *testing.T) {
	var reports []ChunkReport
	exec := &Executor{Upserter: partialUpserter{n: 4}, ChunkSize: 10}
	exec.OnChunk = func(r ChunkReport) { reports = append(reports, r) }

	out, err := exec.Execute(context.Background(), numberedRecords(15), "Import_ID__c")

	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Index)

	require.Len(t, out.Results, 4)
	assert.Equal(t, "a0XR004", out.Results[3].ID)
	assert.Equal(t, Totals{Submitted: 4, Succeeded: 4, NotSubmitted: 11}, out.Totals)
	assert.Equal(t, &ChunkRef{Index: 0, Offset: 4, Size: 6}, out.Failed)
	assert.Equal(t, []ChunkRef{{Index: 1, Offset: 10, Size: 5}}, out.Skipped)
	assert.Empty(t, out.Chunks, "a failed chunk is not a completed chunk")

	require.Len(t, reports, 1)
	assert.Equal(t, 4, reports[0].Succeeded)
	assert.NotEmpty(t, reports[0].Err)
}

func TestExecuteResultCountMismatchIsChunkFailure(t *testing.T) {
	up := &echoUpserter{short: 1}
	exec := &Executor{Upserter: up, ChunkSize: 10}

	out, err := exec.Execute(context.Background(), numberedRecords(12), "Import_ID__c")

	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Err.Error(), "remote returned 9 results for 10 records")
	assert.Empty(t, out.Results)
	assert.Len(t, out.Skipped, 1)
	assert.Equal(t, 12, out.Totals.NotSubmitted)
}

func TestExecuteMissingExternalID(t *testing.T) {
	records := numberedRecords(3)
	records[1]["Import_ID__c"] = NullValue()

	up := &echoUpserter{}
	_, err := (&Executor{Upserter: up}).Execute(context.Background(), records, "Import_ID__c")

	assert.ErrorIs(t, err, ErrMissingExternalID)
	assert.Empty(t, up.sizes)
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	up := &echoUpserter{}
	out, err := (&Executor{Upserter: up, ChunkSize: 2}).Execute(ctx, numberedRecords(4), "Import_ID__c")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, up.sizes)
	assert.Len(t, out.Skipped, 2)
	assert.Equal(t, 4, out.Totals.NotSubmitted)
}

func TestExecuteEmpty(t *testing.T) {
	up := &echoUpserter{}
	out, err := (&Executor{Upserter: up}).Execute(context.Background(), nil, "Import_ID__c")
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, up.sizes)
}
