package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmimport/internal/logging"
)

// ErrMissingReference is returned when an entity needs a reference table
// that was not supplied.
var ErrMissingReference = errors.New("reference table not provided")

// Service runs entity migrations.
type Service struct {
	Upserters *UpserterRegistry
	Recorder  Recorder // Optional run ledger
	Observer  Observer // Optional telemetry

	MappingDir string
	OutputDir  string
	ChunkSize  int

	// Defaults overrides the default identifier of every defaulting
	// reference of an entity, keyed by entity key.
	Defaults map[string]string
}

// RunInput is everything a single entity run consumes.
type RunInput struct {
	Entity     string
	Source     string // Source file name, for the run ledger
	Table      RawTable
	References map[string]RawTable

	// DryRun prepares records and writes the debug snapshot and mapped
	// output without calling the remote system.
	DryRun bool
}

// Prepared holds the records of an entity ready for submission.
type Prepared struct {
	Set        RecordSet
	Invalid    []InvalidRecord
	Unmatched  []Unmatched
	Rows       int
	Duplicates int
	Dropped    int
	Collisions []string
	// ReferenceDuplicates counts, per reference name, reference rows
	// ignored because their key was already indexed.
	ReferenceDuplicates map[string]int
}

// Artifacts lists the files written by a run. Empty paths were not written.
type Artifacts struct {
	Debug     string `json:"debug,omitempty"`
	Mapped    string `json:"mapped,omitempty"`
	Errors    string `json:"errors,omitempty"`
	Unmatched string `json:"unmatched,omitempty"`
}

// RunReport is the outcome of Service.Run.
type RunReport struct {
	RunID     string
	Entity    string
	Object    string
	Summary   Summary
	Outcome   *Outcome
	Failures  []FailureRow
	Unmatched []Unmatched
	Artifacts Artifacts
	Elapsed   time.Duration
}

// Entities returns information about all registered entities.
func (s *Service) Entities() []EntityInfo {
	defs := All()
	infos := make([]EntityInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// Run migrates one entity. The returned report is non-nil whenever the
// entity exists; it describes partial progress when err is a *ChunkError.
func (s *Service) Run(ctx context.Context, in RunInput) (*RunReport, error) {
	def, ok := Get(in.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, in.Entity)
	}

	var upserter Upserter
	if !in.DryRun {
		u, err := s.Upserters.Lookup(def.Info.Key)
		if err != nil {
			return nil, err
		}
		upserter = u
	}

	start := time.Now()
	report := &RunReport{
		RunID:  uuid.New().String(),
		Entity: def.Info.Key,
		Object: def.Info.Object,
	}
	ctx = logging.WithRun(ctx, report.RunID, def.Info.Key)
	logger := logging.FromContext(ctx)

	s.record(ctx, logger, "start run", func(r Recorder) error {
		return r.StartRun(ctx, RunInfo{
			ID:        report.RunID,
			Entity:    def.Info.Key,
			Object:    def.Info.Object,
			Source:    in.Source,
			Rows:      in.Table.Len(),
			StartedAt: start,
		})
	})

	logger.Info("run started", "object", def.Info.Object, "rows", in.Table.Len(), "dry_run", in.DryRun)

	err := s.run(ctx, logger, def, in, upserter, report)
	report.Elapsed = time.Since(start)

	s.record(ctx, logger, "finish run", func(r Recorder) error {
		return r.FinishRun(ctx, report.RunID, report.Summary, err)
	})
	if s.Observer != nil {
		s.Observer.RunFinished(def.Info.Key, report.Summary, report.Elapsed, err)
	}

	sum := report.Summary
	attrs := []any{
		"rows", sum.Rows,
		"submitted", sum.Submitted,
		"succeeded", sum.Succeeded,
		"updated", sum.Updated,
		"failed", sum.Failed,
		"invalid", sum.Invalid,
		"duplicates", sum.Duplicates,
		"unmatched", sum.Unmatched,
		"dropped", sum.Dropped,
		"not_submitted", sum.NotSubmitted,
		"duration_ms", report.Elapsed.Milliseconds(),
	}
	if err != nil {
		logger.Error("run failed", append(attrs, "error", err)...)
		return report, err
	}
	logger.Info("run completed", attrs...)
	return report, nil
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, def EntityDefinition, in RunInput, upserter Upserter, report *RunReport) error {
	prep, err := s.Prepare(def, in.Table, in.References)
	if err != nil {
		return err
	}
	for _, col := range prep.Collisions {
		logger.Warn("column renamed onto an existing field, dropped", "column", col)
	}
	for _, name := range sortedKeys(prep.ReferenceDuplicates) {
		logger.Warn("duplicate reference keys ignored, first occurrence kept",
			"reference", name, "count", prep.ReferenceDuplicates[name])
	}
	for _, u := range prep.Unmatched {
		logger.Debug("foreign key not matched", "reference", u.Reference, "key", u.Key, "namespace", u.Namespace)
	}

	report.Unmatched = prep.Unmatched
	report.Summary = Summary{
		Rows:       prep.Rows,
		Invalid:    len(prep.Invalid),
		Duplicates: prep.Duplicates,
		Unmatched:  len(prep.Unmatched),
		Dropped:    prep.Dropped,
	}
	if s.Observer != nil {
		counts := make(map[string]int)
		for _, u := range prep.Unmatched {
			counts[u.Reference]++
		}
		for _, name := range sortedKeys(counts) {
			s.Observer.ReferenceMisses(def.Info.Key, name, counts[name])
		}
	}

	reporter := Reporter{Dir: s.OutputDir, Entity: def.Info.Key}
	extField := def.ExternalIDField()

	if report.Artifacts.Debug, err = reporter.WriteDebugSnapshot(prep.Set); err != nil {
		return fmt.Errorf("write debug snapshot: %w", err)
	}
	if report.Artifacts.Unmatched, err = reporter.WriteUnmatched(prep.Set.Fields, prep.Unmatched); err != nil {
		return fmt.Errorf("write unmatched: %w", err)
	}

	var results []UpsertResult
	var execErr error
	if in.DryRun {
		report.Summary.NotSubmitted = len(prep.Set.Records)
	} else {
		exec := &Executor{
			Upserter:  upserter,
			ChunkSize: s.ChunkSize,
			Logger:    logger,
			OnChunk: func(c ChunkReport) {
				s.record(ctx, logger, "record chunk", func(r Recorder) error {
					return r.RecordChunk(ctx, report.RunID, c)
				})
				if s.Observer != nil {
					s.Observer.ChunkSubmitted(def.Info.Key, c)
				}
			},
		}
		report.Outcome, execErr = exec.Execute(ctx, prep.Set.Records, extField)
		results = report.Outcome.Results

		t := report.Outcome.Totals
		report.Summary.Submitted = t.Submitted
		report.Summary.Succeeded = t.Succeeded
		report.Summary.Updated = t.Updated
		report.Summary.Failed = t.Failed
		report.Summary.NotSubmitted = t.NotSubmitted
		report.Summary.SkippedChunks = len(report.Outcome.Skipped)
		if errors.Is(execErr, ErrMissingExternalID) {
			report.Summary.NotSubmitted = len(prep.Set.Records)
		}
	}

	report.Failures = RunFailureRows(prep.Set.Records, results, prep.Invalid, extField)

	// Artifacts are written even when execution stopped early.
	var artErr error
	if report.Artifacts.Mapped, err = reporter.WriteMapped(prep.Set, results); err != nil {
		artErr = errors.Join(artErr, fmt.Errorf("write mapped output: %w", err))
	}
	if report.Artifacts.Errors, err = reporter.WriteErrors(prep.Set.Fields, report.Failures); err != nil {
		artErr = errors.Join(artErr, fmt.Errorf("write errors: %w", err))
	}
	if len(report.Failures) > 0 {
		s.record(ctx, logger, "record failures", func(r Recorder) error {
			return r.RecordFailures(ctx, report.RunID, report.Failures)
		})
		logger.Warn("records rejected", "count", len(report.Failures), "artifact", report.Artifacts.Errors)
	}

	if artErr == nil {
		return execErr
	}
	return errors.Join(execErr, artErr)
}

// Prepare turns a source table into records ready for submission. It does
// not touch the remote system or the file system except to load the
// entity's rename table.
func (s *Service) Prepare(def EntityDefinition, table RawTable, refs map[string]RawTable) (*Prepared, error) {
	rules := def.Mapping
	if def.MappingFile != "" {
		loaded, err := LoadMapping(filepath.Join(s.MappingDir, def.MappingFile))
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	references := s.references(def)
	for _, ref := range references {
		rt, ok := refs[ref.Table]
		if !ok {
			return nil, fmt.Errorf("%w: %s needs %q", ErrMissingReference, def.Info.Key, ref.Table)
		}
		if err := ValidateReference(ref, rt); err != nil {
			return nil, err
		}
	}

	renamed, collisions := Rename(table, rules)
	renamed = DropColumns(renamed, def.DropColumns)
	if err := ValidateColumns(renamed, def.FieldSpecs); err != nil {
		return nil, err
	}

	prep := &Prepared{Rows: table.Len(), Collisions: collisions}

	for _, hook := range def.PreProcess {
		for _, row := range renamed.Rows {
			hook(row)
		}
	}

	norm := NewNormalizer(def.FieldSpecs)
	records := make([]Record, len(renamed.Rows))
	for i, row := range renamed.Rows {
		records[i] = norm.Normalize(row)
	}

	for _, ref := range references {
		res, err := Resolve(records, ref, refs[ref.Table])
		if err != nil {
			return nil, err
		}
		records = res.Records
		prep.Unmatched = append(prep.Unmatched, res.Unmatched...)
		prep.Dropped += res.Dropped
		if res.DuplicateKeys > 0 {
			if prep.ReferenceDuplicates == nil {
				prep.ReferenceDuplicates = make(map[string]int)
			}
			prep.ReferenceDuplicates[ref.Name] += res.DuplicateKeys
		}
	}

	if def.Filter != nil {
		kept := records[:0:0]
		for _, rec := range records {
			if def.Filter(rec) {
				kept = append(kept, rec)
				continue
			}
			prep.Dropped++
		}
		records = kept
	}

	extField := def.ExternalIDField()
	fields := def.Fields
	if len(fields) == 0 {
		fields = append([]string{}, renamed.Columns...)
		for _, ref := range references {
			fields = append(fields, ref.TargetField)
		}
	} else {
		records = project(records, fields)
	}

	AssignImportIDs(records, def.ImportID)
	for _, hook := range def.Finalize {
		for _, rec := range records {
			hook(rec)
		}
	}
	records, prep.Duplicates = DedupByExternalID(records, extField)

	ok, invalid := CheckRepresentable(records)
	prep.Invalid = invalid

	prep.Set = RecordSet{Records: ok}
	prep.Set.AddField(extField)
	for _, f := range fields {
		prep.Set.AddField(f)
	}
	return prep, nil
}

// references returns the entity's references with configured default
// overrides applied.
func (s *Service) references(def EntityDefinition) []Reference {
	override, ok := s.Defaults[def.Info.Key]
	refs := make([]Reference, len(def.References))
	for i, ref := range def.References {
		if ok && ref.OnMiss == MissUseDefault {
			ref.Default = override
		}
		refs[i] = ref
	}
	return refs
}

// project keeps only the listed fields of every record.
func project(records []Record, fields []string) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		p := make(Record, len(fields)+1)
		for _, f := range fields {
			if v, ok := rec[f]; ok {
				p[f] = v
			}
		}
		out[i] = p
	}
	return out
}

// record calls fn with the configured Recorder. Ledger failures are logged
// and never fail the run.
func (s *Service) record(ctx context.Context, logger *slog.Logger, op string, fn func(Recorder) error) {
	if s.Recorder == nil {
		return
	}
	if err := fn(s.Recorder); err != nil {
		logger.Warn("run ledger write failed", "op", op, "error", err)
	}
}
