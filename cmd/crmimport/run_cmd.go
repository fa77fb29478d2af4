package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmimport/internal/config"
	"github.com/JonMunkholm/crmimport/internal/core"
	"github.com/JonMunkholm/crmimport/internal/metrics"
	"github.com/JonMunkholm/crmimport/internal/salesforce"
	"github.com/JonMunkholm/crmimport/internal/source"
)

type runOptions struct {
	Refs        map[string]string
	DryRun      bool
	Sheet       string
	HeaderRow   int
	Delimiter   string
	ChunkSize   int
	MappingDir  string
	OutputDir   string
	MetricsFile string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <entity> <file>",
		Short: "Migrate one entity from a CSV or XLSX extract",
		Long: `Loads the extract, maps and normalizes it, resolves foreign keys against
the reference tables and upserts the records in chunks. Reference tables
default to <output-dir>/<table>_mapped.csv written by an earlier run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEntity(ctx, cmd.OutOrStdout(), a.cfg, args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringToStringVar(&opts.Refs, "ref", nil, "reference table files as table=path (repeatable)")
	f.BoolVar(&opts.DryRun, "dry-run", false, "prepare records and write artifacts without calling Salesforce")
	f.StringVar(&opts.Sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	f.IntVar(&opts.HeaderRow, "header-row", -1, "zero-based header row (default: the entity's)")
	f.StringVar(&opts.Delimiter, "delimiter", ",", "CSV field delimiter")
	f.IntVar(&opts.ChunkSize, "chunk-size", 0, "records per submission (default: RUN_CHUNK_SIZE)")
	f.StringVar(&opts.MappingDir, "mapping-dir", "", "directory of mapping files (default: MAPPING_DIR)")
	f.StringVar(&opts.OutputDir, "output-dir", "", "artifact directory (default: OUTPUT_DIR)")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

func runEntity(ctx context.Context, out io.Writer, cfg *config.Config, entity, path string, opts runOptions) error {
	def, ok := core.Get(entity)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownEntity, entity)
	}
	applyRunFlags(cfg, opts)

	srcOpts := source.Options{HeaderRow: def.HeaderRow, Sheet: opts.Sheet}
	if opts.HeaderRow >= 0 {
		srcOpts.HeaderRow = opts.HeaderRow
	}
	if d := []rune(opts.Delimiter); len(d) == 1 {
		srcOpts.Comma = d[0]
	}
	table, err := source.Load(path, srcOpts)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	refs, err := loadReferences(def, opts.Refs, cfg.Run.OutputDir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	svc := &core.Service{
		Observer:   metrics.New(reg),
		MappingDir: cfg.Run.MappingDir,
		OutputDir:  cfg.Run.OutputDir,
		ChunkSize:  cfg.Run.ChunkSize,
		Defaults:   cfg.Defaults.AccountIDs(),
	}

	store, closeLedger, err := openLedger(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeLedger()
	if store != nil {
		svc.Recorder = store
	}

	if !opts.DryRun {
		if err := cfg.ValidateSalesforce(); err != nil {
			return err
		}
		client, err := connect(ctx, cfg.Salesforce)
		if err != nil {
			return err
		}
		svc.Upserters = upserters(client)
	}

	report, runErr := svc.Run(ctx, core.RunInput{
		Entity:     def.Info.Key,
		Source:     filepath.Base(path),
		Table:      table,
		References: refs,
		DryRun:     opts.DryRun,
	})
	if report != nil {
		printReport(out, report)
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			slog.Warn("metrics file not written", "path", opts.MetricsFile, "error", err)
		}
	}
	return runErr
}

// applyRunFlags lets command-line flags override the environment.
func applyRunFlags(cfg *config.Config, opts runOptions) {
	if opts.ChunkSize > 0 {
		cfg.Run.ChunkSize = opts.ChunkSize
	}
	if opts.MappingDir != "" {
		cfg.Run.MappingDir = opts.MappingDir
	}
	if opts.OutputDir != "" {
		cfg.Run.OutputDir = opts.OutputDir
	}
}

// referencePaths picks a file for every table def references. Explicit
// paths win; otherwise an existing <table>_mapped.csv in outputDir is used.
// Tables with neither are left out and reported by the pipeline.
func referencePaths(def core.EntityDefinition, explicit map[string]string, outputDir string) map[string]string {
	paths := make(map[string]string)
	for _, ref := range def.References {
		if _, done := paths[ref.Table]; done {
			continue
		}
		if p, ok := explicit[ref.Table]; ok {
			paths[ref.Table] = p
			continue
		}
		p := core.Reporter{Dir: outputDir, Entity: ref.Table}.Path("mapped.csv")
		if _, err := os.Stat(p); err == nil {
			paths[ref.Table] = p
		}
	}
	return paths
}

func loadReferences(def core.EntityDefinition, explicit map[string]string, outputDir string) (map[string]core.RawTable, error) {
	refs := make(map[string]core.RawTable)
	for name, p := range referencePaths(def, explicit, outputDir) {
		t, err := source.Load(p, source.Options{})
		if err != nil {
			return nil, fmt.Errorf("load reference table %s from %s: %w", name, p, err)
		}
		slog.Info("reference table loaded", "table", name, "path", p, "rows", t.Len())
		refs[name] = t
	}
	return refs, nil
}

// connect logs in and returns a paced API client.
func connect(ctx context.Context, cfg config.SalesforceConfig) (*salesforce.Client, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	session, err := salesforce.Login(ctx, httpClient, salesforce.Credentials{
		Domain:        cfg.Domain,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		Username:      cfg.Username,
		Password:      cfg.Password,
		SecurityToken: cfg.SecurityToken,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("logged in", "instance", session.InstanceURL)

	return salesforce.NewFromSession(ctx, session, httpClient,
		salesforce.WithAPIVersion(cfg.APIVersion),
		salesforce.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
	), nil
}

// upserters binds every registered entity to its sObject.
func upserters(client *salesforce.Client) *core.UpserterRegistry {
	reg := core.NewUpserterRegistry()
	for _, def := range core.All() {
		reg.Set(def.Info.Key, client.SObject(def.Info.Object))
	}
	return reg
}

func printReport(w io.Writer, r *core.RunReport) {
	s := r.Summary
	fmt.Fprintf(w, "%s -> %s (run %s, %s)\n", r.Entity, r.Object, r.RunID, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  rows %d, submitted %d, created %d, updated %d, failed %d\n",
		s.Rows, s.Submitted, s.Succeeded-s.Updated, s.Updated, s.Failed)
	fmt.Fprintf(w, "  invalid %d, duplicates %d, unmatched %d, dropped %d, not submitted %d\n",
		s.Invalid, s.Duplicates, s.Unmatched, s.Dropped, s.NotSubmitted)
	if r.Outcome != nil {
		for _, c := range r.Outcome.Skipped {
			fmt.Fprintf(w, "  skipped chunk %d (records %d-%d)\n", c.Index+1, c.Offset+1, c.Offset+c.Size)
		}
	}
	for _, p := range []struct{ label, path string }{
		{"debug", r.Artifacts.Debug},
		{"mapped", r.Artifacts.Mapped},
		{"errors", r.Artifacts.Errors},
		{"unmatched", r.Artifacts.Unmatched},
	} {
		if p.path != "" {
			fmt.Fprintf(w, "  %-9s %s\n", p.label, p.path)
		}
	}
}
