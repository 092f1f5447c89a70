// Package ingestcmder provides the ingest command, which chunks, embeds and
// indexes local documents.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vellum/pkg/cliui"
	"github.com/papercomputeco/vellum/pkg/config"
	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/dotdir"
	"github.com/papercomputeco/vellum/pkg/ingest"
	"github.com/papercomputeco/vellum/pkg/loader"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/pipeline"
)

type ingestCommander struct {
	paths    []string
	jsonl    string
	semantic bool

	configDir string
	cfg       *config.Config

	// Flag targets. Effective values are read back through viper.
	collection    string
	vectorProv    string
	vectorTarget  string
	embedProv     string
	embedTarget   string
	embedModel    string
	embedDims     uint
	chunkStrategy string
	chunkSize     int
	chunkOverlap  int
	eventsProv    string
	eventsTopic   string

	debug  bool
	logger *slog.Logger
}

var ingestFlags = []string{
	config.FlagCollection,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagChunkStrategy,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagEventsProvider,
	config.FlagEventsTopic,
}

const ingestLongDesc string = `Ingest documents into the vector collection.

Reads .txt, .md and .mdx files from the given paths (directories are walked
recursively, globs are expanded) and, with --jsonl, documents from a JSON
Lines file where each line is {"content": "...", "metadata": {...}}. Use
--jsonl - to read from stdin.

Each document is assigned a source_authority tier from its source_type,
split into chunks, embedded in batches and upserted. Ingestion is idempotent:
re-ingesting the same content updates chunks in place.

Failed embedding batches are skipped and reported; the run is then partial.

Examples:
  vellum ingest ./docs
  vellum ingest "notes/*.md" --semantic
  vellum ingest --jsonl crawl.jsonl --collection research
  cat crawl.jsonl | vellum ingest --jsonl -`

const ingestShortDesc string = "Ingest documents"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, ingestFlags)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.paths = args
			if len(cmder.paths) == 0 && cmder.jsonl == "" {
				return errors.New("nothing to ingest: pass paths or --jsonl")
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.jsonl, "jsonl", "", "JSON Lines file of documents (- for stdin)")
	cmd.Flags().BoolVar(&cmder.semantic, "semantic", false, "Use LLM semantic chunking with sliding window fallback")

	config.AddStringFlag(cmd, config.Flags, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagChunkStrategy, &cmder.chunkStrategy)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, stdin io.Reader, w io.Writer) error {
	c.logger = vellumlogger.New(
		vellumlogger.WithDebug(c.debug),
		vellumlogger.WithPretty(true),
		vellumlogger.WithWriter(os.Stderr),
	)

	docs, err := c.load(stdin)
	if err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving .vellum directory: %w", err)
	}

	var p *pipeline.Pipeline
	err = cliui.Step(w, "Connecting to "+c.cfg.VectorStore.Provider, func() error {
		var err error
		p, err = pipeline.New(ctx, pipeline.Options{
			Config:   c.cfg,
			Dir:      dir,
			Semantic: c.semantic,
			Logger:   c.logger,
		})
		return err
	})
	if err != nil {
		return err
	}
	defer p.Close()

	var report ingest.Report
	msg := fmt.Sprintf("Ingesting %d documents into %s", len(docs), p.Store.Config().Collection)
	err = cliui.Step(w, msg, func() error {
		var err error
		report, err = p.Coordinator.Ingest(ctx, docs)
		return err
	})
	if err != nil {
		return err
	}

	printReport(w, report)

	state := &dotdir.IngestState{
		Collection: p.Store.Config().Collection,
		Sources:    c.sources(),
		Documents:  report.DocumentsAttempted,
		Planned:    report.ChunksPlanned,
		Added:      report.ChunksAdded,
		Failed:     report.FailedEmbeddingBatches,
		Completed:  time.Now().UTC(),
	}
	if err := dotdir.NewManager().SaveIngestState(state, c.configDir); err != nil {
		c.logger.Warn("could not record ingest state", "error", err)
	}

	return nil
}

func (c *ingestCommander) load(stdin io.Reader) ([]document.Document, error) {
	var docs []document.Document

	if len(c.paths) > 0 {
		loaded, err := loader.LoadFiles(c.paths)
		if err != nil {
			return nil, fmt.Errorf("loading files: %w", err)
		}
		docs = append(docs, loaded...)
	}

	if c.jsonl != "" {
		r := stdin
		if c.jsonl != "-" {
			f, err := os.Open(c.jsonl)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", c.jsonl, err)
			}
			defer f.Close()
			r = f
		}

		loaded, err := loader.LoadJSONL(r)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", c.jsonl, err)
		}
		docs = append(docs, loaded...)
	}

	if len(docs) == 0 {
		return nil, loader.ErrNoDocuments
	}
	return docs, nil
}

func (c *ingestCommander) sources() []string {
	sources := append([]string{}, c.paths...)
	if c.jsonl != "" {
		sources = append(sources, c.jsonl)
	}
	return sources
}

func printReport(w io.Writer, r ingest.Report) {
	fmt.Fprintln(w)
	cliui.KeyValue(w, "Documents", r.DocumentsAttempted)
	cliui.KeyValue(w, "Chunks planned", r.ChunksPlanned)
	cliui.KeyValue(w, "Chunks added", r.ChunksAdded)
	if r.FailedEmbeddingBatches > 0 {
		cliui.KeyValue(w, "Failed batches", r.FailedEmbeddingBatches)
	}
	if r.Partial() {
		fmt.Fprintf(w, "\n  %s %s\n", cliui.WarnMark,
			cliui.DimStyle.Render("Partial ingestion: some chunks were not stored. Re-run to retry."))
	}
	fmt.Fprintln(w)
}
