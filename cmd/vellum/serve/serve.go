// Package servecmder provides the serve command, which runs the HTTP API and
// the MCP endpoint over one shared ingestion and retrieval pipeline.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vellum/api"
	"github.com/papercomputeco/vellum/pkg/config"
	"github.com/papercomputeco/vellum/pkg/dotdir"
	vellumlogger "github.com/papercomputeco/vellum/pkg/logger"
	"github.com/papercomputeco/vellum/pkg/pipeline"
)

type ServeCommander struct {
	configDir string
	cfg       *config.Config

	mcpMinAuthority int
	hasMCPFloor     bool
	jsonLogs        bool
	logFile         string

	// Flag targets. Effective values are read back through viper.
	listen        string
	collection    string
	vectorProv    string
	vectorTarget  string
	embedProv     string
	embedTarget   string
	embedModel    string
	embedDims     uint
	chunkStrategy string
	topK          int
	eventsProv    string
	eventsTopic   string

	debug  bool
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagCollection,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagChunkStrategy,
	config.FlagTopK,
	config.FlagEventsProvider,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the vellum API server.

Serves, over one shared pipeline:
  GET    /ping             Health check
  GET    /v1/search        Authority-filtered similarity search
  POST   /v1/ingest        Ingest a batch of documents
  GET    /v1/collection    Collection name, dimensions and chunk count
  DELETE /v1/collection    Clear the collection
         /mcp              MCP streamable HTTP endpoint (research_local_docs, search_documents)

Settings come from flags, VELLUM_* environment variables and
.vellum/config.toml, in that order of precedence.

Examples:
  vellum serve
  vellum serve --listen :9000 --vector-store-provider qdrant --vector-store-target http://localhost:6334
  vellum serve --mcp-min-authority 7
  vellum serve --log-file .vellum/serve.log`

const serveShortDesc string = "Run the vellum API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.cfg = config.FromViper(v)
			cmder.hasMCPFloor = cmd.Flags().Changed("mcp-min-authority")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagChunkStrategy, &cmder.chunkStrategy)
	config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().IntVar(&cmder.mcpMinAuthority, "mcp-min-authority", 0, "Default authority floor for MCP tool calls that set none")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Emit JSON log records")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON log records, with source locations, to this file")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context, stdout io.Writer) error {
	closeLog, err := c.setupLogger(stdout)
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving .vellum directory: %w", err)
	}

	p, err := pipeline.New(ctx, pipeline.Options{
		Config: c.cfg,
		Dir:    dir,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	apiConfig := api.Config{
		ListenAddr: c.cfg.API.Listen,
		Collection: p.Store,
		Retriever:  p.Retriever,
		Ingester:   p.Coordinator,
	}
	if c.hasMCPFloor {
		apiConfig.MCPMinAuthority = &c.mcpMinAuthority
	}

	server, err := api.NewServer(apiConfig, c.logger)
	if err != nil {
		return err
	}

	c.logger.Info("serving collection",
		"collection", p.Store.Config().Collection,
		"vector_store", c.cfg.VectorStore.Provider,
		"embedding_model", c.cfg.Embedding.Model,
		"dimensions", p.Store.Config().Dimensions,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		c.logger.Info("context done, shutting down")
	}

	return server.Shutdown()
}

// setupLogger logs to stdout and, with --log-file, to the file as JSON. When
// both sides are JSON one handler writes to both.
func (c *ServeCommander) setupLogger(stdout io.Writer) (func() error, error) {
	if c.logFile == "" {
		c.logger = vellumlogger.New(
			vellumlogger.WithDebug(c.debug),
			vellumlogger.WithPretty(!c.jsonLogs),
			vellumlogger.WithJSON(c.jsonLogs),
			vellumlogger.WithWriter(stdout),
		)
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	if c.jsonLogs {
		c.logger = vellumlogger.New(
			vellumlogger.WithDebug(c.debug),
			vellumlogger.WithJSON(true),
			vellumlogger.WithSource(true),
			vellumlogger.WithWriters(stdout, f),
		)
		return f.Close, nil
	}

	c.logger = vellumlogger.Multi(
		vellumlogger.New(
			vellumlogger.WithDebug(c.debug),
			vellumlogger.WithPretty(true),
			vellumlogger.WithWriter(stdout),
		),
		vellumlogger.New(
			vellumlogger.WithDebug(c.debug),
			vellumlogger.WithJSON(true),
			vellumlogger.WithSource(true),
			vellumlogger.WithWriter(f),
		),
	)
	return f.Close, nil
}
