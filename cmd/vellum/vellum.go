// Package vellumcmder
package vellumcmder

import (
	"github.com/spf13/cobra"

	collectioncmder "github.com/papercomputeco/vellum/cmd/vellum/collection"
	configcmder "github.com/papercomputeco/vellum/cmd/vellum/config"
	ingestcmder "github.com/papercomputeco/vellum/cmd/vellum/ingest"
	initcmder "github.com/papercomputeco/vellum/cmd/vellum/init"
	searchcmder "github.com/papercomputeco/vellum/cmd/vellum/search"
	servecmder "github.com/papercomputeco/vellum/cmd/vellum/serve"
	versioncmder "github.com/papercomputeco/vellum/cmd/version"
)

const vellumLongDesc string = `Vellum ingests documents into a vector collection and retrieves them
ranked by similarity, filtered by how much each source can be trusted.

Every chunk carries a source_authority tier derived from its source_type
(github 9, pdf 7, web 5, youtube 4 by default). Searches may set a floor so
that only sufficiently authoritative material comes back.

Common commands:
  vellum init                  Create a local .vellum/ directory
  vellum ingest ./docs         Chunk, embed and index local files
  vellum serve                 Run the HTTP API and MCP endpoint
  vellum search "query"        Search via the running API`

const vellumShortDesc string = "Vellum - authority-aware retrieval"

func NewVellumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vellum",
		Short:        vellumShortDesc,
		Long:         vellumLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .vellum/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(collectioncmder.NewCollectionCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
