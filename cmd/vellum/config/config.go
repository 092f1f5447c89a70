// Package configcmder provides the config command for managing persistent
// vellum configuration stored in the .vellum/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vellum/pkg/cliui"
	"github.com/papercomputeco/vellum/pkg/config"
)

const configLongDesc string = `Manage persistent vellum configuration.

Configuration is stored as config.toml in the .vellum/ directory and provides
default values for command flags. CLI flags and VELLUM_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.model, embedding.dimensions,
  chunking.strategy, chunking.size, chunking.overlap,
  index.collection, retrieval.top_k,
  authority.default, authority.tiers.github,
  api.listen, client.api_target,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  vellum config set <key> <value>    Set a configuration value
  vellum config get <key>            Get a configuration value
  vellum config list                 List all configuration values

Examples:
  vellum config set vector_store.provider qdrant
  vellum config set authority.tiers.web 6
  vellum config get embedding.model
  vellum config list`

const configShortDesc string = "Manage persistent vellum configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
