// Package initcmder provides the init command for initializing a local .vellum
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vellum/pkg/cliui"
	"github.com/papercomputeco/vellum/pkg/config"
)

const (
	dirName = ".vellum"
)

const initLongDesc string = `Initialize a new .vellum/ directory in the current working directory.

Creates a local .vellum/ directory that takes precedence over the default
~/.vellum/ directory for configuration, the default SQLite vector database
and the record of the last ingestion run.

A config.toml is written from the chosen preset when none exists yet.
Passing --preset explicitly replaces an existing config.toml.

Presets:
  local     Ollama embeddings and a SQLite vector store (default)
  openai    OpenAI embeddings and a SQLite vector store
  qdrant    Ollama embeddings and a Qdrant vector store on localhost:6334

Examples:
  vellum init
  vellum init --preset openai`

const initShortDesc string = "Initialize a local .vellum/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout(), cmd.Flags().Changed("preset"))
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Configuration preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(w io.Writer, explicit bool) error {
	preset := c.preset
	if preset == "" {
		preset = "local"
	}
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", dir)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .vellum directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .vellum directory: %s\n", dir)
	default:
		return fmt.Errorf("checking .vellum directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, statErr := os.Stat(cfger.GetTarget())
	if statErr == nil && !explicit {
		return nil
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Wrote %s preset to %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(preset),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}
