// Package collectioncmder provides the collection command for inspecting and
// clearing the collection served by the vellum API.
package collectioncmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vellum/api"
	"github.com/papercomputeco/vellum/pkg/cliui"
	"github.com/papercomputeco/vellum/pkg/config"
	"github.com/papercomputeco/vellum/pkg/dotdir"
)

const requestTimeout = 30 * time.Second

const collectionLongDesc string = `Inspect or clear the collection served by the vellum API.

  vellum collection count    Show the collection name, dimensions and chunk count
  vellum collection clear    Delete every chunk and recreate the empty collection

Both subcommands talk to a running API server (vellum serve).`

const collectionShortDesc string = "Inspect or clear the collection"

type collectionCommander struct {
	apiTarget string
	configDir string
	yes       bool
}

func NewCollectionCmd() *cobra.Command {
	cmder := &collectionCommander{}

	cmd := &cobra.Command{
		Use:   "collection",
		Short: collectionShortDesc,
		Long:  collectionLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
	}

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Show the collection and its chunk count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runCount(cmd.Context(), cmd.OutOrStdout())
		},
	}
	config.AddStringFlag(countCmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.AddCommand(countCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk in the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runClear(cmd.Context(), cmd.OutOrStdout())
		},
	}
	clearCmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Confirm clearing the collection")
	config.AddStringFlag(clearCmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.AddCommand(clearCmd)

	return cmd
}

func (c *collectionCommander) runCount(ctx context.Context, w io.Writer) error {
	info, err := call(ctx, http.MethodGet, c.apiTarget)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	cliui.KeyValue(w, "Collection", info.Name)
	cliui.KeyValue(w, "Dimensions", info.Dimensions)
	cliui.KeyValue(w, "Chunks", info.Count)

	state, err := dotdir.NewManager().LoadIngestState(c.configDir)
	if err == nil && state != nil && state.Collection == info.Name {
		cliui.KeyValue(w, "Last ingest", state.Completed.Local().Format(time.RFC1123))
		cliui.KeyValue(w, "Last ingest added", fmt.Sprintf("%d of %d chunks", state.Added, state.Planned))
	}
	fmt.Fprintln(w)
	return nil
}

func (c *collectionCommander) runClear(ctx context.Context, w io.Writer) error {
	if !c.yes {
		return errors.New("clearing deletes every chunk; pass --yes to confirm")
	}

	info, err := call(ctx, http.MethodDelete, c.apiTarget)
	if err != nil {
		return err
	}

	if err := dotdir.NewManager().ClearIngestState(c.configDir); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Cleared %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(info.Name))
	return nil
}

func call(ctx context.Context, method, apiTarget string) (*api.CollectionResponse, error) {
	target, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	target.Path = "/v1/collection"

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vellum API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collection request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var out api.CollectionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse collection response: %w", err)
	}
	return &out, nil
}
