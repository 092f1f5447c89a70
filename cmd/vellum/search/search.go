// Package searchcmder provides the search command for authority-filtered
// retrieval through the vellum API.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	apisearch "github.com/papercomputeco/vellum/api/search"
	"github.com/papercomputeco/vellum/pkg/cliui"
	"github.com/papercomputeco/vellum/pkg/config"
)

const requestTimeout = 60 * time.Second

type searchCommander struct {
	query        string
	topK         int
	minAuthority int
	hasFloor     bool
	asJSON       bool

	apiTarget string
}

var searchFlags = []string{
	config.FlagAPITarget,
	config.FlagTopK,
}

const searchLongDesc string = `Search the collection via the vellum API.

Returns the chunks most similar to the query, best first. With
--min-authority only chunks whose source_authority tier is at least the
given value are returned. Requires a running API server (vellum serve).

Examples:
  vellum search "how is the service deployed"
  vellum search "deployment" --min-authority 7
  vellum search "deployment" --top 10 --api-target http://localhost:8081
  vellum search "deployment" --json | jq '.results[].url'`

const searchShortDesc string = "Search the collection"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, searchFlags)

			cmder.apiTarget = v.GetString("client.api_target")
			cmder.topK = v.GetInt("retrieval.top_k")
			cmder.hasFloor = cmd.Flags().Changed("min-authority")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddIntFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().IntVarP(&cmder.minAuthority, "min-authority", "m", 0, "Lowest source authority tier to return")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	var floor *int
	if c.hasFloor {
		floor = &c.minAuthority
	}

	output, err := SearchAPI(ctx, c.apiTarget, c.query, c.topK, floor)
	if err != nil {
		return err
	}

	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	if output.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	cliui.Header(w, "Search Results for:", fmt.Sprintf("%q", output.Query))
	for i, result := range output.Results {
		cliui.PrintHit(w, i+1, cliui.Hit{
			Title:      result.Title,
			Source:     result.URL,
			SourceType: result.SourceType,
			Authority:  result.SourceAuthority,
			Score:      result.Score,
			Text:       result.Text,
		})
	}

	return nil
}

// SearchAPI calls GET /v1/search and returns the parsed output.
func SearchAPI(ctx context.Context, apiTarget, query string, topK int, minAuthority *int) (*apisearch.SearchOutput, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	if minAuthority != nil {
		q.Set("min_authority", strconv.Itoa(*minAuthority))
	}
	searchURL.RawQuery = q.Encode()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
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
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output apisearch.SearchOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
