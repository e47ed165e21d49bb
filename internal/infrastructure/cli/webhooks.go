package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/qualify/pkg/storage"
	"github.com/spf13/cobra"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Inspect run notification endpoints",
	Long: `Inspect run notification endpoints.

Endpoints are configured under "webhooks" in .qualify/config.yaml:

  webhooks:
    - name: ops
      url: https://example.com/hooks/qualify
      secret: change-me
      outcomes: [exhausted, failed]
    - name: team-chat
      url: https://hooks.slack.com/services/...
      format: slack`,
}

var webhooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := loadWorkspaceForCurrentDir()
		if err != nil {
			return MapError(err)
		}
		out := cmd.OutOrStdout()
		if len(ws.Config.Webhooks) == 0 {
			fmt.Fprintln(out, "No webhooks configured.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tURL\tFORMAT\tOUTCOMES\tSIGNED\tENABLED")
		for _, ep := range ws.Config.Webhooks {
			format := ep.Format
			if format == "" {
				format = webhook.FormatJSON
			}
			outcomes := "all"
			if len(ep.Outcomes) > 0 {
				outcomes = strings.Join(ep.Outcomes, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n", ep.Name, ep.URL, format, outcomes, ep.Secret != "", !ep.Disabled)
		}
		return tw.Flush()
	},
}

var deadLettersJSON bool

var webhooksDeadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "Show deliveries that failed after every retry",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		repo := storage.NewFilesystemRepository(root)
		store := webhook.NewDeadLetterStore(filepath.Join(repo.Dir(), storage.DeadLetterFile))

		entries, err := store.ReadAll()
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		if deadLettersJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No failed deliveries.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tENDPOINT\tRUN\tATTEMPTS\tERROR")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04"),
				e.Endpoint, e.RunID, e.Attempts, truncate(e.Error, 60))
		}
		return tw.Flush()
	},
}

func init() {
	webhooksDeadLettersCmd.Flags().BoolVar(&deadLettersJSON, "json", false, "Output as JSON")
	webhooksCmd.AddCommand(webhooksListCmd, webhooksDeadLettersCmd)
	RootCmd.AddCommand(webhooksCmd)
}
