package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/felixgeelhaar/qualify/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded generation runs, newest first",
	Long: `List recorded generation runs, newest first.

Runs are only recorded when history is enabled:
  qualify config set --history=true`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		repo := storage.NewFilesystemRepository(root)
		store := storage.NewFileHistoryStore(repo.Dir())

		entries, err := store.Recent(historyLimit)
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tTEMPLATE\tOUTCOME\tRECORDS\tATTEMPTS\tSITUATION")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04"),
				e.Template, e.Outcome, len(e.Records), e.Requested, e.AttemptsUsed,
				truncate(e.Situation, 50))
		}
		return tw.Flush()
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	RootCmd.AddCommand(historyCmd)
}
