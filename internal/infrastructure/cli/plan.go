package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Break an AI agent goal into small, achievable tasks",
	Example: `  qualify plan "Build an agent that triages support tickets"`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir(newLogger(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}

		plan, err := services.Planner.Plan(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, successStyle.Render("Task plan for: "+plan.Goal))
		fmt.Fprintln(out)
		fmt.Fprintln(out, plan.Text)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(planCmd)
}
