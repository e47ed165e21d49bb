package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect prompt templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and workspace templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := loadWorkspaceForCurrentDir()
		if err != nil {
			return MapError(err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTITLE\tPLACEHOLDERS")
		for _, t := range ws.Templates.List() {
			name := t.Name
			if name == prompt.DefaultTemplate {
				name += " (default)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name, t.Title, strings.Join(t.Placeholders(), ", "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nWorkspace templates are read from %s\n", ws.TemplatesDir())
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a template body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := loadWorkspaceForCurrentDir()
		if err != nil {
			return MapError(err)
		}
		t, err := ws.Templates.Get(args[0])
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		if t.Title != "" {
			fmt.Fprintln(out, questionStyle.Render(t.Title))
		}
		if t.Description != "" {
			fmt.Fprintln(out, t.Description)
		}
		fmt.Fprintln(out, separator)
		fmt.Fprintln(out, t.Body)
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	RootCmd.AddCommand(templatesCmd)
}
