package cli

import (
	"fmt"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/config"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/felixgeelhaar/qualify/pkg/storage"
	"github.com/spf13/cobra"
)

var exampleTemplate = prompt.MustNew("discovery", `You are a B2B account executive preparing a discovery call. The prospect said: {input}

Generate exactly {num} open questions that uncover budget, authority, need and timeline.
For each question, explain what the answer tells you.

Return only a JSON array:
[
    {{"question": "...", "explanation": "..."}}
]
`).WithInfo("Discovery Call Questions", "Example workspace template. Edit or copy it to add your own.")

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .qualify workspace with a default config and an example template",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		repo := storage.NewFilesystemRepository(root)
		if repo.IsInitialized() {
			return NewCLIError("workspace already initialized", "Edit "+repo.Dir()+" directly or use 'qualify config set'", nil)
		}
		if err := repo.Initialize(); err != nil {
			return err
		}
		if err := config.Save(root, config.Default()); err != nil {
			return err
		}
		if err := repo.SaveTemplate("", exampleTemplate); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Initialized workspace in %s\n", repo.Dir())
		fmt.Fprintf(out, "Add YAML templates to %s and list them with 'qualify templates list'\n", repo.TemplatesPath(""))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}
