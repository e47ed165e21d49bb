package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/spf13/cobra"
)

var (
	generateCount       int
	generateTemplate    string
	generateTemperature float64
	generateFormat      string
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	labelStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	separator     = strings.Repeat("-", 80)
)

var generateCmd = &cobra.Command{
	Use:   "generate <situation>",
	Short: "Generate questions for a client situation or pain point",
	Example: `  qualify generate "Client is struggling with patient data"
  qualify generate --count 8 --template support "Customer cannot log in after the update"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		situation := strings.Join(args, " ")
		if generateFormat != "text" && generateFormat != "json" {
			return NewCLIError(fmt.Sprintf("unknown format %q", generateFormat), "Use --format text or --format json", nil)
		}

		services, err := loadServicesForCurrentDir(newLogger(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer services.Wait()

		res, err := services.Generation.Generate(cmd.Context(), generation.Request{
			Situation:   situation,
			Count:       generateCount,
			Template:    generateTemplate,
			Temperature: generateTemperature,
		})
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		if generateFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(out, situation, res)
		return nil
	},
}

// printResult writes records as numbered question/explanation pairs. An
// exhausted run still prints what the last attempt produced, after a warning.
func printResult(w io.Writer, situation string, res *generation.Result) {
	if len(res.Records) == 0 {
		fmt.Fprintln(w, errorStyle.Render("No questions were generated. Please try again."))
		return
	}

	if res.Satisfied() {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Generated %d questions for: %s", len(res.Records), situation)))
	} else {
		fmt.Fprintln(w, warningStyle.Render(mismatchWarning(res)))
	}
	fmt.Fprintln(w)

	for i, rec := range res.Records {
		fmt.Fprintf(w, "%s %s\n", questionStyle.Render(fmt.Sprintf("Question %d:", i+1)), rec.Question)
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Explanation:"), rec.Explanation)
		fmt.Fprintln(w, separator)
	}
}

func mismatchWarning(res *generation.Result) string {
	return fmt.Sprintf("Requested %d questions, but %d were generated after %d attempts. Try again or adjust the prompt.",
		res.Requested, len(res.Records), res.AttemptsUsed)
}

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", generation.DefaultCount, "Number of questions to generate")
	generateCmd.Flags().StringVarP(&generateTemplate, "template", "t", "", "Prompt template name (see 'qualify templates list')")
	generateCmd.Flags().Float64Var(&generateTemperature, "temperature", 0, "Sampling temperature between 0 and 2")
	generateCmd.Flags().StringVarP(&generateFormat, "format", "o", "text", "Output format (text, json)")
	RootCmd.AddCommand(generateCmd)
}
