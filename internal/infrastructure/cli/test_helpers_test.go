package cli

import (
	"bytes"
	"testing"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func useMockProvider(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvProvider, "mock")
	t.Setenv(config.EnvModel, "test")
	t.Setenv("QUALIFY_AI_DEBUG", "")
}

// resetFlags restores every flag of cmd and its children to its default so
// global flag variables do not leak between test runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command in dir and returns stdout and stderr.
func runCLI(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(RootCmd)

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(append([]string{"--project", dir}, args...))
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
