package main

import (
	"os"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli.RootCmd.SetArgs(args)
	return cli.ExitCode(cli.Execute())
}
