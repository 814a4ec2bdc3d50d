package main

import (
	"os"

	"github.com/majorcontext/earshot/cmd/earshot/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
