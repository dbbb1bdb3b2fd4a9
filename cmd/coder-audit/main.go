package main

import (
	"fmt"
	"os"

	"github.com/bjornrobertsson/coder-audit-simple/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
