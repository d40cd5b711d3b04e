package main

import (
	"os"

	"github.com/tallyerp/bookkeeping/cmd/ledgerctl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
