package main

import (
	"os"

	"github.com/pcr-hr/hr-portal/cmd/hrctl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
