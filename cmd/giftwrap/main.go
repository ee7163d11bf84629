package main

import (
	"os"

	"github.com/majorcontext/giftwrap/cmd/giftwrap/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
