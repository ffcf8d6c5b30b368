// Package main is the single-binary entrypoint for the Moonlit Garden.
package main

import (
	_ "time/tzdata"

	"github.com/moonlit-garden/moonlit/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
