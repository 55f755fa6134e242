// Package main is the entry point of the mediaagent service and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Load .env for API keys and DSNs; a missing file is fine.
	_ = godotenv.Load()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("mediaagent"),
		kong.Description("Multi-agent routing for script, image and scene work."),
		kong.UsageOnError(),
		kongVars(),
	)

	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Run prints the build information.
func (c *VersionCmd) Run(_ *Globals) error {
	fmt.Printf("mediaagent version %s (commit: %s)\n", version, commit)
	return nil
}
