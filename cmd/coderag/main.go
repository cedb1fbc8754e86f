package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dshills/coderag/internal/cli"
	"github.com/dshills/coderag/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag before cobra so it works without a project root
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("coderag\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", store.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", store.DriverName)
		os.Exit(0)
	}

	// Operational logging goes to stderr; stdout is for command output and
	// the MCP protocol when serving.
	log.SetOutput(os.Stderr)

	cli.Execute()
}
