// ABOUTME: Entry point for the gappsync CLI and MCP server
// ABOUTME: Loads .env, then runs the cobra command tree
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harperreed/gappsync/cli"
	"github.com/joho/godotenv"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
