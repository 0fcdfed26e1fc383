// ./main.go
package main

import (
	"github.com/apiscribe/apiscribe/cmd"
)

// main is the entry point for the apiscribe CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
