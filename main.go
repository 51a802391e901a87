// The main package for the sklonger executable.
package main

import (
	"github.com/sklonger/sklonger/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
