// The main package for the newsroom executable.
package main

import (
	"github.com/JakeFAU/newsroom-edge/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
