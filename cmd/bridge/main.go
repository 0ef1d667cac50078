// Command bridge mirrors field-bus discrete-input sensor state into the
// dispatch server's work-site inventory.
package main

import (
	"fmt"
	"os"

	"github.com/wwhai/worksite-bridge/cmd/bridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
