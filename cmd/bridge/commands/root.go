// Package commands implements the bridge's CLI surface.
package commands

import "github.com/spf13/cobra"

var cfgFile string

// rootCmd is the base command invoked when the bridge is run with no
// subcommand; it starts the daemon.
var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Mirrors field-bus discrete-input state into the dispatch server",
	Long: `bridge polls a set of Modbus/TCP gateways for discrete-input sensor
state, debounces it against each work-site's configured safe default, and
publishes the result to the dispatch server over its HTTP/JSON API.

Use "bridge [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd)
	},
}

// Execute runs the root command; it is the only entry point main calls.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to bridge.yaml (default: search standard locations)")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
