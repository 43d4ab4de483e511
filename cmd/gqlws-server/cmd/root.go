package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gqlws-server",
	Short: "graphql-transport-ws subscription server",
	Long: `gqlws-server hosts graphql-transport-ws WebSocket subscription
endpoints described by HCL configuration files.

Each config file defines one or more listener blocks: the HTTP path to
mount, connection tunables, an optional allow_subscribe authorization
expression, and an optional jq transform applied to outgoing payloads.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
}

// GetVerbose returns the verbose flag value.
func GetVerbose() bool {
	return verbose
}

// GetDebug returns the debug flag value.
func GetDebug() bool {
	return debug
}
