// Package cmd holds the CLI entrypoints.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "domotica-bridge",
	Short: "Bridge between the Domotica restaurant console and the rest of the stack",
	Long: `domotica-bridge drives the Domotica web console with a headless
browser and exposes its table state, menu and order entry as an HTTP
API, a websocket stream and a RabbitMQ intake.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
