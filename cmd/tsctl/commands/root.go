// Package commands implements tsctl's cobra command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tsctl",
	Short: "Administer a UEFI variable-store deployment",
	Long: `tsctl serves and administers a UEFI SMM variable-store service: it
starts the RPC endpoint over HTTP, inspects and dumps the variable index,
and bootstraps the PK/KEK/db secure-boot key hierarchy.

Use "tsctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ts-core/config.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(keysCmd)
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}
