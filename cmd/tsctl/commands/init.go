package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arm-trusted-services/ts-core/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default tsctl configuration file.

By default the file is created at $XDG_CONFIG_HOME/ts-core/config.yaml.
Use --config to pick a different path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !initForce && config.DefaultConfigExists() && path == config.GetDefaultConfigPath() {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the file to pick a storage backend and owner id")
	fmt.Println("  2. tsctl keys install-pk --cert <pk.pem> to bootstrap secure boot")
	fmt.Printf("  3. tsctl serve --config %s\n", path)
	return nil
}
