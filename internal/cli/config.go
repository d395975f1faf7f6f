package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/detectoo/detectoo/internal/config"
)

const defaultConfigFile = "detectoo.json"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the detectoo config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Long: `Write the default settings as JSON. The file can then be edited and
passed to any command with --config.

The path is taken from the argument, then --config, then ` + defaultConfigFile + `.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = defaultConfigFile
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}
