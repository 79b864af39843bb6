package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/cmd/snpm/commands"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/logger"
)

var rootCmd = &cobra.Command{
	Use:   "snpm",
	Short: "snpm - build-from-source package registry",
	Long: `snpm - build-from-source package registry.

The registry fetches a tagged release of a GitHub project, installs its
dependencies, runs its build script and verifies the built artifact against
an expected SHA-1 before accepting it.

Available commands:
  server  - Run the registry (POST /publish and /ws sessions)
  publish - Publish the package in the current directory
  config  - Show and manage snpm configuration
  version - Show build information

Examples:
  snpm server --port 3000     # Start the registry
  snpm publish                # Publish ./package.json's repository and version
  snpm config show --format json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if !jsonOutput {
			if cfg, err := am.Load(); err == nil {
				jsonOutput = cfg.Log.JSON
			}
		}
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.PublishCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		if hint := errors.FlattenHints(err); hint != "" {
			pterm.Info.Println(hint)
		}
		logger.Cleanup()
		os.Exit(1)
	}
}
