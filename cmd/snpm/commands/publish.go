package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/client"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/logger"
)

// PublishCmd publishes the package in a directory
var PublishCmd = &cobra.Command{
	Use:   "publish [dir]",
	Short: "Publish the package in the current directory",
	Long: `Read the repository URL and version from the package manifest and ask the
registry to build and accept that release. Progress from the registry is
printed as it arrives.

The registry address is registry.url and registry.port from the config
cascade (REGISTRY_URL and REGISTRY_PORT override).

Examples:
  snpm publish
  snpm publish ../widget --checksum 3f786850e387550fdab836ed7e6dc881de23001b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

var (
	publishChecksum string
	publishRegistry string
)

func init() {
	PublishCmd.Flags().StringVar(&publishChecksum, "checksum", "", "Expected SHA-1 of the built artifact (defaults to the manifest's)")
	PublishCmd.Flags().StringVar(&publishRegistry, "registry", "", "Registry address, e.g. http://localhost:3000 (overrides config)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	req, err := client.RequestFromManifest(dir, cfg.Build.ManifestFile)
	if err != nil {
		return err
	}
	req.Checksum = publishChecksum
	if err := req.Validate(false); err != nil {
		return err
	}

	addr := publishRegistry
	if addr == "" {
		addr = cfg.RegistryAddress()
	}
	c, err := client.New(addr, logger.ComponentLogger("client"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printf("Publishing %s@%s to %s\n", req.URL, req.Version, addr)
	err = c.Publish(ctx, req, func(msg string) {
		pterm.Println(pterm.Cyan("registry") + " > " + msg)
	})
	if err != nil {
		return err
	}
	pterm.Success.Printf("Published %s\n", req.Version)
	return nil
}
