package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/errors"
	"github.com/teranos/snpm/logger"
	"github.com/teranos/snpm/publish"
	"github.com/teranos/snpm/server"
	"github.com/teranos/snpm/version"
)

// ServerCmd starts the registry
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the snpm registry",
	Long: `Start the registry. Packages are published with POST /publish or over a
/ws session that streams build progress.

The port comes from --port, then REGISTRY_PORT, then the config cascade.
A project snpm.toml is watched: rate limits, the publish deadline and the
allowed origins are applied without a restart.`,
	RunE: runServer,
}

var serverPort int

func init() {
	ServerCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Port to listen on (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Default to Info for the server
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonOutput || logger.JSONOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	port := cfg.Server.Port
	if serverPort > 0 {
		port = serverPort
	}

	pipeline, err := publish.NewFromConfig(cfg, logger.ComponentLogger("publish"))
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	srv := server.New(cfg, pipeline, logger.ComponentLogger("server"))

	configPath := am.FindProjectConfig()
	if configPath != "" {
		watcher, err := am.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnw("Config hot reload disabled", logger.FieldError, err.Error(), "path", configPath)
		} else {
			am.SetGlobalWatcher(watcher)
			srv.WatchConfig(watcher)
		}
	}

	printStartupBanner(cfg, port, verbosity, configPath)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			srv.Stop()
			return err
		}
		return nil
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Registry stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}

func printStartupBanner(cfg *am.Config, port, verbosity int, configPath string) {
	if logger.JSONOutput {
		return
	}
	info := version.Get()

	pterm.DefaultHeader.WithFullWidth().Println("snpm registry")
	rows := [][]string{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Listening", fmt.Sprintf("http://localhost:%d", port)},
		{"Archives", cfg.Fetch.BaseURL},
		{"Build", fmt.Sprintf("%s / %s %s", cfg.Build.InstallCommand, cfg.Build.RunCommand, cfg.Build.Script)},
		{"Verbosity", logger.LevelName(verbosity)},
	}
	if cfg.Publish.RatePerMinute > 0 {
		rows = append(rows, []string{"Rate", fmt.Sprintf("%d/min (burst %d)", cfg.Publish.RatePerMinute, cfg.Publish.Burst)})
	}
	if configPath != "" {
		rows = append(rows, []string{"Config", configPath + " (watched)"})
	}
	pterm.DefaultTable.WithData(rows).Render()
	pterm.Println()
}
