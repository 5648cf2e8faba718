// Command efbridge runs the bridge between the simulator EFB and the web UI.
//
// Usage:
//
//	efbridge serve   [--config efbridge.yaml]     Run the bridge server
//	efbridge probe   [--host H] [--port P]        Check that a bridge is alive
//	efbridge presets export --kind fuel --out f.pdf
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/config"
)

type rootOptions struct {
	configPath string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "efbridge",
		Short: "Bridge between the simulator EFB and the VFR navigation web UI",
		Long: `efbridge serves the VFR navigation UI over HTTP and relays messages
between the in-simulator EFB and every connected browser over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")

	rootCmd.AddCommand(
		serveCmd(opts),
		probeCmd(),
		presetsCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	return config.Load(opts.configPath)
}

func newLogger(cfg config.Config) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "efbridge",
		Level:           cfg.Level(),
		ReportTimestamp: true,
	})
}
