package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/artifact"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/presets"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/settings"
)

func presetsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Inspect the fuel and deviation presets",
	}
	cmd.AddCommand(presetsExportCmd(opts))
	return cmd
}

func presetsExportCmd(opts *rootOptions) *cobra.Command {
	var kind, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a preset collection as a PDF sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			// the database may not exist yet; presets still have a file and a seed
			var defaults presets.Defaults
			if _, err := os.Stat(cfg.SettingsDB); err == nil {
				st, err := settings.Open(cfg.SettingsDB, settings.Defaults{
					Port:        cfg.Port,
					Destination: cfg.Destination,
					AutoStart:   cfg.AutoStart,
				})
				if err != nil {
					return fmt.Errorf("open settings %s: %w", cfg.SettingsDB, err)
				}
				defer st.Close()
				defaults = st
				cfg.Destination = st.Destination()
			}

			storeLog := presets.WithLogger(logger.WithPrefix("presets"))
			var sheet artifact.Sheet
			switch kind {
			case presets.KindFuel:
				store := presets.NewFuel(cfg.Destination, defaults, storeLog)
				if err := store.Load(); err != nil {
					return err
				}
				def, _ := store.Default()
				sheet = artifact.FuelSheet(store.Snapshot(), def)
			case presets.KindDeviation:
				store := presets.NewDeviation(cfg.Destination, defaults, storeLog)
				if err := store.Load(); err != nil {
					return err
				}
				def, _ := store.Default()
				sheet = artifact.DeviationSheet(store.Snapshot(), def)
			default:
				return fmt.Errorf("unknown preset kind %q (want %s or %s)", kind, presets.KindFuel, presets.KindDeviation)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := artifact.WritePDF(f, sheet); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("presets exported", "kind", kind, "presets", len(sheet.Sections), "out", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", presets.KindFuel, "preset family: fuel or deviation")
	cmd.Flags().StringVarP(&out, "out", "o", "presets.pdf", "output PDF path")
	return cmd
}
