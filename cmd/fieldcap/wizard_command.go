package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fieldcap/internal/geo"
	"fieldcap/internal/logging"
	"fieldcap/internal/tui"
)

func newWizardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Run the guided capture wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			sessions, err := ctx.sessionManager()
			if err != nil {
				return err
			}

			// The TUI owns the terminal; logs go to the file only.
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "fieldcap.log")},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			resolver := geo.NewResolver(cfg.Geo, api, logger)

			return tui.Run(cmd.Context(), tui.Options{
				Config:   cfg,
				Client:   api,
				Resolver: resolver,
				Sessions: sessions,
				Logger:   logger,
			})
		},
	}
}
