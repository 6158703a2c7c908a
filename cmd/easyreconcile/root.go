package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/easyreconcile/pkg/config"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

const defaultConfigPath = "configs/easyreconcile/config.toml"

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "easyreconcile",
		Short:         "Automatic reconciliation of account move lines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithDefaults(opts.configPath)
			if err != nil {
				return err
			}
			cfg.Version = version

			if err := logger.Init(logger.Config{
				Level:      cfg.Logger.Level,
				Format:     cfg.Logger.Format,
				Output:     cfg.Logger.Output,
				FilePath:   cfg.Logger.FilePath,
				MaxSize:    cfg.Logger.MaxSize,
				MaxBackups: cfg.Logger.MaxBackups,
				MaxAge:     cfg.Logger.MaxAge,
				Compress:   cfg.Logger.Compress,
				WithCaller: cfg.Logger.WithCaller,
			}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the TOML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRunCmd(opts),
		newHealthCmd(opts),
	)
	return cmd
}
