package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/persistence/mysql"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var withLedger bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and rename legacy reconcile method names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg

			gdb, err := db.Open(ctx, db.Config{
				Driver:             cfg.Database.Driver,
				DSN:                cfg.Database.DSN,
				MaxOpenConns:       cfg.Database.MaxOpenConns,
				MaxIdleConns:       cfg.Database.MaxIdleConns,
				ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
				LogEnabled:         cfg.Database.LogEnabled,
				SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
			})
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			if err := mysql.Migrate(ctx, gdb); err != nil {
				return err
			}
			if withLedger {
				if err := mysql.MigrateLedger(ctx, gdb); err != nil {
					return err
				}
			}
			logger.Info(ctx, "migration finished", "with_ledger", withLedger)
			fmt.Fprintln(cmd.OutOrStdout(), "migration finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withLedger, "with-ledger", false, "also create the account_move_line table (development only)")
	return cmd
}
