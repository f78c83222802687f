package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/freightdocs/internal/database"
	"github.com/dukerupert/freightdocs/internal/push"
	"github.com/dukerupert/freightdocs/internal/store"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(a.cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at version %d\n", a.cfg.Server.DBPath, v)
			return nil
		},
	}
}

func (a *app) auditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log maintenance",
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit records older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				olderThan = a.cfg.AuditRetention()
			}
			db, err := database.Open(a.cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			cutoff := time.Now().Add(-olderThan)
			n, err := store.NewAuditStore(db).DeleteOlderThan(cutoff)
			if err != nil {
				return err
			}
			a.logger.Info("pruned audit logs", "count", n, "before", cutoff)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit records older than %s\n", n, cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default: configured retention)")
	auditCmd.AddCommand(prune)
	return auditCmd
}

func (a *app) pushCmd() *cobra.Command {
	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Web push utilities",
	}
	pushCmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "Generate a VAPID key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FREIGHTDOCS_VAPID_PUBLIC_KEY=%s\nFREIGHTDOCS_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	})
	return pushCmd
}
