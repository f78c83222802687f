// Command freightctl is the operator CLI: migrations, token minting and
// inspection, audit retention and VAPID key generation.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dukerupert/freightdocs/internal/config"
	"github.com/dukerupert/freightdocs/internal/logging"
)

type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "freightctl",
		Short:         "Operate a freightdocs deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("FREIGHTDOCS_CONFIG"), "path to YAML config file")

	root.AddCommand(
		a.migrateCmd(),
		a.tokenCmd(),
		a.auditCmd(),
		a.pushCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
