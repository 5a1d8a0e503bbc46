package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m3rciful/labbot/core/buildinfo"
	corecmd "github.com/m3rciful/labbot/core/cmd"
	coredatabase "github.com/m3rciful/labbot/core/database"
	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/internal/config"
	"github.com/m3rciful/labbot/migrations"
)

const configEnv = "CONFIG_PATH"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "labbot",
		Short:         "Telegram bot publishing subjects and lab assignments",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $"+configEnv+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			},
		},
	)
	return root
}

func serve(configPath string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:   configPath,
		ConfigEnvVar: configEnv,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return newApplication(ctx, cfg.(*config.Config))
		},
	})
}

func migrate(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(corecmd.ResolveConfigPath(corecmd.Options{ConfigPath: configPath, ConfigEnvVar: configEnv}))
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()
	return coredatabase.RunMigrations(ctx, cfg.Database, migrations.FS)
}
