package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faceattend/internal/config"
	"faceattend/internal/store"
)

type commandContext struct {
	cfg    *config.App
	dbFlag string
	dsn    string
}

// ensureConfig loads the environment once per invocation.
func (c *commandContext) ensureConfig() (config.App, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg := config.Load()
	if c.dbFlag != "" {
		cfg.DBDriver = c.dbFlag
	}
	if c.dsn != "" {
		cfg.DatabaseURL = c.dsn
	}
	if err := cfg.Validate(); err != nil {
		return config.App{}, fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = &cfg
	return cfg, nil
}

// openDB connects and brings the schema up to date.
func (c *commandContext) openDB() (*store.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "attendctl",
		Short:         "Administration tool for the faceattend service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd == cmd.Root() {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.dbFlag, "db-driver", "", "Database driver (postgres or sqlite), overrides DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&ctx.dsn, "database-url", "", "Database connection string, overrides DATABASE_URL")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newCreateAdminCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))

	return rootCmd
}
