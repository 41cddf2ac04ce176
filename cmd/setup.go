package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mixtape-app/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// reloadConfig re-reads configuration from the path given on the command
// line, keeping the current config when the file does not exist.
func (r *Runner) reloadConfig(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, keeping current", "path", path, "error", err)
		return
	}
	r.config = config
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}
	r.reloadConfig(configPath)

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
