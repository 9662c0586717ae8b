package main

import (
	"context"
	"fmt"

	"github.com/tendant/bizora/internal/config"
	"github.com/tendant/bizora/pkg/repository"
)

// MigrateCmd applies the embedded schema migrations.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := repository.NewDB(repository.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return err
	}
	defer db.Close()

	return repository.Migrate(ctx, db, globals.Logger)
}
