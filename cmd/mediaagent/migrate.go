package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rvndrmann/mannmediaagency-sub000/project/postgres"
)

var errNoDSN = errors.New("postgres dsn not configured (set postgres.dsn or DATABASE_URL)")

// Run applies, rolls back or reports the schema version.
func (c *MigrateCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	dsn := cfg.Postgres.DSN
	if dsn == "" {
		return errNoDSN
	}

	ctx := context.Background()

	switch c.Direction {
	case "down":
		if err := postgres.RollbackMigrations(ctx, dsn, c.Steps); err != nil {
			return err
		}
	case "version":
	default:
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			return err
		}
	}

	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}

	fmt.Printf("schema version %d\n", v)

	return nil
}
