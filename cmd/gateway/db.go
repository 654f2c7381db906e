package cmd

import (
	"fmt"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/db/migrations"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Utility for database management",
}

func init() {
	setupMigrationCmd(dbCmd)
}

// withMigrator opens the configured database for the duration of fn.
func withMigrator(fn func(migrator *migrate.Migrator) error) error {
	app, err := newApp(app.WithDBInitialization())
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(migrate.NewMigrator(app.DB(), migrations.Migrations))
}

func setupMigrationCmd(cmd *cobra.Command) {
	migrationCmd := &cobra.Command{
		Use:   "migration",
		Short: "Utility for handling database migrations",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "create migration tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(migrator *migrate.Migrator) error {
				return migrator.Init(cmd.Context())
			})
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate database",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(app.WithDBInitialization())
			if err != nil {
				return err
			}
			defer app.Close()

			group, err := migrations.Apply(cmd.Context(), app.DB())
			if err != nil {
				return err
			}
			if group.IsZero() {
				fmt.Printf("there are no new migrations to run (database is up to date)\n")
				return nil
			}
			fmt.Printf("migrated to %s\n", group)
			return nil
		},
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "rollback the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(migrator *migrate.Migrator) error {
				if err := migrator.Lock(cmd.Context()); err != nil {
					return err
				}
				defer migrator.Unlock(cmd.Context()) //nolint:errcheck

				group, err := migrator.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Printf("there are no groups to roll back\n")
					return nil
				}
				fmt.Printf("rolled back %s\n", group)
				return nil
			})
		},
	}

	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(migrator *migrate.Migrator) error {
				if err := migrator.Unlock(cmd.Context()); err != nil {
					return err
				}
				fmt.Printf("unlocked\n")
				return nil
			})
		},
	}

	createGoCmd := &cobra.Command{
		Use:   "create-go <name>",
		Short: "Create a Go migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrations.InitMigrations(); err != nil {
				return err
			}

			return withMigrator(func(migrator *migrate.Migrator) error {
				file, err := migrator.CreateGoMigration(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Printf("created migration file %s in %s\n", file.Name, file.Path)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of the migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(migrator *migrate.Migrator) error {
				status, err := migrator.MigrationsWithStatus(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("migrations: %s\n", status)
				fmt.Printf("unapplied migrations: %s\n", status.Unapplied())
				fmt.Printf("last migration group: %s\n", status.LastGroup())
				return nil
			})
		},
	}

	migrationCmd.AddCommand(
		initCmd,
		migrateCmd,
		rollbackCmd,
		unlockCmd,
		createGoCmd,
		statusCmd,
	)

	cmd.AddCommand(migrationCmd)
}
