package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/optm/optm/internal/config"
	"github.com/optm/optm/internal/platform/db"
	"github.com/optm/optm/migrations"
)

// openPool loads the configuration and connects for one-shot commands.
func openPool(ctx context.Context) (*pgxpool.Pool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, nil, err
	}
	return pool, cfg, nil
}

// migrationsFS returns dir when given, the embedded migrations otherwise.
func migrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

// targetSchemas resolves --tenant / --all-tenants into schema names.
func targetSchemas(ctx context.Context, pool *pgxpool.Pool, tenant string, all bool) ([]string, error) {
	if !all {
		if !db.ValidTenantID(tenant) {
			return nil, fmt.Errorf("invalid tenant identifier: %q", tenant)
		}
		return []string{db.SchemaName(tenant)}, nil
	}
	tenants, err := db.ListTenants(ctx, pool)
	if err != nil {
		return nil, err
	}
	schemas := make([]string, 0, len(tenants))
	for _, t := range tenants {
		schemas = append(schemas, db.SchemaName(t))
	}
	return schemas, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var tenant, dir string
	var all bool
	cmd.PersistentFlags().StringVar(&tenant, "tenant", "default", "Clinic whose schema is migrated")
	cmd.PersistentFlags().BoolVar(&all, "all-tenants", false, "Migrate every clinic schema")
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Read migrations from this directory instead of the embedded set")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas, err := targetSchemas(ctx, pool, tenant, all)
			if err != nil {
				return err
			}
			migrator := db.NewMigrator(pool, migrationsFS(dir))
			for _, schema := range schemas {
				count, err := migrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", schema, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: applied %d migration(s)\n", schema, count)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas, err := targetSchemas(ctx, pool, tenant, all)
			if err != nil {
				return err
			}
			migrator := db.NewMigrator(pool, migrationsFS(dir))
			for _, schema := range schemas {
				statuses, err := migrator.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("status of %s: %w", schema, err)
				}
				printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			}
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic tenants",
	}

	var dir string
	createCmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a clinic schema and apply all migrations to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			id := args[0]
			if err := db.CreateTenantSchema(ctx, pool, id, db.NewMigrator(pool, migrationsFS(dir))); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s (schema %s)\n", id, db.SchemaName(id))
			return nil
		},
	}
	createCmd.Flags().StringVar(&dir, "dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List clinic tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, _, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, err := db.ListTenants(ctx, pool)
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	})

	return cmd
}
