package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// MigrateActions are the subcommands understood by RunMigrate.
var MigrateActions = []string{"up", "down", "status", "version", "force"}

// RunMigrate executes one migrate action against database, writing progress
// to w. version and force take the target version as their argument.
func RunMigrate(w io.Writer, database *DB, action string, args []string) error {
	migrations, err := getMigrationsFS()
	if err != nil {
		return err
	}

	switch action {
	case "up":
		fmt.Fprintln(w, "Running migrations...")
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ All migrations applied successfully")
		return printVersion(w, database, migrations)

	case "down":
		fmt.Fprintln(w, "Rolling back one migration...")
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ Migration rolled back successfully")
		return printVersion(w, database, migrations)

	case "status":
		return printStatus(w, database, migrations)

	case "version":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Migrating to version %d...\n", v)
		if err := database.MigrateTo(migrations, uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Migrated to version %d successfully\n", v)
		return nil

	case "force":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Migration version forced to %d\n", v)
		return nil

	default:
		return fmt.Errorf("unknown migrate action %q (want one of %v)", action, MigrateActions)
	}
}

func versionArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing version number")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version number: %s", args[0])
	}
	return v, nil
}

func printVersion(w io.Writer, database *DB, migrations fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(w io.Writer, database *DB, migrations fs.FS) error {
	status, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "=== Migration Status ===")
	fmt.Fprintf(w, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(w, "Latest available: %d\n", status.LatestVersion)
	fmt.Fprintf(w, "Dirty: %v\n", status.Dirty)

	switch {
	case status.Dirty:
		fmt.Fprintln(w, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(w, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(w, "  growthbot migrate force <version>")
	case status.Pending():
		fmt.Fprintf(w, "\n⚠️  Database is %d version(s) behind. Run 'growthbot migrate up' to update.\n",
			status.LatestVersion-status.CurrentVersion)
	default:
		fmt.Fprintln(w, "\n✓ Database is up to date!")
	}
	return nil
}
