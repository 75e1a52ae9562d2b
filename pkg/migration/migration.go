// Package migration applies versioned .up.sql/.down.sql files against
// TimescaleDB, recording applied versions in schema_migrations.
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
)

// Migration represents a database migration
type Migration struct {
	ID        string
	Name      string
	Timestamp time.Time
	UpSQL     string
	DownSQL   string
}

// Runner handles migration execution
type Runner struct {
	client       timescale.Client
	logger       logger.Interface
	migrationDir string
}

// NewRunner creates a new migration runner
func NewRunner(client timescale.Client, log logger.Interface, migrationDir string) *Runner {
	return &Runner{
		client:       client,
		logger:       log,
		migrationDir: migrationDir,
	}
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	_, err := r.client.Exec(ctx, createTableSQL)
	return err
}

// GetAppliedMigrations returns a map of applied migration IDs
func (r *Runner) GetAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := r.client.Query(ctx, "SELECT id FROM schema_migrations ORDER BY applied_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}

	return applied, rows.Err()
}

// LoadMigrations loads all migration files from the migration directory
func (r *Runner) LoadMigrations() ([]Migration, error) {
	upFiles, err := filepath.Glob(filepath.Join(r.migrationDir, "*.up.sql"))
	if err != nil {
		return nil, err
	}

	sort.Strings(upFiles)

	var migrations []Migration
	for _, upFile := range upFiles {
		migration, err := r.parseMigrationFiles(upFile)
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration %s: %v", upFile, err)
		}
		migrations = append(migrations, migration)
	}

	return migrations, nil
}

// parseMigrationFiles parses UP and DOWN migration files
func (r *Runner) parseMigrationFiles(upFilePath string) (Migration, error) {
	upContent, err := os.ReadFile(upFilePath)
	if err != nil {
		return Migration{}, err
	}

	fileName := filepath.Base(upFilePath)
	id := strings.TrimSuffix(fileName, ".up.sql")
	downFilePath := strings.Replace(upFilePath, ".up.sql", ".down.sql", 1)

	// Filename format: YYYYMMDDHHMMSS_name, with "001_name" as a fallback.
	parts := strings.SplitN(id, "_", 2)
	timestampStr := parts[0]
	var name string
	if len(parts) > 1 {
		name = parts[1]
	} else {
		name = id
	}

	timestamp, err := time.Parse("20060102150405", timestampStr)
	if err != nil {
		timestamp = time.Unix(0, 0)
	}

	var downSQL string
	if downContent, err := os.ReadFile(downFilePath); err == nil {
		downSQL = strings.TrimSpace(string(downContent))
	}

	return Migration{
		ID:        id,
		Name:      name,
		Timestamp: timestamp,
		UpSQL:     strings.TrimSpace(string(upContent)),
		DownSQL:   downSQL,
	}, nil
}

// MigrateUp applies pending migrations
func (r *Runner) MigrateUp(ctx context.Context, steps int) error {
	migrations, err := r.LoadMigrations()
	if err != nil {
		return err
	}

	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var toApply []Migration
	for _, migration := range migrations {
		if !applied[migration.ID] {
			toApply = append(toApply, migration)
		}
	}

	if steps > 0 && len(toApply) > steps {
		toApply = toApply[:steps]
	}

	for _, migration := range toApply {
		r.logger.Info("applying migration", logger.Field{Key: "id", Value: migration.ID})

		if migration.UpSQL == "" {
			r.logger.Warn("no UP SQL found for migration", logger.Field{Key: "id", Value: migration.ID})
			continue
		}

		if _, err := r.client.Exec(ctx, migration.UpSQL); err != nil {
			return fmt.Errorf("failed to apply migration %s: %v", migration.ID, err)
		}

		recordSQL := "INSERT INTO schema_migrations (id, name) VALUES ($1, $2)"
		if _, err := r.client.Exec(ctx, recordSQL, migration.ID, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %s: %v", migration.ID, err)
		}

		r.logger.Info("applied migration", logger.Field{Key: "id", Value: migration.ID})
	}

	return nil
}

// MigrateDown reverts applied migrations
func (r *Runner) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0 for down migrations")
	}

	migrations, err := r.LoadMigrations()
	if err != nil {
		return err
	}

	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var toRevert []Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if applied[migration.ID] {
			toRevert = append(toRevert, migration)
			if len(toRevert) >= steps {
				break
			}
		}
	}

	for _, migration := range toRevert {
		r.logger.Info("reverting migration", logger.Field{Key: "id", Value: migration.ID})

		if migration.DownSQL == "" {
			return fmt.Errorf("no DOWN SQL found for migration %s", migration.ID)
		}

		if _, err := r.client.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to revert migration %s: %v", migration.ID, err)
		}

		if _, err := r.client.Exec(ctx, "DELETE FROM schema_migrations WHERE id = $1", migration.ID); err != nil {
			return fmt.Errorf("failed to unrecord migration %s: %v", migration.ID, err)
		}

		r.logger.Info("reverted migration", logger.Field{Key: "id", Value: migration.ID})
	}

	return nil
}
