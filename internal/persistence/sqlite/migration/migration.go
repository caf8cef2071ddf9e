package migration

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var embedded embed.FS

var fileNamePattern = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.sql$`)

// Migration represents a database migration with its metadata and SQL content.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
}

// Runner applies pending migrations in version order.
type Runner struct {
	db     *sqlx.DB
	source fs.FS
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewRunner constructs a runner over the embedded schema migrations.
func NewRunner(db *sqlx.DB, logger *slog.Logger) *Runner {
	return NewRunnerWithSource(db, embedded, "sql", logger)
}

// NewRunnerWithSource constructs a runner reading migrations from dir inside source.
func NewRunnerWithSource(db *sqlx.DB, source fs.FS, dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, source: source, dir: dir, now: time.Now, logger: logger}
}

// Scan lists the available migrations sorted by version.
func (r *Runner) Scan() ([]Migration, error) {
	entries, err := fs.ReadDir(r.source, r.dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	seen := make(map[string]string, len(entries))
	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := fileNamePattern.FindStringSubmatch(entry.Name())
		filePath := path.Join(r.dir, entry.Name())
		if match == nil {
			return nil, NewMigrationError("", filePath, "scan", ErrInvalidMigrationFile)
		}
		if other, ok := seen[match[1]]; ok {
			return nil, NewMigrationError(match[1], filePath, "scan", fmt.Errorf("%w: also defined in %s", ErrDuplicateVersion, other))
		}
		seen[match[1]] = filePath

		content, err := fs.ReadFile(r.source, filePath)
		if err != nil {
			return nil, NewMigrationError(match[1], filePath, "read", err)
		}
		migrations = append(migrations, Migration{
			Version:     match[1],
			Description: strings.ReplaceAll(match[2], "_", " "),
			SQL:         string(content),
			FilePath:    filePath,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// AppliedVersions returns the versions recorded in schema_migrations.
func (r *Runner) AppliedVersions(ctx context.Context) ([]string, error) {
	if err := r.initializeVersionTable(ctx); err != nil {
		return nil, err
	}
	var versions []string
	if err := r.db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return versions, nil
}

// Run executes all pending migrations in sequential order.
func (r *Runner) Run(ctx context.Context) error {
	migrations, err := r.Scan()
	if err != nil {
		return err
	}
	applied, err := r.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(applied))
	for _, version := range applied {
		done[version] = struct{}{}
	}

	pending := 0
	for _, migration := range migrations {
		if _, ok := done[migration.Version]; ok {
			continue
		}
		pending++
		started := r.now()
		if err := r.execute(ctx, migration); err != nil {
			r.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "file", migration.FilePath, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		r.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", r.now().Sub(started),
		)
	}

	if pending == 0 {
		r.logger.DebugContext(ctx, "schema up to date", "applied", len(applied))
	}
	return nil
}

func (r *Runner) initializeVersionTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("initialize schema_migrations: %w", err)
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, migration Migration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		migration.Version, r.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
