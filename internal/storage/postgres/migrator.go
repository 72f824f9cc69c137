package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	migrationsDir = "sql/migrations"
	// migrationLockKey — ключ pg_advisory_lock, общий для всех процессов mini-crm.
	migrationLockKey = int64(0x6d696e69)

	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

//go:embed sql/migrations/*.sql
var embeddedMigrations embed.FS

var migrationName = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration — пара up/down скриптов одной версии.
type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// MigrationStatus описывает состояние схемы.
type MigrationStatus struct {
	Version int64
	Applied int
	Pending int
}

// Migrator применяет встроенные миграции под advisory lock.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrator читает миграции из fsys (каталог sql/migrations).
func NewMigrator(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, ErrStoreNotInitialized
	}
	migrations, err := parseMigrations(fsys)
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db, migrations: migrations}, nil
}

// Migrator возвращает мигратор со встроенными миграциями.
func (s *Store) Migrator() (*Migrator, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreNotInitialized
	}
	return NewMigrator(s.db, embeddedMigrations)
}

// MigrateUp применяет steps миграций; 0 означает все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	return m.Up(ctx, steps)
}

// MigrateDown откатывает steps миграций; steps<=0 означает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	return m.Down(ctx, steps)
}

// MigrationStatus возвращает текущую версию схемы.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	m, err := s.Migrator()
	if err != nil {
		return MigrationStatus{}, err
	}
	return m.Status(ctx)
}

// Up применяет ещё не применённые миграции по возрастанию версии.
func (m *Migrator) Up(ctx context.Context, steps int) error {
	return m.withLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		done := 0
		for _, mig := range m.migrations {
			if steps > 0 && done >= steps {
				break
			}
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			err := runInTx(ctx, conn, mig.Up, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			if err != nil {
				return fmt.Errorf("migrate up %04d_%s: %w", mig.Version, mig.Name, err)
			}
			done++
		}
		return nil
	})
}

// Down откатывает последние применённые миграции.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	byVersion := make(map[int64]Migration, len(m.migrations))
	for _, mig := range m.migrations {
		byVersion[mig.Version] = mig
	}

	return m.withLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		versions := make([]int64, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
		if len(versions) > steps {
			versions = versions[:steps]
		}

		for _, v := range versions {
			mig, ok := byVersion[v]
			if !ok {
				return fmt.Errorf("cannot roll back unknown migration version %d", v)
			}
			err := runInTx(ctx, conn, mig.Down, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			if err != nil {
				return fmt.Errorf("migrate down %04d_%s: %w", mig.Version, mig.Name, err)
			}
		}
		return nil
	})
}

// Status не берёт lock: это только чтение.
func (m *Migrator) Status(ctx context.Context) (MigrationStatus, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := m.db.ExecContext(queryCtx, schemaMigrationsDDL); err != nil {
		return MigrationStatus{}, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var status MigrationStatus
	err := m.db.QueryRowContext(queryCtx,
		`SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`,
	).Scan(&status.Version, &status.Applied)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("query migration status: %w", err)
	}
	status.Pending = len(m.migrations) - status.Applied
	if status.Pending < 0 {
		status.Pending = 0
	}
	return status, nil
}

func (m *Migrator) withLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return fn(conn)
}

func runInTx(ctx context.Context, conn *sql.Conn, script, bookkeeping string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update schema_migrations: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}

// parseMigrations собирает пары NNNN_name.up.sql / NNNN_name.down.sql.
func parseMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, _ := strconv.ParseInt(match[1], 10, 64)

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: match[2]}
			byVersion[version] = mig
		}
		if mig.Name != match[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, mig.Name, match[2])
		}

		target := &mig.Up
		if match[3] == "down" {
			target = &mig.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", match[3], version)
		}
		*target = body
	}

	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("migration %04d_%s must have both up and down files", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
