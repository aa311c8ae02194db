package storage

import (
	"context"
	"embed"
	"fmt"
	"github.com/jackc/tern/migrate"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	migrationsDir = "migrations"
	versionTable  = "schema_version"
)

// migrationFS exposes an fs.FS through tern's MigratorFS
type migrationFS struct {
	fsys fs.FS
}

func (m migrationFS) ReadDir(dirname string) ([]os.FileInfo, error) {
	entries, err := fs.ReadDir(m.fsys, dirname)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m migrationFS) ReadFile(filename string) ([]byte, error) {
	return fs.ReadFile(m.fsys, filename)
}

func (m migrationFS) Glob(pattern string) ([]string, error) {
	return fs.Glob(m.fsys, pattern)
}

// Migrate applies pending schema migrations and returns how many of them ran.
// tern holds its own advisory lock, concurrent migrators wait for each other.
func (s *Store) Migrate(ctx context.Context) (applied int, err error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	m, err := migrate.NewMigratorEx(ctx, conn.Conn(), versionTable, &migrate.MigratorOptions{
		MigratorFS: migrationFS{fsys: migrationFiles},
	})
	if err != nil {
		return 0, err
	}
	if err := m.LoadMigrations(migrationsDir); err != nil {
		return 0, fmt.Errorf("load migrations: %w", err)
	}

	m.OnStart = func(sequence int32, name, direction, _ string) {
		s.logger.Infof("Applying migration %d %s (%s)", sequence, name, direction)
		applied++
	}

	if err := m.Migrate(ctx); err != nil {
		return applied, err
	}

	return applied, nil
}
