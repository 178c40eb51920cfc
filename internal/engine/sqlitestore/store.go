package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lockplane/storemigrate/database/sqlite"
	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/sqliteutil"
)

// CheckpointWAL folds the write-ahead log into the main file and switches
// the store to rollback-journal mode, so the file alone holds every
// committed transaction. Stores not in WAL mode are left as they are.
func (e *Engine) CheckpointWAL(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", sqliteutil.ReadWriteDSN(path))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}

	log := e.logger.WithField("store", path)
	if !strings.EqualFold(mode, "wal") {
		log.WithField("journal_mode", mode).Debug("Store is not in WAL mode, nothing to checkpoint")
		return nil
	}

	var busy, logFrames, checkpointed int
	if err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	if busy != 0 {
		return fmt.Errorf("checkpoint of %s blocked by another connection", path)
	}

	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=DELETE").Scan(&mode); err != nil {
		return fmt.Errorf("failed to leave WAL mode: %w", err)
	}

	log.WithField("frames", checkpointed).Info("Checkpointed write-ahead log")
	return nil
}

// ReplaceStore writes a compacted copy of replacementPath beside
// originalPath and renames it over the original. The original is untouched
// if any step before the rename fails.
func (e *Engine) ReplaceStore(ctx context.Context, originalPath, replacementPath string) error {
	info, err := os.Stat(originalPath)
	if err != nil {
		return err
	}

	staging := sqliteutil.GenerateStagingPath(originalPath)
	if err := sqliteutil.RemoveWithSidecars(staging); err != nil {
		return fmt.Errorf("failed to remove stale staging file: %w", err)
	}

	if err := vacuumInto(ctx, replacementPath, staging); err != nil {
		_ = sqliteutil.RemoveWithSidecars(staging)
		return err
	}

	if err := finishStaging(staging, info.Mode().Perm()); err != nil {
		_ = sqliteutil.RemoveWithSidecars(staging)
		return err
	}

	if err := os.Rename(staging, originalPath); err != nil {
		_ = sqliteutil.RemoveWithSidecars(staging)
		return fmt.Errorf("failed to move %s into place: %w", staging, err)
	}

	// A leftover log of the old file would be replayed against the new one.
	// It is kept until the rename succeeds since it may still belong to an
	// intact original.
	for _, sidecar := range sqliteutil.SidecarPaths(originalPath) {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store replaced but failed to remove %s: %w", sidecar, err)
		}
	}

	syncDir(filepath.Dir(originalPath))
	e.logger.WithField("store", originalPath).Debug("Replaced store")
	return nil
}

func vacuumInto(ctx context.Context, source, target string) error {
	db, err := sql.Open("sqlite", sqliteutil.ReadOnlyDSN(source))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, "VACUUM INTO "+sqlite.QuoteLiteral(target)); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", source, target, err)
	}
	return nil
}

func finishStaging(path string, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// DestroyStore removes the store file and its auxiliary files.
func (e *Engine) DestroyStore(_ context.Context, path string) error {
	return sqliteutil.RemoveWithSidecars(path)
}

// Open opens a store for use after verifying it is at latest. It never
// migrates; stores at any other version are rejected.
func (e *Engine) Open(ctx context.Context, path string, latest migration.Schema) (*sql.DB, error) {
	md, err := e.ReadMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	if !e.IsCompatible(latest, md) {
		return nil, fmt.Errorf("%w: %s is not at version %s", migration.ErrNoCompatibleVersionFound, path, latest.Version())
	}

	db, err := sql.Open("sqlite", sqliteutil.ReadWriteDSN(path))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, migration.NewStoreError(path, err)
	}
	return db, nil
}

// Create makes a new store at path holding schema.
func (e *Engine) Create(ctx context.Context, path string, schema *Schema) (*sql.DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", migration.ErrDestinationExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", sqliteutil.CreateDSN(path))
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema.DDL()); err != nil {
		_ = db.Close()
		_ = sqliteutil.RemoveWithSidecars(path)
		return nil, fmt.Errorf("failed to create %s at version %s: %w", path, schema.Version(), err)
	}
	e.logger.WithFields(logrus.Fields{"store": path, "version": schema.Version()}).Debug("Created store")
	return db, nil
}
