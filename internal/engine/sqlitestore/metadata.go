package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/schema"
	"github.com/lockplane/storemigrate/internal/sqliteutil"
)

// ReadMetadata opens the store read-only and fingerprints its schema.
func (e *Engine) ReadMetadata(ctx context.Context, path string) (*migration.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}
	if info.IsDir() {
		return nil, migration.NewStoreError(path, errors.New("path is a directory"))
	}

	ok, err := sqliteutil.HasHeader(path)
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}
	if !ok {
		return nil, migration.NewStoreError(path, errors.New("not a SQLite database"))
	}

	db, err := sql.Open("sqlite", sqliteutil.ReadOnlyDSN(path))
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	tables, err := e.driver.IntrospectSchema(ctx, db)
	if err != nil {
		return nil, migration.NewStoreError(path, fmt.Errorf("failed to introspect: %w", err))
	}

	fingerprint, err := schema.ComputeHash(tables)
	if err != nil {
		return nil, migration.NewStoreError(path, err)
	}

	attrs := map[string]string{
		"size":   strconv.FormatInt(info.Size(), 10),
		"tables": strconv.Itoa(len(tables.Tables)),
	}
	for _, pragma := range []string{"journal_mode", "user_version", "page_size"} {
		var value string
		if err := db.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(&value); err != nil {
			return nil, migration.NewStoreError(path, fmt.Errorf("failed to read %s: %w", pragma, err))
		}
		attrs[pragma] = value
	}

	return &migration.Metadata{
		Path:        path,
		Engine:      e.Name(),
		Fingerprint: fingerprint,
		Attributes:  attrs,
	}, nil
}
